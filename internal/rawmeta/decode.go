package rawmeta

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// minPrintableRatio is the share of printable runes a Latin-1 decode must
// reach before the bytes are treated as text.
const minPrintableRatio = 0.9

// DecodeText converts b to text: UTF-8 when valid, otherwise ISO-8859-1 when
// the result is mostly printable. NUL bytes are removed. The second result
// is false for data that looks binary.
func DecodeText(b []byte) (string, bool) {
	if len(b) == 0 {
		return "", true
	}
	if utf8.Valid(b) {
		s := stripNUL(string(b))
		if printableRatio(s) >= minPrintableRatio {
			return s, true
		}
		return "", false
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	s := stripNUL(string(decoded))
	if printableRatio(s) < minPrintableRatio {
		return "", false
	}
	return s, true
}

// decodeUserComment decodes an EXIF UserComment: an 8-byte character code
// ("ASCII", "UNICODE", "JIS" or undefined) followed by the payload.
func decodeUserComment(b []byte) string {
	if len(b) < 8 {
		s, _ := DecodeText(b)
		return strings.TrimSpace(s)
	}

	code := string(bytes.TrimRight(b[:8], "\x00 "))
	payload := b[8:]

	switch code {
	case "UNICODE":
		return strings.TrimSpace(decodeUTF16(payload, false))
	case "ASCII", "JIS", "":
		s, _ := DecodeText(payload)
		return strings.TrimSpace(s)
	default:
		// No recognizable header, decode the whole field
		s, _ := DecodeText(b)
		return strings.TrimSpace(s)
	}
}

// decodeUTF16 decodes UTF-16 text. A byte order mark wins; otherwise the
// byte order is guessed from where the zero high bytes of ASCII text fall,
// with littleDefault breaking ties.
func decodeUTF16(b []byte, littleDefault bool) string {
	if len(b) < 2 {
		return ""
	}
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}

	order := xunicode.BigEndian
	switch {
	case b[0] == 0xFF && b[1] == 0xFE:
		order = xunicode.LittleEndian
	case b[0] == 0xFE && b[1] == 0xFF:
		order = xunicode.BigEndian
	default:
		var evenZero, oddZero int
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 {
				evenZero++
			}
			if b[i+1] == 0 {
				oddZero++
			}
		}
		switch {
		case oddZero > evenZero:
			order = xunicode.LittleEndian
		case evenZero > oddZero:
			order = xunicode.BigEndian
		case littleDefault:
			order = xunicode.LittleEndian
		}
	}

	decoded, err := xunicode.UTF16(order, xunicode.UseBOM).NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return stripNUL(string(decoded))
}

func stripNUL(s string) string {
	if strings.IndexByte(s, 0) < 0 {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}

func printableRatio(s string) float64 {
	if s == "" {
		return 1
	}
	var total, printable int
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable) / float64(total)
}
