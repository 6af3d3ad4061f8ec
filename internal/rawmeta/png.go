package rawmeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxInflatedText bounds a single decompressed text chunk.
const maxInflatedText = 16 << 20

var errNotPNG = errors.New("not a PNG file")

// parsePNG walks the chunk stream and collects tEXt, zTXt and iTXt entries.
// An eXIf chunk is decoded and merged without overwriting text keys.
func parsePNG(data []byte) (RawMetadata, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errNotPNG
	}

	out := make(RawMetadata)
	var exifPayload []byte

	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end+4 > len(data) || end < start {
			// Truncated chunk: keep what has been read so far
			break
		}
		chunk := data[start:end]

		switch typ {
		case "tEXt":
			if key, val, ok := splitKeyword(chunk); ok {
				out.Set(key, BytesValue(val))
			}
		case "zTXt":
			if key, rest, ok := splitKeyword(chunk); ok && len(rest) > 1 {
				if text, err := inflate(rest[1:]); err == nil {
					out.Set(key, BytesValue(text))
				}
			}
		case "iTXt":
			if key, text, ok := parseITXt(chunk); ok {
				out.Set(key, TextValue(text))
			}
		case "eXIf":
			exifPayload = chunk
		case "IEND":
			pos = len(data)
			continue
		}

		pos = end + 4 // skip CRC
	}

	if len(exifPayload) > 0 {
		if fields, err := decodeEXIF(exifPayload, exifKeepComments); err == nil {
			out.merge(fields)
		}
	}

	return out, nil
}

func splitKeyword(chunk []byte) (string, []byte, bool) {
	idx := bytes.IndexByte(chunk, 0)
	if idx <= 0 {
		return "", nil, false
	}
	return string(chunk[:idx]), chunk[idx+1:], true
}

// parseITXt decodes keyword, compression flag, compression method,
// language tag, translated keyword and the UTF-8 text.
func parseITXt(chunk []byte) (string, string, bool) {
	key, rest, ok := splitKeyword(chunk)
	if !ok || len(rest) < 2 {
		return "", "", false
	}
	compressed := rest[0] == 1
	rest = rest[2:]

	// language tag
	idx := bytes.IndexByte(rest, 0)
	if idx < 0 {
		return "", "", false
	}
	rest = rest[idx+1:]

	// translated keyword
	idx = bytes.IndexByte(rest, 0)
	if idx < 0 {
		return "", "", false
	}
	rest = rest[idx+1:]

	if compressed {
		inflated, err := inflate(rest)
		if err != nil {
			return "", "", false
		}
		rest = inflated
	}

	text, ok := DecodeText(rest)
	if !ok {
		return "", "", false
	}
	return key, text, true
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to open zlib stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxInflatedText))
	if err != nil {
		return nil, fmt.Errorf("failed to inflate text chunk: %w", err)
	}
	return out, nil
}
