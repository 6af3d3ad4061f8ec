package rawmeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// Helpers that synthesize small image files carrying generator metadata.

const (
	tiffTypeByte      = 1
	tiffTypeASCII     = 2
	tiffTypeLong      = 4
	tiffTypeUndefined = 7

	tagImageDescription = 0x010E
	tagMake             = 0x010F
	tagExifIFDPointer   = 0x8769
	tagUserComment      = 0x9286
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	data := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: tiffTypeASCII, count: uint32(len(data)), data: data}
}

func undefinedEntry(tag uint16, b []byte) ifdEntry {
	return ifdEntry{tag: tag, typ: tiffTypeUndefined, count: uint32(len(b)), data: b}
}

func byteEntry(tag uint16, b []byte) ifdEntry {
	return ifdEntry{tag: tag, typ: tiffTypeByte, count: uint32(len(b)), data: b}
}

// buildTIFF lays out a little-endian TIFF structure: header, IFD0, an
// optional Exif sub-IFD, then the out-of-line value area.
func buildTIFF(ifd0, exifIFD []ifdEntry) []byte {
	le := binary.LittleEndian

	entries0 := append([]ifdEntry(nil), ifd0...)
	if len(exifIFD) > 0 {
		entries0 = append(entries0, ifdEntry{tag: tagExifIFDPointer, typ: tiffTypeLong, count: 1})
	}

	ifd0Size := 2 + 12*len(entries0) + 4
	exifOff := 8 + ifd0Size
	exifSize := 0
	if len(exifIFD) > 0 {
		exifSize = 2 + 12*len(exifIFD) + 4
	}
	dataOff := exifOff + exifSize

	var values []byte
	writeIFD := func(entries []ifdEntry) []byte {
		buf := make([]byte, 2+12*len(entries)+4)
		le.PutUint16(buf, uint16(len(entries)))
		for i, e := range entries {
			p := 2 + 12*i
			le.PutUint16(buf[p:], e.tag)
			le.PutUint16(buf[p+2:], e.typ)
			le.PutUint32(buf[p+4:], e.count)
			switch {
			case e.tag == tagExifIFDPointer && e.data == nil:
				le.PutUint32(buf[p+8:], uint32(exifOff))
			case len(e.data) <= 4:
				copy(buf[p+8:p+12], e.data)
			default:
				le.PutUint32(buf[p+8:], uint32(dataOff+len(values)))
				values = append(values, e.data...)
				if len(values)%2 == 1 {
					values = append(values, 0)
				}
			}
		}
		return buf
	}

	out := []byte("II*\x00")
	out = le.AppendUint32(out, 8)
	out = append(out, writeIFD(entries0)...)
	if len(exifIFD) > 0 {
		out = append(out, writeIFD(exifIFD)...)
	}
	return append(out, values...)
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func pngChunk(typ string, data []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
	buf.WriteString(typ)
	buf.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return buf.Bytes()
}

func textChunk(key, value string) []byte {
	return pngChunk("tEXt", append(append([]byte(key), 0), value...))
}

func zlibBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func ztxtChunk(t *testing.T, key, value string) []byte {
	data := append([]byte(key), 0, 0)
	return pngChunk("zTXt", append(data, zlibBytes(t, value)...))
}

func itxtChunk(t *testing.T, key, value string, compressed bool) []byte {
	data := append([]byte(key), 0)
	if compressed {
		data = append(data, 1, 0)
	} else {
		data = append(data, 0, 0)
	}
	data = append(data, "en"...)
	data = append(data, 0)
	data = append(data, 0) // empty translated keyword
	if compressed {
		return pngChunk("iTXt", append(data, zlibBytes(t, value)...))
	}
	return pngChunk("iTXt", append(data, value...))
}

// buildPNG encodes a w×h PNG and inserts extra chunks before IEND.
func buildPNG(t *testing.T, w, h int, extra ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	encoded := buf.Bytes()

	iend := len(encoded) - 12
	out := append([]byte(nil), encoded[:iend]...)
	for _, c := range extra {
		out = append(out, c...)
	}
	return append(out, encoded[iend:]...)
}

// buildJPEG encodes a w×h JPEG and inserts an APP1 EXIF segment after SOI.
func buildJPEG(t *testing.T, w, h int, tiffData []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), nil))
	encoded := buf.Bytes()
	if tiffData == nil {
		return encoded
	}

	payload := append([]byte("Exif\x00\x00"), tiffData...)
	segment := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := append([]byte(nil), encoded[:2]...)
	out = append(out, segment...)
	return append(out, encoded[2:]...)
}

func riffChunk(fourCC string, data []byte) []byte {
	out := []byte(fourCC)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// buildWebP assembles an extended-format WebP header (VP8X) followed by
// extra chunks. Only the header is decodable, which is enough for
// dimension probing and chunk extraction.
func buildWebP(w, h int, extra ...[]byte) []byte {
	vp8x := make([]byte, 10)
	vp8x[0] = 1 << 3 // EXIF present
	putUint24 := func(b []byte, v int) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	}
	putUint24(vp8x[4:7], w-1)
	putUint24(vp8x[7:10], h-1)

	body := []byte("WEBP")
	body = append(body, riffChunk("VP8X", vp8x)...)
	for _, c := range extra {
		body = append(body, c...)
	}

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

func utf16BE(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}

func utf16LE(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}
