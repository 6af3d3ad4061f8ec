package rawmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  []byte
		want   string
		wantOK bool
	}{
		{name: "utf-8", input: []byte("Steps: 20, Sampler: DPM++ 2M"), want: "Steps: 20, Sampler: DPM++ 2M", wantOK: true},
		{name: "utf-8 with NUL", input: []byte("abc\x00def\x00"), want: "abcdef", wantOK: true},
		{name: "latin-1", input: []byte{'c', 'a', 'f', 0xE9}, want: "café", wantOK: true},
		{name: "empty", input: nil, want: "", wantOK: true},
		{name: "binary", input: []byte{0x01, 0x02, 0x03, 0x00, 0x04}, wantOK: false},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DecodeText(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeUserComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "ascii header", input: append([]byte("ASCII\x00\x00\x00"), "hello"...), want: "hello"},
		{name: "unicode big endian", input: append([]byte("UNICODE\x00"), utf16BE("Seed: 42")...), want: "Seed: 42"},
		{name: "unicode little endian", input: append([]byte("UNICODE\x00"), utf16LE("Seed: 42")...), want: "Seed: 42"},
		{name: "undefined header", input: append(make([]byte, 8), "plain"...), want: "plain"},
		{name: "no header", input: []byte("Steps: 30, Seed: 1"), want: "Steps: 30, Seed: 1"},
		{name: "short", input: []byte("hi"), want: "hi"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, decodeUserComment(tt.input))
		})
	}
}

func TestDecodeUTF16BOM(t *testing.T) {
	t.Parallel()

	le := append([]byte{0xFF, 0xFE}, utf16LE("abc")...)
	assert.Equal(t, "abc", decodeUTF16(le, false))

	be := append([]byte{0xFE, 0xFF}, utf16BE("abc")...)
	assert.Equal(t, "abc", decodeUTF16(be, true))

	assert.Equal(t, "", decodeUTF16([]byte{0x41}, true))
}

func TestRawMetadataAccessors(t *testing.T) {
	t.Parallel()

	m := make(RawMetadata)
	m.SetText("Parameters", "Steps: 20")
	m.Set("blob", BytesValue([]byte{0x00, 0x01, 0x02}))
	m.SetText("", "ignored")

	s, ok := m.Text("Parameters")
	assert.True(t, ok)
	assert.Equal(t, "Steps: 20", s)

	s, ok = m.Text("PARAMETERS")
	assert.True(t, ok, "falls back to lowercase alias")
	assert.Equal(t, "Steps: 20", s)

	_, ok = m.Text("blob")
	assert.False(t, ok)
	assert.True(t, m["blob"].IsBinary())
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, m["blob"].Bytes())

	first, ok := m.FirstText("missing", "parameters")
	assert.True(t, ok)
	assert.Equal(t, "Steps: 20", first)

	assert.Equal(t, []string{"Parameters", "blob", "parameters"}, m.Keys())
	assert.NotContains(t, m.Strings(), "blob")

	round := FromStrings(map[string]string{"a": "b"})
	v, _ := round.Text("a")
	assert.Equal(t, "b", v)
}
