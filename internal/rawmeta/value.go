package rawmeta

import (
	"sort"
	"strings"
)

// Value is one raw metadata entry: decoded text, or bytes that could not be
// decoded as text.
type Value struct {
	text   string
	data   []byte
	binary bool
}

// TextValue wraps already decoded text. NUL bytes are removed.
func TextValue(s string) Value {
	return Value{text: stripNUL(s)}
}

// BytesValue decodes b as text when possible (see DecodeText) and keeps the
// raw bytes otherwise.
func BytesValue(b []byte) Value {
	if s, ok := DecodeText(b); ok {
		return Value{text: s}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{data: cp, binary: true}
}

// IsBinary reports whether the value holds undecodable bytes.
func (v Value) IsBinary() bool { return v.binary }

// String returns the text of the value, or "" for binary values.
func (v Value) String() string { return v.text }

// Bytes returns the raw bytes of a binary value, or the UTF-8 encoding of
// a text value.
func (v Value) Bytes() []byte {
	if v.binary {
		return v.data
	}
	return []byte(v.text)
}

// RawMetadata is the flat tag→value map read from one image file.
type RawMetadata map[string]Value

// Set stores v under key and also under the lowercased key when it
// differs and is not already taken.
func (m RawMetadata) Set(key string, v Value) {
	if key == "" {
		return
	}
	m[key] = v
	if lower := strings.ToLower(key); lower != key {
		if _, exists := m[lower]; !exists {
			m[lower] = v
		}
	}
}

// SetText is shorthand for Set(key, TextValue(s)).
func (m RawMetadata) SetText(key, s string) {
	m.Set(key, TextValue(s))
}

// Text returns the text stored under key, trying the exact key first and
// then its lowercase form. Binary and empty values report false.
func (m RawMetadata) Text(key string) (string, bool) {
	if v, ok := m[key]; ok && !v.binary && v.text != "" {
		return v.text, true
	}
	if v, ok := m[strings.ToLower(key)]; ok && !v.binary && v.text != "" {
		return v.text, true
	}
	return "", false
}

// FirstText returns the first non-empty text value among keys.
func (m RawMetadata) FirstText(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m.Text(k); ok {
			return s, true
		}
	}
	return "", false
}

// Keys returns the keys in sorted order.
func (m RawMetadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Strings returns the text values only, for serialization.
func (m RawMetadata) Strings() map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if !v.binary {
			out[k] = v.text
		}
	}
	return out
}

// FromStrings builds a RawMetadata from plain strings, as stored in
// serialized records.
func FromStrings(src map[string]string) RawMetadata {
	m := make(RawMetadata, len(src))
	for k, v := range src {
		m.Set(k, TextValue(v))
	}
	return m
}

// merge copies every entry of src into m without overwriting existing keys.
func (m RawMetadata) merge(src RawMetadata) {
	for k, v := range src {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
}
