package parser

import (
	"encoding/json"
	"strconv"
	"strings"

	"metapick/internal/extract"
)

// decodeObject parses s as a JSON object, keeping numbers exact so large
// seeds survive.
func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

func hasAnyKey(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	}
	return "", false
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func asInt(v any) (*int, bool) {
	n, ok := asInt64(v)
	if !ok {
		return nil, false
	}
	i := int(n)
	return &i, true
}

func asFloat(v any) (*float64, bool) {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f, true
		}
	case float64:
		return &t, true
	case string:
		if f := extract.ParseFloat(t); f != nil {
			return f, true
		}
	}
	return nil, false
}
