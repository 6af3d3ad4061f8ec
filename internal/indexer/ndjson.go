package indexer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"metapick/internal/record"
)

// maxLineSize bounds one NDJSON line. ComfyUI workflows kept in the raw
// map can be several megabytes.
const maxLineSize = 64 << 20

// WriteNDJSON writes recs to w, one JSON object per line.
func WriteNDJSON(w io.Writer, recs ...*record.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// ReadNDJSON reads records written by WriteNDJSON. Blank lines are skipped.
func ReadNDJSON(r io.Reader) ([]*record.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var recs []*record.Record
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return recs, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, &rec)
	}
	if err := scanner.Err(); err != nil {
		return recs, fmt.Errorf("line %d: %w", line+1, err)
	}
	return recs, nil
}
