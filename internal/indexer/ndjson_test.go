package indexer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapick/internal/record"
)

func TestNDJSONRoundTrip(t *testing.T) {
	t.Parallel()

	recs := []*record.Record{
		{Path: "/img/a.png", Source: record.SourceAutomatic1111, Model: "sdxl", Steps: record.Ptr(30), Prompt: "a <cat> & dog"},
		nil,
		{Path: "/img/b.png", Source: record.SourceUnrecognized, Unrecognized: true, Raw: map[string]string{"Software": "GIMP"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, recs...))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"prompt":"a <cat> & dog"`)

	got, err := ReadNDJSON(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recs[0], got[0])
	assert.Equal(t, recs[2], got[1])
}

func TestReadNDJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{"empty", "", 0, ""},
		{"blank lines skipped", "\n{\"path\":\"a\",\"source\":\"x\"}\n\n  \n{\"path\":\"b\",\"source\":\"x\"}\n", 2, ""},
		{"no trailing newline", `{"path":"a","source":"x"}`, 1, ""},
		{"invalid line", "{\"path\":\"a\",\"source\":\"x\"}\nnot json\n", 1, "line 2"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadNDJSON(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, got, tt.want)
		})
	}
}
