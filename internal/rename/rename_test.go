package rename

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapick/internal/record"
)

func sampleRecord(path string) *record.Record {
	return &record.Record{
		Path:    path,
		Source:  record.SourceAutomatic1111,
		Model:   "sd-v1-5",
		Sampler: "DPM++ 2M Karras",
		Steps:   record.Ptr(20),
		CFG:     record.Ptr(7.5),
		Seed:    record.Ptr(int64(123)),
		Width:   record.Ptr(512),
		Height:  record.Ptr(768),
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	rec := sampleRecord("/img/cat.png")

	tests := []struct {
		name    string
		pattern string
		i       int
		want    string
	}{
		{"default pattern", DefaultPattern, 3, "sd-v1-5-s20-cfg7.5-seed123-0003"},
		{"fields", "{model}_{sampler}_{steps}_{cfg}_{seed}", 1, "sd-v1-5_DPM++ 2M Karras_20_7.5_123"},
		{"size", "{width}x{height}", 1, "512x768"},
		{"source and stem", "{source}-{stem}", 1, "Automatic1111-cat"},
		{"padded index", "{i:05d}", 42, "00042"},
		{"space padded index", "{i:4d}", 7, "   7"},
		{"plain index", "{i}", 7, "7"},
		{"fixed float", "{cfg:.2f}", 1, "7.50"},
		{"unknown field", "{nope}-{model}", 1, "-sd-v1-5"},
		{"case insensitive", "{MODEL}", 1, "sd-v1-5"},
		{"escaped braces", "{{model}}", 1, "{model}"},
		{"no placeholders", "fixed", 1, "fixed"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Expand(tt.pattern, rec, tt.i))
		})
	}
}

func TestExpandMissingValues(t *testing.T) {
	t.Parallel()

	rec := &record.Record{Path: "/img/plain.jpg"}
	assert.Equal(t, "--", Expand("{steps}-{cfg}-{seed}", rec, 1))
	assert.Equal(t, "plain", Expand("{title}", rec, 1))
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"sd xl/base", "sd-xl-base"},
		{"__name__", "name"},
		{"-a--b-", "a--b"},
		{"DPM++ 2M", "DPM-2M"},
		{"ünïcode", "n-code"},
		{"keep.dots_and-dashes", "keep.dots_and-dashes"},
		{"  ", ""},
		{"", ""},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SafeName(tt.in))
		})
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	recs := []*record.Record{
		sampleRecord(filepath.Join("img", "a.png")),
		nil,
		{Path: ""},
		{Path: filepath.Join("img", "sub", "b.JPG")},
	}

	moves := Plan(recs, "{model}-{i:04d}")
	require.Len(t, moves, 2)
	assert.Equal(t, Move{
		Source: filepath.Join("img", "a.png"),
		Target: filepath.Join("img", "sd-v1-5-0001.png"),
	}, moves[0])
	assert.Equal(t, Move{
		Source: filepath.Join("img", "sub", "b.JPG"),
		Target: filepath.Join("img", "sub", "0002.JPG"),
	}, moves[1])
}

func TestPlanFallback(t *testing.T) {
	t.Parallel()

	recs := []*record.Record{{Path: filepath.Join("img", "photo.webp")}}

	moves := Plan(recs, "{model}{sampler}")
	require.Len(t, moves, 1)
	assert.Equal(t, filepath.Join("img", "photo-0001.webp"), moves[0].Target)
}

func TestApply(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "taken.png", "same.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	path := func(name string) string { return filepath.Join(dir, name) }

	moves := []Move{
		{Source: path("a.png"), Target: path("renamed.png")},
		{Source: path("b.png"), Target: path("taken.png")},
		{Source: path("same.png"), Target: path("same.png")},
		{Source: path("missing.png"), Target: path("other.png")},
	}

	result, err := Apply(moves)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")

	assert.Equal(t, []Move{moves[0]}, result.Renamed)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "target exists", result.Skipped[0].Reason)
	assert.Equal(t, "unchanged", result.Skipped[1].Reason)

	data, err := os.ReadFile(path("renamed.png"))
	require.NoError(t, err)
	assert.Equal(t, "a.png", string(data))
	assert.NoFileExists(t, path("a.png"))

	data, err = os.ReadFile(path("taken.png"))
	require.NoError(t, err)
	assert.Equal(t, "taken.png", string(data), "existing target untouched")
	assert.FileExists(t, path("b.png"))
}

func TestApplyCollidingTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recs := make([]*record.Record, 0, 2)
	for _, name := range []string{"one.png", "two.png"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		recs = append(recs, sampleRecord(p))
	}

	result, err := Apply(Plan(recs, "{model}"))
	require.NoError(t, err)
	assert.Len(t, result.Renamed, 1)
	assert.Len(t, result.Skipped, 1)
	assert.FileExists(t, filepath.Join(dir, "sd-v1-5.png"))
}
