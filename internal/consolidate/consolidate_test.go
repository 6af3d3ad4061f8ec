package consolidate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestApplyRules(t *testing.T) {
	t.Parallel()

	tags := &Tags{
		Positive: map[string]int{"1girl": 3, "1 girl": 2, "one girl": 1, "solo": 4},
		Negative: map[string]int{"lowres": 2, "low res": 1},
	}
	before := sum(tags.Positive) + sum(tags.Negative)

	result, err := ApplyRules(tags, Rules{
		CategoryPositive: {"1girl": {"1 girl", "one girl", "missing"}},
		CategoryNegative: {"lowres": {"low res"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Merged)
	assert.Equal(t, map[string]int{"1girl": 6, "solo": 4}, tags.Positive)
	assert.Equal(t, map[string]int{"lowres": 3}, tags.Negative)
	assert.Equal(t, before, sum(tags.Positive)+sum(tags.Negative))
}

func TestApplyRulesCreatesTarget(t *testing.T) {
	t.Parallel()

	tags := &Tags{Positive: map[string]int{"blonde": 2, "blond hair": 3}}
	_, err := ApplyRules(tags, Rules{CategoryPositive: {"blonde_hair": {"blonde", "blond hair"}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"blonde_hair": 5}, tags.Positive)
}

func TestApplyRulesPartialFailure(t *testing.T) {
	t.Parallel()

	tags := &Tags{
		Positive: map[string]int{"a": 1, "b": 2},
		Negative: map[string]int{"lowres": 2, "low res": 1},
	}

	_, err := ApplyRules(tags, Rules{
		CategoryPositive: {"a": {"b"}, "": {"x"}},
		CategoryNegative: {"lowres": {"low res"}},
		"neutral":        {"x": {"y"}},
	})

	var pf *PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, []string{CategoryNegative}, pf.Committed)
	assert.Contains(t, pf.Failed, CategoryPositive)
	assert.Contains(t, pf.Failed, "neutral")
	assert.True(t, errors.Is(err, ErrInvalidRule))
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	assert.Equal(t, map[string]int{"a": 1, "b": 2}, tags.Positive, "failed category untouched")
	assert.Equal(t, map[string]int{"lowres": 3}, tags.Negative)
}

func TestApplyBlacklist(t *testing.T) {
	t.Parallel()

	tags := &Tags{
		Positive: map[string]int{"solo": 4, "keep": 1},
		Negative: map[string]int{"lowres": 2},
	}
	removed, err := ApplyBlacklist(tags, Blacklist{
		CategoryPositive: {"solo", "absent"},
		CategoryNegative: {"lowres"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, map[string]int{"keep": 1}, tags.Positive)
	assert.Empty(t, tags.Negative)

	_, err = ApplyBlacklist(tags, Blacklist{"other": {"keep"}})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestSimilar(t *testing.T) {
	t.Parallel()

	counters := map[string]int{"long hair": 10, "long_hair": 8, "longhair": 6, "red": 20}
	got := Similar(counters, "Long Hair", 0.8)

	require.Len(t, got, 2)
	assert.Equal(t, "longhair", got[0].Tag)
	assert.Equal(t, "long_hair", got[1].Tag)
	assert.InDelta(t, 16.0/18.0, got[1].Similarity, 1e-9)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	counters := map[string]int{
		"long hair": 10,
		"long_hair": 8,
		"longhair":  6,
		"blue eyes": 7,
		"blue_eye":  1,
		"red":       20,
	}

	got := Suggest(counters, 5, 0.8)
	assert.Equal(t, []Suggestion{
		{Target: "long hair", Count: 10, Similar: []string{"longhair", "long_hair"}},
	}, got)

	assert.Len(t, counters, 6, "suggestions never mutate")
	assert.Empty(t, Suggest(counters, 50, 0.8))
}

func TestFixMisclassified(t *testing.T) {
	t.Parallel()

	tags := &Tags{
		Positive: map[string]int{
			"masterpiece":   5,
			"worst_quality": 3,
			"golden hair":   2,
			"old man":       1,
		},
		Negative: map[string]int{"worst_quality": 2},
	}

	result := FixMisclassified(tags, []string{"old", "worst quality"}, true)
	assert.Equal(t, []Moved{{Tag: "old man", Count: 1}, {Tag: "worst_quality", Count: 3}}, result.Moved)
	assert.Equal(t, 4, result.Occurrences)
	assert.Equal(t, map[string]int{"masterpiece": 5, "golden hair": 2}, tags.Positive)
	assert.Equal(t, map[string]int{"worst_quality": 5, "old man": 1}, tags.Negative)

	again := FixMisclassified(tags, []string{"old", "worst quality"}, true)
	assert.Empty(t, again.Moved)
	assert.Zero(t, again.Occurrences)
}

func TestFixMisclassifiedDefaultList(t *testing.T) {
	t.Parallel()

	tags := &Tags{Positive: map[string]int{
		"watermarked":       3,
		"blurry_background": 2,
		"monochrome":        4,
		"text":              1,
		"errors":            1,
		"detailed":          4,
		"masterpiece":       6,
	}}
	result := FixMisclassified(tags, DefaultDenyList(), false)

	assert.Equal(t, map[string]int{"detailed": 4, "masterpiece": 6}, tags.Positive)
	assert.Equal(t, map[string]int{
		"watermarked":       3,
		"blurry_background": 2,
		"monochrome":        4,
		"text":              1,
		"errors":            1,
	}, tags.Negative)
	assert.Equal(t, 11, result.Occurrences)
}

func TestFixMisclassifiedMatchModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		wholeWords bool
		want       map[string]int
	}{
		{"substring", false, map[string]int{"masterpiece": 1}},
		{"whole words", true, map[string]int{"masterpiece": 1, "golden hair": 2}},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tags := &Tags{Positive: map[string]int{
				"masterpiece":   1,
				"golden hair":   2,
				"old_man":       1,
				"worst_quality": 1,
			}}
			FixMisclassified(tags, []string{"old", "worst quality"}, tt.wholeWords)
			assert.Equal(t, tt.want, tags.Positive)
		})
	}
}

func TestContainsWord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s, term string
		want    bool
	}{
		{"old", "old", true},
		{"old man", "old", true},
		{"very old", "old", true},
		{"golden", "old", false},
		{"golden old", "old", true},
		{"rating:explicit", "rating:explicit", true},
		{"b&w photo", "b&w", true},
		{"", "old", false},
	}

	for _, tt := range tests {

		tt := tt
		assert.Equal(t, tt.want, containsWord(tt.s, tt.term), "%q in %q", tt.term, tt.s)
	}
}

func TestRulesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")

	rules, err := LoadRules(path)
	require.NoError(t, err, "missing file is empty")
	assert.Empty(t, rules)

	want := Rules{CategoryPositive: {"1girl": {"1 girl"}}}
	require.NoError(t, SaveRules(path, want))
	got, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadRules(path)
	assert.Error(t, err)
}

func TestBlacklistFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.json")

	require.NoError(t, SaveBlacklist(path, Blacklist{CategoryPositive: {"a"}}))
	require.NoError(t, SaveBlacklist(path, Blacklist{CategoryPositive: {"a", "b"}}))

	got, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.Equal(t, Blacklist{CategoryPositive: {"a", "b"}}, got)
	assert.FileExists(t, path+".bak")
}

func TestWriteTagsCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	counters := map[string]int{"long hair": 10, "long_hair": 8}
	require.NoError(t, WriteTagsCSV(&buf, counters, strings.ToUpper, DefaultOptions()))

	assert.Equal(t, "Tag,Count,Normalized,Suggestions\n"+
		"long hair,10,LONG HAIR,long_hair\n"+
		"long_hair,8,LONG_HAIR,long hair\n", buf.String())
}
