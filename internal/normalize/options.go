package normalize

// UnknownModel is the display name for an empty or unusable model name.
const UnknownModel = "Unknown Model"

// Options holds the tables and limits used by a Normalizer.
type Options struct {
	// TagSynonyms maps a lowercased, space-collapsed tag to its canonical form.
	TagSynonyms map[string]string
	// UnderscorePatterns select the underscored form of a multi-word tag
	// that has no synonym entry.
	UnderscorePatterns []string

	// ModelExtensions, ModelPrefixes and ModelSuffixes are stripped from
	// model names, at most one of each, matched case-insensitively.
	ModelExtensions []string
	ModelPrefixes   []string
	ModelSuffixes   []string
	// MinAliasKeyLength is the shortest model key that may be merged with a
	// previously seen model by substring containment.
	MinAliasKeyLength int

	// MemoLimit caps each memo table. Zero disables memoization.
	MemoLimit int
}

// DefaultOptions returns the standard tables.
func DefaultOptions() Options {
	return Options{
		TagSynonyms:        defaultTagSynonyms(),
		UnderscorePatterns: []string{"_hair", "_eyes", "_breasts", "_quality", "_girl"},
		ModelExtensions:    []string{".safetensors", ".ckpt", ".pt", ".pth", ".bin"},
		ModelPrefixes:      []string{"checkpoint_", "model_", "final_"},
		ModelSuffixes:      []string{"_final", "_checkpoint", "_model", "_v1", "_v2", "_v3", "_epoch"},
		MinAliasKeyLength:  4,
		MemoLimit:          10000,
	}
}

func defaultTagSynonyms() map[string]string {
	return map[string]string{
		"1 girl":         "1girl",
		"2 girls":        "2girls",
		"3 girls":        "3girls",
		"4 girls":        "4girls",
		"5 girls":        "5girls",
		"multiple girls": "multiple_girls",
		"1 boy":          "1boy",
		"2 boys":         "2boys",
		"multiple boys":  "multiple_boys",

		"large breast":   "large_breasts",
		"large breasts":  "large_breasts",
		"big breast":     "large_breasts",
		"big breasts":    "large_breasts",
		"medium breast":  "medium_breasts",
		"medium breasts": "medium_breasts",
		"small breast":   "small_breasts",
		"small breasts":  "small_breasts",

		"high quality":   "high_quality",
		"best quality":   "best_quality",
		"worst quality":  "worst_quality",
		"low quality":    "low_quality",
		"normal quality": "normal_quality",

		"long hair":   "long_hair",
		"short hair":  "short_hair",
		"blue hair":   "blue_hair",
		"blonde hair": "blonde_hair",
		"brown hair":  "brown_hair",
		"black hair":  "black_hair",
		"red hair":    "red_hair",
		"white hair":  "white_hair",

		"blue eyes":   "blue_eyes",
		"brown eyes":  "brown_eyes",
		"green eyes":  "green_eyes",
		"red eyes":    "red_eyes",
		"yellow eyes": "yellow_eyes",

		"looking at viewer": "looking_at_viewer",
		"from behind":       "from_behind",
		"very long hair":    "very_long_hair",
		"perfect face":      "perfect_face",
		"detailed face":     "detailed_face",
		"detailed eyes":     "detailed_eyes",
		"bad anatomy":       "bad_anatomy",
		"bad hands":         "bad_hands",
		"missing limb":      "missing_limb",
		"extra limb":        "extra_limb",
		"floating limbs":    "floating_limbs",

		"hand":   "hands",
		"finger": "fingers",
		"limb":   "limbs",
	}
}
