package consolidate

// Tag categories.
const (
	CategoryPositive = "positive"
	CategoryNegative = "negative"
)

// Categories lists the tag categories in application order.
var Categories = []string{CategoryPositive, CategoryNegative}

// Options holds the thresholds used by suggestions and the deny list used by
// FixMisclassified.
type Options struct {
	// Threshold is the minimum similarity ratio for two tags to be grouped.
	Threshold float64
	// MinCount is the minimum count a tag needs to take part in suggestions.
	MinCount int
	// SuggestionLimit caps the suggestions listed per tag in CSV exports.
	SuggestionLimit int
	// DenyList holds terms that never belong in positive prompts.
	DenyList []string
	// WholeWords restricts deny-list matches to word boundaries, so "old"
	// no longer catches "golden".
	WholeWords bool
}

// DefaultOptions returns the standard thresholds and deny list.
func DefaultOptions() Options {
	return Options{
		Threshold:       0.8,
		MinCount:        5,
		SuggestionLimit: 3,
		DenyList:        DefaultDenyList(),
	}
}

// DefaultDenyList returns terms that mark a tag as a negative prompt term.
// They match as substrings, so short terms such as "old" or "text" are broad.
func DefaultDenyList() []string {
	return []string{
		// quality
		"blurry", "bad_anatomy", "low_quality", "deformed", "disfigured", "cropped",
		"watermark", "text", "signature", "extra limbs", "missing limbs", "bad hands",
		"extra fingers", "missing fingers", "poorly drawn", "worst_quality",
		"low_res", "error", "jpeg artifacts", "artifacts", "compression artifacts",
		"bad proportions", "mutation", "mutated", "malformed", "gross proportions",
		"duplicate", "morbid", "mutilated", "extra heads", "poorly drawn hands",
		"poorly drawn face", "bad art", "beginner", "amateur",
		"distorted", "b&w", "black and white", "monochrome", "grayscale",
		"plastic skin", "oversaturated", "contrast", "bad_quality", "unclear",
		"fuzzy", "pixelated", "lowres", "normal_quality", "bad face", "ugly face",
		"asymmetric", "weird", "strange", "odd", "bizarre", "distorted face",
		"distorted body", "bad lighting", "overexposed", "underexposed",
		"ugly", "grainy", "grain", "noisy", "noise",
		"fused fingers", "fused limbs", "fused", "merged fingers", "webbed fingers",
		// age
		"child", "baby", "toddler", "infant", "kid", "minor", "underage",
		"elderly", "old", "aged",
		// body and rating
		"flat chest", "flat", "score_4", "score_3", "score_2", "score_1", "score_0",
		"rating:explicit", "rating:questionable", "nsfw", "nude", "naked", "penis",
		"vagina", "sex", "porn", "hentai", "erotic", "adult", "mature content",
	}
}
