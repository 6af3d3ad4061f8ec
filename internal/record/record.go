package record

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Source names reported in Record.Source.
const (
	SourceAutomatic1111 = "Automatic1111"
	SourceComfyUI       = "ComfyUI"
	SourceNovelAI       = "NovelAI"
	SourceAIGenerated   = "AI Generated"
	SourceUnrecognized  = "unrecognized"
)

// Validation bounds. Values outside these ranges are dropped, never clamped.
const (
	MinSteps     = 1
	MaxSteps     = 1000
	MinCFG       = 0.1
	MaxCFG       = 30.0
	MinDimension = 64
	MaxDimension = 8192
)

// LoRA is one <lora:name:weight> reference from a prompt.
type LoRA struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ControlNet holds ControlNet settings.
type ControlNet struct {
	Model         string   `json:"model,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
	GuidanceStart *float64 `json:"guidance_start,omitempty"`
	GuidanceEnd   *float64 `json:"guidance_end,omitempty"`
	Preprocessor  string   `json:"preprocessor,omitempty"`
}

// IsEmpty reports whether no ControlNet field is set.
func (c *ControlNet) IsEmpty() bool {
	return c == nil || (c.Model == "" && c.Weight == nil && c.GuidanceStart == nil &&
		c.GuidanceEnd == nil && c.Preprocessor == "")
}

// HiRes holds hi-res fix settings.
type HiRes struct {
	Upscale      *float64 `json:"upscale,omitempty"`
	Steps        *int     `json:"steps,omitempty"`
	Upscaler     string   `json:"upscaler,omitempty"`
	ResizeWidth  *int     `json:"resize_width,omitempty"`
	ResizeHeight *int     `json:"resize_height,omitempty"`
}

// IsEmpty reports whether no hi-res field is set.
func (h *HiRes) IsEmpty() bool {
	return h == nil || (h.Upscale == nil && h.Steps == nil && h.Upscaler == "" &&
		h.ResizeWidth == nil && h.ResizeHeight == nil)
}

// Record is the canonical set of generation parameters for one image.
// Absent values are nil pointers or empty strings.
type Record struct {
	Path         string `json:"path"`
	Format       string `json:"format,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	Source       string `json:"source"`
	Unrecognized bool   `json:"unrecognized,omitempty"`

	Model     string `json:"model,omitempty"`
	BaseModel string `json:"base_model,omitempty"`
	ModelHash string `json:"model_hash,omitempty"`
	VAE       string `json:"vae,omitempty"`
	VAEHash   string `json:"vae_hash,omitempty"`
	Version   string `json:"version,omitempty"`

	Sampler           string   `json:"sampler,omitempty"`
	Scheduler         string   `json:"scheduler,omitempty"`
	Steps             *int     `json:"steps,omitempty"`
	CFG               *float64 `json:"cfg,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	ClipSkip          *int     `json:"clip_skip,omitempty"`
	DenoisingStrength *float64 `json:"denoising_strength,omitempty"`
	ENSD              *int64   `json:"ensd,omitempty"`
	Eta               *float64 `json:"eta,omitempty"`
	Subseed           *int64   `json:"subseed,omitempty"`
	SubseedStrength   *float64 `json:"subseed_strength,omitempty"`

	Prompt         string `json:"prompt,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`

	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`

	LoRA       []LoRA      `json:"lora,omitempty"`
	ControlNet *ControlNet `json:"controlnet,omitempty"`
	HiRes      *HiRes      `json:"hires,omitempty"`

	Raw map[string]string `json:"raw,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// ValidSteps reports whether n is an acceptable step count.
func ValidSteps(n int) bool { return n >= MinSteps && n <= MaxSteps }

// ValidCFG reports whether v is an acceptable CFG scale.
func ValidCFG(v float64) bool { return v >= MinCFG && v <= MaxCFG }

// ValidDimension reports whether n is an acceptable width or height.
func ValidDimension(n int) bool { return n >= MinDimension && n <= MaxDimension }

// Validate drops every numeric field that is outside its bounds.
func (r *Record) Validate() {
	if r.Steps != nil && !ValidSteps(*r.Steps) {
		r.Steps = nil
	}
	if r.CFG != nil && !ValidCFG(*r.CFG) {
		r.CFG = nil
	}
	if r.Width != nil && !ValidDimension(*r.Width) {
		r.Width = nil
	}
	if r.Height != nil && !ValidDimension(*r.Height) {
		r.Height = nil
	}
	if r.ControlNet.IsEmpty() {
		r.ControlNet = nil
	}
	if r.HiRes.IsEmpty() {
		r.HiRes = nil
	}
}

// FieldCount returns the number of resolved generation fields. Bookkeeping
// fields (path, format, size, source, raw) are not counted.
func (r *Record) FieldCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, s := range []string{
		r.Model, r.BaseModel, r.ModelHash, r.VAE, r.VAEHash, r.Version,
		r.Sampler, r.Scheduler, r.Prompt, r.NegativePrompt,
	} {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	for _, set := range []bool{
		r.Steps != nil, r.CFG != nil, r.Seed != nil, r.ClipSkip != nil,
		r.DenoisingStrength != nil, r.ENSD != nil, r.Eta != nil,
		r.Subseed != nil, r.SubseedStrength != nil,
		r.Width != nil, r.Height != nil,
		len(r.LoRA) > 0, !r.ControlNet.IsEmpty(), !r.HiRes.IsEmpty(),
	} {
		if set {
			n++
		}
	}
	return n
}

// Dimensions returns "WxH", or "" when either side is unknown.
func (r *Record) Dimensions() string {
	if r.Width == nil || r.Height == nil {
		return ""
	}
	return strconv.Itoa(*r.Width) + "x" + strconv.Itoa(*r.Height)
}

// TitleHint builds a short descriptive name such as
// "sd-v1-5-s20-cfg7.5-seed123", falling back to the file stem.
func (r *Record) TitleHint() string {
	var parts []string
	if base := firstNonEmpty(r.Model, r.BaseModel); base != "" {
		parts = append(parts, base)
	}
	if r.Steps != nil {
		parts = append(parts, "s"+strconv.Itoa(*r.Steps))
	}
	if r.CFG != nil {
		parts = append(parts, "cfg"+FormatFloat(*r.CFG))
	}
	if r.Seed != nil {
		parts = append(parts, "seed"+strconv.FormatInt(*r.Seed, 10))
	}
	if len(parts) == 0 {
		if stem := Stem(r.Path); stem != "" {
			return stem
		}
		return "image"
	}
	return strings.Join(parts, "-")
}

// FormatFloat renders v without trailing zeros ("7", "7.5").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Unrecognized returns the stub record for input no parser understood.
func Unrecognized(raw map[string]string) *Record {
	return &Record{Source: SourceUnrecognized, Unrecognized: true, Raw: raw}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
