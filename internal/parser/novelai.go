package parser

import (
	"encoding/base64"
	"regexp"
	"strings"

	"metapick/internal/extract"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
)

var (
	naiWordRe = regexp.MustCompile(`(?i)\bnai\b`)

	naiStepsRe     = regexp.MustCompile(`(?i)\bSteps\s*[:=]?\s*([0-9]+)`)
	naiScaleRe     = regexp.MustCompile(`(?i)(?:CFG scale|\bScale)\s*[:=]?\s*([0-9.]+)`)
	naiSamplerRe   = regexp.MustCompile(`(?i)\bSampler\s*[:=]?\s*([^,\n]+)`)
	naiSeedRe      = regexp.MustCompile(`(?i)\bSeed\s*[:=]?\s*(-?[0-9]+)`)
	naiModelRe     = regexp.MustCompile(`(?i)\bModel\s*[:=]\s*([^,\n]+)`)
	naiWidthRe     = regexp.MustCompile(`(?i)\b(?:Width|Size)\s*[:=]?\s*([0-9]+)`)
	naiHeightRe    = regexp.MustCompile(`(?i)\bHeight\s*[:=]?\s*([0-9]+)`)
	naiStrengthRe  = regexp.MustCompile(`(?i)(?:Denoising strength|\bStrength)\s*[:=]?\s*([0-9.]+)`)
	naiPositiveRe  = regexp.MustCompile(`(?i)(?:Positive prompt|(?:^|\n)\s*Prompt)\s*:\s*([^\n]+)`)
	naiNegativeRe  = regexp.MustCompile(`Negative prompt:\s*([^\n]+)`)
	naiMarkerKeys  = []string{"Comment", "Software", "Title"}
	naiSettingKeys = []string{"steps", "scale", "sampler"}
)

// NovelAI parses images from NovelAI. Settings live in a JSON Comment,
// sometimes base64 encoded; the prompt is also kept in Description.
type NovelAI struct{}

// NewNovelAI returns the NovelAI plugin.
func NewNovelAI() *NovelAI { return &NovelAI{} }

func (*NovelAI) Name() string { return NameNovelAI }

func (*NovelAI) Detect(raw rawmeta.RawMetadata) bool {
	for _, key := range naiMarkerKeys {
		if s, ok := raw.Text(key); ok && mentionsNovelAI(s) {
			return true
		}
	}
	params := strings.ToLower(parametersText(raw))
	if strings.Contains(params, "novelai") || strings.Contains(params, "nai diffusion") {
		return true
	}
	if obj, ok := naiComment(raw); ok && hasAnyKey(obj, naiSettingKeys...) {
		return true
	}
	return false
}

func (*NovelAI) Parse(raw rawmeta.RawMetadata) (*record.Record, error) {
	rec := &record.Record{Source: record.SourceNovelAI}

	if obj, ok := naiComment(raw); ok {
		applyNovelAIComment(rec, obj)
	}

	if params := parametersText(raw); params != "" {
		applyNovelAIParameters(rec, params)
	}

	if rec.Prompt == "" {
		if s, ok := raw.Text("Description"); ok {
			rec.Prompt = strings.TrimSpace(s)
		}
	}
	if rec.Model == "" {
		if s, ok := raw.Text("Source"); ok {
			rec.Model = strings.TrimSpace(s)
		}
	}
	if rec.Width == nil {
		if s, ok := raw.Text(rawmeta.KeyImageWidth); ok {
			rec.Width = extract.ParseInt(s)
		}
	}
	if rec.Height == nil {
		if s, ok := raw.Text(rawmeta.KeyImageHeight); ok {
			rec.Height = extract.ParseInt(s)
		}
	}
	rec.LoRA = extract.LoRA(rec.Prompt)
	return rec, nil
}

func mentionsNovelAI(s string) bool {
	return strings.Contains(strings.ToLower(s), "novelai") || naiWordRe.MatchString(s)
}

// naiComment decodes the Comment value as JSON, directly or after base64.
func naiComment(raw rawmeta.RawMetadata) (map[string]any, bool) {
	s, ok := raw.Text("Comment")
	if !ok {
		return nil, false
	}
	if obj, ok := decodeObject(s); ok {
		return obj, true
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	return decodeObject(string(decoded))
}

func applyNovelAIComment(rec *record.Record, obj map[string]any) {
	if n, ok := asInt(obj["steps"]); ok {
		rec.Steps = n
	}
	if f, ok := asFloat(obj["scale"]); ok {
		rec.CFG = f
	}
	if s, ok := asString(obj["sampler"]); ok {
		rec.Sampler = s
	}
	if n, ok := asInt64(obj["seed"]); ok {
		rec.Seed = &n
	}
	if f, ok := asFloat(obj["strength"]); ok {
		rec.DenoisingStrength = f
	}
	if n, ok := asInt(obj["width"]); ok {
		rec.Width = n
	}
	if n, ok := asInt(obj["height"]); ok {
		rec.Height = n
	}
	if s, ok := asString(obj["uc"]); ok {
		rec.NegativePrompt = s
	}
	for _, key := range []string{"input", "prompt"} {
		if s, ok := asString(obj[key]); ok {
			rec.Prompt = s
			break
		}
	}
	if s, ok := asString(obj["model"]); ok {
		rec.Model = s
	}
	if s, ok := asString(obj["noise_schedule"]); ok {
		rec.Scheduler = s
	}
}

// applyNovelAIParameters fills fields the Comment did not provide.
func applyNovelAIParameters(rec *record.Record, params string) {
	if rec.Steps == nil {
		rec.Steps = capturedInt(naiStepsRe, params)
	}
	if rec.CFG == nil {
		if m := naiScaleRe.FindStringSubmatch(params); m != nil {
			rec.CFG = extract.ParseFloat(m[1])
		}
	}
	if rec.Sampler == "" {
		rec.Sampler = capturedString(naiSamplerRe, params)
	}
	if rec.Seed == nil {
		if m := naiSeedRe.FindStringSubmatch(params); m != nil {
			if n, ok := asInt64(m[1]); ok {
				rec.Seed = &n
			}
		}
	}
	if rec.Model == "" {
		rec.Model = capturedString(naiModelRe, params)
	}
	if rec.Width == nil {
		rec.Width = capturedInt(naiWidthRe, params)
	}
	if rec.Height == nil {
		rec.Height = capturedInt(naiHeightRe, params)
	}
	if rec.DenoisingStrength == nil {
		if m := naiStrengthRe.FindStringSubmatch(params); m != nil {
			rec.DenoisingStrength = extract.ParseFloat(m[1])
		}
	}
	if rec.Prompt == "" {
		if s := capturedString(naiPositiveRe, params); s != "" {
			rec.Prompt = s
		} else if first, _, _ := strings.Cut(params, "\n"); !strings.Contains(first, ":") {
			rec.Prompt = strings.TrimSpace(first)
		}
	}
	if rec.NegativePrompt == "" {
		rec.NegativePrompt = capturedString(naiNegativeRe, params)
	}
}

func capturedString(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func capturedInt(re *regexp.Regexp, text string) *int {
	if m := re.FindStringSubmatch(text); m != nil {
		return extract.ParseInt(m[1])
	}
	return nil
}
