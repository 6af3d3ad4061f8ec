package parser

import (
	"regexp"
	"strings"

	"metapick/internal/extract"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
)

// Key sets consulted before any text scanning, in priority order.
var (
	promptKeys   = []string{"prompt", "positive_prompt", "text", "description"}
	negativeKeys = []string{"negative_prompt", "negative", "unwanted"}
	modelKeys    = []string{"model", "model_name", "checkpoint", "ckpt"}
	baseKeys     = []string{"base_model", "base", "foundation_model"}
	widthKeys    = []string{"width", "w", "image_width"}
	heightKeys   = []string{"height", "h", "image_height"}
	sizeKeys     = []string{"size", "dimensions", "resolution"}
	samplerKeys  = []string{"sampler", "sampling_method"}
	schedKeys    = []string{"scheduler", "scheduling"}
)

// cameraKeys collide with EXIF camera fields. They are not used as
// generation settings when the metadata names a camera Make.
var cameraKeys = map[string]bool{"model": true}

// textKeys hold free-form text that may embed generation settings.
var textKeys = []string{
	"parameters", "comment", "description", "usercomment", "imagedescription",
	"xpcomment", "artist", "copyright",
}

// knownTools maps lowercase mentions to a source name. The first hit wins.
var knownTools = []struct {
	needles []string
	source  string
}{
	{[]string{"stable diffusion", "automatic1111"}, "Stable Diffusion"},
	{[]string{"midjourney"}, "Midjourney"},
	{[]string{"dall-e", "dalle"}, "DALL-E"},
	{[]string{"leonardo"}, "Leonardo AI"},
	{[]string{"civitai"}, "CivitAI"},
	{[]string{"runway"}, "Runway ML"},
	{[]string{"artbreeder"}, "Artbreeder"},
	{[]string{"dreamstudio"}, "DreamStudio"},
	{[]string{"firefly"}, "Adobe Firefly"},
}

var (
	settingRe   = regexp.MustCompile(`(?i)\b(?:seed|steps|cfg|sampler|prompt|model)\s*[:=]\s*\S`)
	sizeValueRe = regexp.MustCompile(`([0-9]+)\s*[x×]\s*([0-9]+)`)

	generalPositiveRe = regexp.MustCompile(`(?im)(?:^|[^a-z ]\s*)(?:positive\s*)?prompt\s*[:=]\s*["']?([^"\n]+)`)
	generalNegativeRe = regexp.MustCompile(`(?im)(?:negative\s*prompt|\bavoid)\s*[:=]\s*["']?([^"\n]+)`)
	generalVersionRe  = regexp.MustCompile(`(?i)\bversion\s*[:=]\s*([^,\n;]+)`)
)

// generalPatterns is tried field by field; the first matching pattern of a
// field wins.
var generalPatterns = struct {
	seed, steps, cfg, sampler, scheduler, model, hash, denoise, clipSkip []*regexp.Regexp
}{
	seed: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bseed\s*[:=]?\s*(-?[0-9]+)`),
	},
	steps: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsteps\s*[:=]?\s*([0-9]+)`),
		regexp.MustCompile(`(?i)\biterations\s*[:=]?\s*([0-9]+)`),
	},
	cfg: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcfg\s*scale\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)\bguidance\s*scale\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)\bcfg\s*[:=]?\s*([0-9.]+)`),
	},
	sampler: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsampler\s*[:=]\s*([^,\n;]+)`),
		regexp.MustCompile(`(?i)\bsampling\s*method\s*[:=]\s*([^,\n;]+)`),
	},
	scheduler: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bscheduler\s*[:=]\s*([^,\n;]+)`),
		regexp.MustCompile(`(?i)\bschedule\s*type\s*[:=]\s*([^,\n;]+)`),
	},
	model: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmodel\s*[:=]\s*([^,\n;]+)`),
		regexp.MustCompile(`(?i)\bcheckpoint\s*[:=]\s*([^,\n;]+)`),
	},
	hash: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmodel\s*hash\s*[:=]?\s*([a-f0-9]+)`),
		regexp.MustCompile(`(?i)\bhash\s*[:=]?\s*([a-f0-9]{8,})`),
	},
	denoise: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bdenoising\s*strength\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)\bnoise\s*strength\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)\bstrength\s*[:=]?\s*([0-9.]+)`),
	},
	clipSkip: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bclip\s*skip\s*[:=]?\s*([0-9]+)`),
	},
}

// GeneralAI is the fallback plugin for metadata that names generation
// settings without following a known tool's layout.
type GeneralAI struct{}

// NewGeneralAI returns the GeneralAI fallback plugin.
func NewGeneralAI() *GeneralAI { return &GeneralAI{} }

func (*GeneralAI) Name() string { return NameGeneralAI }

func (*GeneralAI) Detect(raw rawmeta.RawMetadata) bool {
	camera := fromCamera(raw)
	for _, keys := range [][]string{promptKeys, negativeKeys, modelKeys, samplerKeys} {
		for _, k := range keys {
			if k == "description" || k == "text" || (camera && cameraKeys[k]) {
				continue
			}
			if _, ok := raw.Text(k); ok {
				return true
			}
		}
	}
	text := generalText(raw)
	return settingRe.MatchString(text) || toolSource(text) != ""
}

func (*GeneralAI) Parse(raw rawmeta.RawMetadata) (*record.Record, error) {
	rec := &record.Record{Source: record.SourceAIGenerated}

	fromKeys(rec, raw)

	text := generalText(raw)
	if source := toolSource(text); source != "" {
		rec.Source = source
	}
	if text != "" {
		fromText(rec, text)
	}
	rec.LoRA = extract.LoRA(rec.Prompt)
	return rec, nil
}

func fromKeys(rec *record.Record, raw rawmeta.RawMetadata) {
	if s, ok := raw.FirstText(promptKeys...); ok {
		rec.Prompt = strings.TrimSpace(s)
	}
	if s, ok := raw.FirstText(negativeKeys...); ok {
		rec.NegativePrompt = strings.TrimSpace(s)
	}
	if s, ok := raw.FirstText(settingKeys(raw, modelKeys)...); ok {
		rec.Model = strings.TrimSpace(s)
	}
	if s, ok := raw.FirstText(baseKeys...); ok {
		rec.BaseModel = strings.TrimSpace(s)
	}
	if s, ok := raw.FirstText(samplerKeys...); ok {
		rec.Sampler = strings.TrimSpace(s)
	}
	if s, ok := raw.FirstText(schedKeys...); ok {
		rec.Scheduler = strings.TrimSpace(s)
	}
	if s, ok := raw.Text("steps"); ok {
		rec.Steps = extract.ParseInt(s)
	}
	if s, ok := raw.FirstText("cfg", "cfg_scale"); ok {
		rec.CFG = extract.ParseFloat(s)
	}
	if s, ok := raw.Text("seed"); ok {
		if n, ok := asInt64(s); ok {
			rec.Seed = &n
		}
	}
	for _, k := range widthKeys {
		if s, ok := raw.Text(k); ok {
			if n := extract.ParseInt(s); n != nil {
				rec.Width = n
				break
			}
		}
	}
	for _, k := range heightKeys {
		if s, ok := raw.Text(k); ok {
			if n := extract.ParseInt(s); n != nil {
				rec.Height = n
				break
			}
		}
	}
	if s, ok := raw.FirstText(sizeKeys...); ok {
		if m := sizeValueRe.FindStringSubmatch(s); m != nil {
			rec.Width = extract.ParseInt(m[1])
			rec.Height = extract.ParseInt(m[2])
		}
	}
}

// fromCamera reports whether raw carries EXIF camera identification.
func fromCamera(raw rawmeta.RawMetadata) bool {
	_, ok := raw.Text("Make")
	return ok
}

// settingKeys drops camera field names from keys when raw came from a camera.
func settingKeys(raw rawmeta.RawMetadata, keys []string) []string {
	if !fromCamera(raw) {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !cameraKeys[k] {
			out = append(out, k)
		}
	}
	return out
}

// fromText fills fields still empty after the key lookups.
func fromText(rec *record.Record, text string) {
	if rec.Seed == nil {
		if s := firstCapture(generalPatterns.seed, text); s != "" {
			if n, ok := asInt64(s); ok {
				rec.Seed = &n
			}
		}
	}
	if rec.Steps == nil {
		rec.Steps = extract.ParseInt(firstCapture(generalPatterns.steps, text))
	}
	if rec.CFG == nil {
		rec.CFG = extract.ParseFloat(firstCapture(generalPatterns.cfg, text))
	}
	if rec.Sampler == "" {
		rec.Sampler = unquote(firstCapture(generalPatterns.sampler, text))
	}
	if rec.Scheduler == "" {
		rec.Scheduler = unquote(firstCapture(generalPatterns.scheduler, text))
	}
	if rec.ModelHash == "" {
		rec.ModelHash = firstCapture(generalPatterns.hash, text)
	}
	if rec.Model == "" {
		rec.Model = unquote(firstCapture(generalPatterns.model, text))
	}
	if rec.DenoisingStrength == nil {
		rec.DenoisingStrength = extract.ParseFloat(firstCapture(generalPatterns.denoise, text))
	}
	if rec.ClipSkip == nil {
		rec.ClipSkip = extract.ParseInt(firstCapture(generalPatterns.clipSkip, text))
	}
	if rec.Width == nil || rec.Height == nil {
		w, h := extract.Dimensions(text)
		if rec.Width == nil {
			rec.Width = w
		}
		if rec.Height == nil {
			rec.Height = h
		}
	}
	if rec.Version == "" {
		rec.Version = capturedString(generalVersionRe, text)
	}

	if rec.Prompt == "" {
		if s := unquote(capturedString(generalPositiveRe, text)); len(s) > 3 {
			rec.Prompt = s
		}
	}
	if rec.NegativePrompt == "" {
		if s := unquote(capturedString(generalNegativeRe, text)); len(s) > 3 {
			rec.NegativePrompt = s
		}
	}
	if rec.Prompt == "" {
		first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
		first = strings.TrimSpace(first)
		if len(first) > 10 && !strings.ContainsAny(first, ":=") {
			rec.Prompt = first
		}
	}
}

// generalText joins the free-form text values.
func generalText(raw rawmeta.RawMetadata) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, k := range textKeys {
		s, ok := raw.Text(k)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}

func toolSource(text string) string {
	lower := strings.ToLower(text)
	for _, tool := range knownTools {
		for _, needle := range tool.needles {
			if strings.Contains(lower, needle) {
				return tool.source
			}
		}
	}
	return ""
}

func firstCapture(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if s := capturedString(re, text); s != "" {
			return s
		}
	}
	return ""
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
