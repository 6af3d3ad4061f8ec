package extract

import (
	"regexp"
	"strconv"
	"strings"

	"metapick/internal/record"
)

// ModelInfo holds model related values found in parameter text.
type ModelInfo struct {
	Model     string
	ModelHash string
	VAE       string
	VAEHash   string
	Version   string
}

var (
	modelNameRe = regexp.MustCompile(`(?i)(?:^|[,\n]\s*)Model\s*[:=]\s*([^,\n]+?)\s*(?:,|\n|$)`)
	vaeRe       = regexp.MustCompile(`(?i)(?:^|[,\n]\s*)VAE\s*[:=]\s*([^,\n]+?)\s*(?:,|\n|$)`)
	vaeHashRe   = regexp.MustCompile(`(?i)VAE\s*hash\s*[:=]?\s*([a-f0-9]+)`)
	versionRe   = regexp.MustCompile(`(?i)(?:^|[,\n]\s*)Version\s*[:=]?\s*([^,\n]+)`)

	hiresUpscaleRe  = regexp.MustCompile(`(?i)Hires\s*upscale\s*[:=]?\s*([0-9.]+)`)
	hiresStepsRe    = regexp.MustCompile(`(?i)Hires\s*steps\s*[:=]?\s*([0-9]+)`)
	hiresUpscalerRe = regexp.MustCompile(`(?i)Hires\s*upscaler\s*[:=]?\s*([^,\n]+)`)
	hiresResizeRe   = regexp.MustCompile(`(?i)Hires\s*resize\s*[:=]?\s*([0-9]+)\s*x\s*([0-9]+)`)
)

// controlNetPatterns lists, per field, the explicit "ControlNet Model: x"
// form followed by the unit form `ControlNet 0: "Module: x, Model: y, ..."`.
var controlNetPatterns = struct {
	model, weight, start, end, preprocessor []*regexp.Regexp
}{
	model: []*regexp.Regexp{
		regexp.MustCompile(`(?i)ControlNet\s*Model\s*[:=]\s*([^,\n"]+)`),
		regexp.MustCompile(`(?i)ControlNet(?:\s*[0-9]+)?\s*:\s*"[^"]*?\bModel\s*:\s*([^,"]+)`),
		regexp.MustCompile(`(?i)ControlNet\s*[:=]\s*([^,\n"]+)`),
	},
	weight: []*regexp.Regexp{
		regexp.MustCompile(`(?i)ControlNet\s*Weight\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)ControlNet(?:\s*[0-9]+)?\s*:\s*"[^"]*?\bWeight\s*:\s*([0-9.]+)`),
	},
	start: []*regexp.Regexp{
		regexp.MustCompile(`(?i)ControlNet\s*Guidance\s*Start\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)ControlNet(?:\s*[0-9]+)?\s*:\s*"[^"]*?\bGuidance\s*Start\s*:\s*([0-9.]+)`),
	},
	end: []*regexp.Regexp{
		regexp.MustCompile(`(?i)ControlNet\s*Guidance\s*End\s*[:=]?\s*([0-9.]+)`),
		regexp.MustCompile(`(?i)ControlNet(?:\s*[0-9]+)?\s*:\s*"[^"]*?\bGuidance\s*End\s*:\s*([0-9.]+)`),
	},
	preprocessor: []*regexp.Regexp{
		regexp.MustCompile(`(?i)ControlNet\s*Preprocessor\s*[:=]?\s*([^,\n"]+)`),
		regexp.MustCompile(`(?i)ControlNet(?:\s*[0-9]+)?\s*:\s*"[^"]*?\bModule\s*:\s*([^,"]+)`),
	},
}

// ExtractModelInfo reads model name, hashes, VAE and version.
func ExtractModelInfo(text string) ModelInfo {
	return ModelInfo{
		Model:     matchString(modelNameRe, text),
		ModelHash: matchString(modelHashRe, text),
		VAE:       matchString(vaeRe, text),
		VAEHash:   matchString(vaeHashRe, text),
		Version:   matchString(versionRe, text),
	}
}

// Apply copies every set value into rec.
func (m ModelInfo) Apply(rec *record.Record) {
	if m.Model != "" {
		rec.Model = m.Model
	}
	if m.ModelHash != "" {
		rec.ModelHash = m.ModelHash
	}
	if m.VAE != "" {
		rec.VAE = m.VAE
	}
	if m.VAEHash != "" {
		rec.VAEHash = m.VAEHash
	}
	if m.Version != "" {
		rec.Version = m.Version
	}
}

// HiRes returns the hi-res fix settings in text, or nil when there are none.
func HiRes(text string) *record.HiRes {
	h := &record.HiRes{
		Upscale:  matchFloat(hiresUpscaleRe, text),
		Steps:    matchInt(hiresStepsRe, text),
		Upscaler: matchString(hiresUpscalerRe, text),
	}
	if m := hiresResizeRe.FindStringSubmatch(text); m != nil {
		h.ResizeWidth = ParseInt(m[1])
		h.ResizeHeight = ParseInt(m[2])
	}
	if h.IsEmpty() {
		return nil
	}
	return h
}

// ControlNet returns the ControlNet settings in text, or nil when there are
// none.
func ControlNet(text string) *record.ControlNet {
	c := &record.ControlNet{
		Model:         firstString(controlNetPatterns.model, text),
		Weight:        firstFloat(controlNetPatterns.weight, text),
		GuidanceStart: firstFloat(controlNetPatterns.start, text),
		GuidanceEnd:   firstFloat(controlNetPatterns.end, text),
		Preprocessor:  firstString(controlNetPatterns.preprocessor, text),
	}
	if c.IsEmpty() {
		return nil
	}
	return c
}

var (
	sizeRe   = regexp.MustCompile(`(?i)\b(?:Size|Resolution|Dimensions)\s*[:=]?\s*([0-9]+)\s*x\s*([0-9]+)`)
	pixelsRe = regexp.MustCompile(`(?i)([0-9]+)\s*x\s*([0-9]+)\s*pixels`)
	widthRe  = regexp.MustCompile(`(?i)Width\s*[:=]?\s*([0-9]+).*?Height\s*[:=]?\s*([0-9]+)`)
)

// Dimensions finds width and height in text. The patterns are tried in
// order: an explicit "Size: WxH", "W x H pixels", then separate Width and
// Height values. Either side outside the valid range is returned as nil.
func Dimensions(text string) (width, height *int) {
	for _, re := range []*regexp.Regexp{sizeRe, pixelsRe, widthRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		w, errW := strconv.Atoi(m[1])
		h, errH := strconv.Atoi(m[2])
		if errW != nil || errH != nil {
			continue
		}
		if record.ValidDimension(w) {
			width = &w
		}
		if record.ValidDimension(h) {
			height = &h
		}
		return width, height
	}
	return nil, nil
}

var loraRe = regexp.MustCompile(`(?i)<lora:([^:>]+)(?::(-?[0-9.]+))?>`)

// LoRA lists the <lora:name[:weight]> references in text in order. A
// missing or unparseable weight is 1.0.
func LoRA(text string) []record.LoRA {
	var out []record.LoRA
	for _, m := range loraRe.FindAllStringSubmatch(text, -1) {
		weight := 1.0
		if v := ParseFloat(m[2]); v != nil {
			weight = *v
		}
		out = append(out, record.LoRA{Name: strings.TrimSpace(m[1]), Weight: weight})
	}
	return out
}

func firstString(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if s := matchString(re, text); s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(patterns []*regexp.Regexp, text string) *float64 {
	for _, re := range patterns {
		if v := matchFloat(re, text); v != nil {
			return v
		}
	}
	return nil
}
