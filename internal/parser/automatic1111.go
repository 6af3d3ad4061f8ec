package parser

import (
	"strings"

	"metapick/internal/extract"
	"metapick/internal/rawmeta"
	"metapick/internal/record"
)

// a1111Markers are the settings labels that identify Automatic1111 text.
var a1111Markers = []string{"Negative prompt:", "Steps:", "Seed:", "CFG scale:"}

// Automatic1111 parses the "parameters" text written by the Automatic1111
// web UI and its forks. JPEG and WebP files carry the same text in the
// EXIF UserComment.
type Automatic1111 struct{}

// NewAutomatic1111 returns the Automatic1111 plugin.
func NewAutomatic1111() *Automatic1111 { return &Automatic1111{} }

func (*Automatic1111) Name() string { return NameAutomatic1111 }

func (*Automatic1111) Detect(raw rawmeta.RawMetadata) bool {
	return a1111Text(raw) != ""
}

func (*Automatic1111) Parse(raw rawmeta.RawMetadata) (*record.Record, error) {
	text := a1111Text(raw)
	rec := &record.Record{Source: record.SourceAutomatic1111}

	positive, negative := extract.SplitA1111(text)
	rec.Prompt = extract.CleanPrompt(positive)
	rec.NegativePrompt = extract.CleanPrompt(negative)
	rec.LoRA = extract.LoRA(positive)

	block := extract.ParameterBlock(text)
	extract.TechnicalParams(block).Apply(rec)
	extract.ExtractModelInfo(block).Apply(rec)
	rec.HiRes = extract.HiRes(block)
	rec.ControlNet = extract.ControlNet(block)
	rec.Width, rec.Height = extract.Dimensions(block)

	return rec, nil
}

// a1111Text returns the first candidate value that carries at least one
// Automatic1111 settings label.
func a1111Text(raw rawmeta.RawMetadata) string {
	for _, key := range []string{"parameters", "Parameters", "UserComment"} {
		s, ok := raw.Text(key)
		if !ok {
			continue
		}
		for _, marker := range a1111Markers {
			if strings.Contains(s, marker) {
				return s
			}
		}
	}
	return ""
}
