package parser

import (
	"metapick/internal/rawmeta"
	"metapick/internal/record"
)

// Plugin recognizes and parses one generator's metadata layout.
type Plugin interface {
	// Name identifies the plugin in logs and metrics.
	Name() string
	// Detect reports whether raw looks like this plugin's format.
	Detect(raw rawmeta.RawMetadata) bool
	// Parse builds a record from raw. It is only called after Detect
	// returned true.
	Parse(raw rawmeta.RawMetadata) (*record.Record, error)
}

// Plugin names as reported by Name and used as metric labels.
const (
	NameAutomatic1111 = "Automatic1111"
	NameComfyUI       = "ComfyUI"
	NameNovelAI       = "NovelAI"
	NameGeneralAI     = "GeneralAI"
	nameUnrecognized  = "unrecognized"
)

// parametersText returns the Automatic1111 style "parameters" value.
func parametersText(raw rawmeta.RawMetadata) string {
	s, _ := raw.FirstText("parameters", "Parameters")
	return s
}
