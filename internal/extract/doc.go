// Package extract holds the text primitives the parsers share: prompt
// splitting, the technical parameter tables, dimension, LoRA, ControlNet and
// hi-res extraction, emphasis stripping and tag splitting.
//
// Every function is total. Unmatched input yields zero values, and numeric
// values outside their accepted range are dropped rather than clamped.
package extract
