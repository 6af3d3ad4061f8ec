// Package parser turns raw image metadata into a canonical record.
//
// Each generator layout is handled by a Plugin. A Chain evaluates the
// registered plugins in order, keeps the record with the most resolved
// fields and falls back to the permissive GeneralAI plugin. Plugin failures,
// including panics, only exclude that plugin from the current call.
package parser
