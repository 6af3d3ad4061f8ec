// Package normalize canonicalizes prompt tags and model names and provides
// the string similarity measure used for consolidation suggestions.
package normalize
