// Package rename plans and applies batch renames of images from their
// parsed generation metadata.
//
// A pattern mixes literal text with placeholders such as {model} or
// {i:04d}. Placeholders that name an unknown field, or a field the record
// does not carry, expand to nothing.
package rename

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"metapick/internal/logging"
	"metapick/internal/record"
)

// DefaultPattern names files after their title hint and position.
const DefaultPattern = "{title}-{i:04d}"

var (
	placeholderRe = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_]+)(?::([^{}]*))?\}`)
	unsafeRe      = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	intSpecRe     = regexp.MustCompile(`^(0?)(\d*)d$`)
	floatSpecRe   = regexp.MustCompile(`^\.(\d+)f$`)
)

// Move is one planned rename.
type Move struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Skip is a planned move Apply did not perform.
type Skip struct {
	Move   Move   `json:"move"`
	Reason string `json:"reason"`
}

// Result reports what Apply did.
type Result struct {
	Renamed []Move `json:"renamed"`
	Skipped []Skip `json:"skipped"`
}

// Plan computes the target name of every record. Numbering starts at 1 and
// follows the order of recs. The extension of each file is kept. A pattern
// that expands to nothing usable falls back to "<stem>-<i:04d>".
func Plan(recs []*record.Record, pattern string) []Move {
	moves := make([]Move, 0, len(recs))
	i := 0
	for _, rec := range recs {
		if rec == nil || rec.Path == "" {
			continue
		}
		i++

		stem := SafeName(Expand(pattern, rec, i))
		if stem == "" {
			stem = fmt.Sprintf("%s-%04d", record.Stem(rec.Path), i)
		}

		dir := filepath.Dir(rec.Path)
		moves = append(moves, Move{
			Source: rec.Path,
			Target: filepath.Join(dir, stem+filepath.Ext(rec.Path)),
		})
	}
	return moves
}

// Apply performs moves in order. Moves whose target already exists, or
// whose source and target are the same, are skipped. A failed rename does
// not stop the remaining moves; all failures are returned together.
func Apply(moves []Move) (Result, error) {
	var (
		result Result
		errs   []error
	)

	for _, m := range moves {
		if m.Source == m.Target {
			result.Skipped = append(result.Skipped, Skip{Move: m, Reason: "unchanged"})
			continue
		}
		if _, err := os.Lstat(m.Target); err == nil {
			logging.Warn("Not renaming %s: %s already exists", m.Source, m.Target)
			result.Skipped = append(result.Skipped, Skip{Move: m, Reason: "target exists"})
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("check %s: %w", m.Target, err))
			continue
		}

		if err := os.Rename(m.Source, m.Target); err != nil {
			errs = append(errs, fmt.Errorf("rename %s: %w", m.Source, err))
			continue
		}
		logging.Debug("Renamed %s -> %s", m.Source, m.Target)
		result.Renamed = append(result.Renamed, m)
	}

	logging.Info("Renamed %d files (%d skipped, %d failed)", len(result.Renamed), len(result.Skipped), len(errs))
	return result, errors.Join(errs...)
}

// SafeName replaces every run of characters outside [A-Za-z0-9._-] with a
// dash and trims leading and trailing dashes and underscores.
func SafeName(s string) string {
	return strings.Trim(unsafeRe.ReplaceAllString(s, "-"), "-_")
}

// Expand substitutes the placeholders of pattern for rec at position i.
// "{{" and "}}" produce literal braces.
func Expand(pattern string, rec *record.Record, i int) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		sub := placeholderRe.FindStringSubmatch(m)
		return format(field(rec, i, sub[1]), sub[2])
	})
}

// field returns the value of a placeholder: a string, an int64, a float64,
// or nil when the record has no such value.
func field(rec *record.Record, i int, name string) any {
	switch strings.ToLower(name) {
	case "i", "index":
		return int64(i)
	case "title":
		return rec.TitleHint()
	case "stem":
		return record.Stem(rec.Path)
	case "model":
		return rec.Model
	case "base_model":
		return rec.BaseModel
	case "model_hash":
		return rec.ModelHash
	case "vae":
		return rec.VAE
	case "sampler":
		return rec.Sampler
	case "scheduler":
		return rec.Scheduler
	case "source":
		return rec.Source
	case "format":
		return rec.Format
	case "steps":
		return intValue(rec.Steps)
	case "cfg":
		if rec.CFG == nil {
			return nil
		}
		return *rec.CFG
	case "seed":
		if rec.Seed == nil {
			return nil
		}
		return *rec.Seed
	case "clip_skip":
		return intValue(rec.ClipSkip)
	case "width":
		return intValue(rec.Width)
	case "height":
		return intValue(rec.Height)
	}
	return nil
}

func intValue(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

// format renders v with a small subset of format specs: "04d"-style
// padded integers and ".2f"-style fixed floats. Other specs are ignored.
func format(v any, spec string) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		if m := intSpecRe.FindStringSubmatch(spec); m != nil && m[2] != "" {
			width, _ := strconv.Atoi(m[2])
			if m[1] == "0" {
				return fmt.Sprintf("%0*d", width, x)
			}
			return fmt.Sprintf("%*d", width, x)
		}
		return strconv.FormatInt(x, 10)
	case float64:
		if m := floatSpecRe.FindStringSubmatch(spec); m != nil {
			prec, _ := strconv.Atoi(m[1])
			return strconv.FormatFloat(x, 'f', prec, 64)
		}
		return record.FormatFloat(x)
	}
	return fmt.Sprint(v)
}
