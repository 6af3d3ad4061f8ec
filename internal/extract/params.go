package extract

import (
	"regexp"
	"strconv"
	"strings"

	"metapick/internal/logging"
	"metapick/internal/record"
)

// Params holds the numeric and sampler settings found in parameter text.
type Params struct {
	Seed              *int64
	Steps             *int
	CFGScale          *float64
	Sampler           string
	Scheduler         string
	ModelHash         string
	ClipSkip          *int
	ENSD              *int64
	Eta               *float64
	DenoisingStrength *float64
	Subseed           *int64
	SubseedStrength   *float64
}

var (
	seedRe            = regexp.MustCompile(`(?i)\bSeed\s*[:=]?\s*(-?[0-9]+)`)
	stepsRe           = regexp.MustCompile(`(?i)(?:^|[^a-z ]\s*|\n)Steps\s*[:=]?\s*([0-9]+)`)
	cfgRe             = regexp.MustCompile(`(?i)CFG\s*scale\s*[:=]?\s*([0-9.]+)`)
	samplerRe         = regexp.MustCompile(`(?i)(?:^|[^a-z ]\s*)Sampler\s*[:=]?\s*([^,\n]+)`)
	schedulerRe       = regexp.MustCompile(`(?i)Schedule(?:r|\s+type)\s*[:=]?\s*([^,\n]+)`)
	modelHashRe       = regexp.MustCompile(`(?i)Model\s*hash\s*[:=]?\s*([a-f0-9]+)`)
	clipSkipRe        = regexp.MustCompile(`(?i)Clip\s*skip\s*[:=]?\s*([0-9]+)`)
	ensdRe            = regexp.MustCompile(`(?i)\bENSD\s*[:=]?\s*(-?[0-9]+)`)
	etaRe             = regexp.MustCompile(`(?i)\bEta\s*[:=]?\s*([0-9.]+)`)
	denoisingRe       = regexp.MustCompile(`(?i)Denoising\s*strength\s*[:=]?\s*([0-9.]+)`)
	subseedRe         = regexp.MustCompile(`(?i)(?:Variation\s*seed|Subseed)\s*[:=]?\s*(-?[0-9]+)`)
	subseedStrengthRe = regexp.MustCompile(`(?i)(?:Variation\s*seed\s*strength|Subseed\s*strength)\s*[:=]?\s*([0-9.]+)`)
)

// TechnicalParams extracts sampler settings from text. Steps and CFG scale
// outside their valid ranges are dropped.
func TechnicalParams(text string) Params {
	var p Params

	p.Seed = matchInt64(seedRe, text)
	if steps := matchInt(stepsRe, text); steps != nil {
		if record.ValidSteps(*steps) {
			p.Steps = steps
		} else {
			logging.Debug("Dropping out-of-range steps value %d", *steps)
		}
	}
	if cfg := matchFloat(cfgRe, text); cfg != nil {
		if record.ValidCFG(*cfg) {
			p.CFGScale = cfg
		} else {
			logging.Debug("Dropping out-of-range CFG scale %v", *cfg)
		}
	}
	p.Sampler = matchString(samplerRe, text)
	p.Scheduler = matchString(schedulerRe, text)
	p.ModelHash = matchString(modelHashRe, text)
	p.ClipSkip = matchInt(clipSkipRe, text)
	p.ENSD = matchInt64(ensdRe, text)
	p.Eta = matchFloat(etaRe, text)
	p.DenoisingStrength = matchFloat(denoisingRe, text)
	p.SubseedStrength = matchFloat(subseedStrengthRe, text)
	// "Variation seed strength" also starts with "Variation seed"; only a
	// numeric capture counts as the subseed.
	p.Subseed = matchInt64(subseedRe, text)

	return p
}

// Apply copies every set parameter into rec.
func (p Params) Apply(rec *record.Record) {
	if p.Seed != nil {
		rec.Seed = p.Seed
	}
	if p.Steps != nil {
		rec.Steps = p.Steps
	}
	if p.CFGScale != nil {
		rec.CFG = p.CFGScale
	}
	if p.Sampler != "" {
		rec.Sampler = p.Sampler
	}
	if p.Scheduler != "" {
		rec.Scheduler = p.Scheduler
	}
	if p.ModelHash != "" {
		rec.ModelHash = p.ModelHash
	}
	if p.ClipSkip != nil {
		rec.ClipSkip = p.ClipSkip
	}
	if p.ENSD != nil {
		rec.ENSD = p.ENSD
	}
	if p.Eta != nil {
		rec.Eta = p.Eta
	}
	if p.DenoisingStrength != nil {
		rec.DenoisingStrength = p.DenoisingStrength
	}
	if p.Subseed != nil {
		rec.Subseed = p.Subseed
	}
	if p.SubseedStrength != nil {
		rec.SubseedStrength = p.SubseedStrength
	}
}

func capture(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[len(m)-1])
}

func matchString(re *regexp.Regexp, text string) string {
	return strings.Trim(capture(re, text), `"' `)
}

func matchInt(re *regexp.Regexp, text string) *int {
	s := capture(re, text)
	if s == "" {
		return nil
	}
	return ParseInt(s)
}

func matchInt64(re *regexp.Regexp, text string) *int64 {
	s := capture(re, text)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func matchFloat(re *regexp.Regexp, text string) *float64 {
	s := capture(re, text)
	if s == "" {
		return nil
	}
	return ParseFloat(s)
}

// ParseInt coerces s to an int, or returns nil.
func ParseInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

// ParseFloat coerces s to a float64, tolerating a trailing dot, or returns nil.
func ParseFloat(s string) *float64 {
	s = strings.TrimRight(strings.TrimSpace(s), ".")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
