package validation

import (
	"fmt"
	"math"
	"sync"

	"mediaguard/internal/config"
)

// Verdict is the duration classification of one file.
type Verdict string

const (
	VerdictValid     Verdict = "VALID"
	VerdictTooShort  Verdict = "TOO_SHORT"
	VerdictCorrupted Verdict = "CORRUPTED"
	VerdictUnknown   Verdict = "UNKNOWN"
)

const (
	DefaultMinVideoSeconds       = 60
	DefaultMinAudioSeconds       = 30
	DefaultToleranceRatio        = 0.10
	DefaultToleranceFloorSeconds = 300
)

// Settings configures a Validator.
type Settings struct {
	MinVideoSeconds       float64
	MinAudioSeconds       float64
	ToleranceRatio        float64
	ToleranceFloorSeconds float64
}

// SettingsFromConfig extracts validator settings, substituting defaults for
// unset values.
func SettingsFromConfig(cfg config.Validation) Settings {
	return Settings{
		MinVideoSeconds:       cfg.MinVideoSeconds,
		MinAudioSeconds:       cfg.MinAudioSeconds,
		ToleranceRatio:        cfg.ToleranceRatio,
		ToleranceFloorSeconds: cfg.ToleranceFloorSeconds,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MinVideoSeconds <= 0 {
		s.MinVideoSeconds = DefaultMinVideoSeconds
	}
	if s.MinAudioSeconds <= 0 {
		s.MinAudioSeconds = DefaultMinAudioSeconds
	}
	if s.ToleranceRatio <= 0 {
		s.ToleranceRatio = DefaultToleranceRatio
	}
	if s.ToleranceFloorSeconds <= 0 {
		s.ToleranceFloorSeconds = DefaultToleranceFloorSeconds
	}
	return s
}

// Validator applies duration rules. It is safe for concurrent use.
type Validator struct {
	mu       sync.RWMutex
	settings Settings
}

// New constructs a Validator.
func New(settings Settings) *Validator {
	return &Validator{settings: settings.withDefaults()}
}

// Settings returns the active settings.
func (v *Validator) Settings() Settings {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.settings
}

// SetFloors replaces the minimum durations used when no expected runtime is
// known. Non-positive values leave the current floor unchanged.
func (v *Validator) SetFloors(videoSeconds, audioSeconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if videoSeconds > 0 {
		v.settings.MinVideoSeconds = videoSeconds
	}
	if audioSeconds > 0 {
		v.settings.MinAudioSeconds = audioSeconds
	}
}

// Tolerance returns the allowed absolute deviation for an expected runtime.
func (v *Validator) Tolerance(expectedSeconds float64) float64 {
	s := v.Settings()
	return math.Max(expectedSeconds*s.ToleranceRatio, s.ToleranceFloorSeconds)
}

// Classify evaluates, in order: missing measurement, non-positive
// measurement, deviation from expected, then the floor for the content kind.
// Any out-of-tolerance deviation, short or long, is TOO_SHORT.
func (v *Validator) Classify(measured *float64, isVideo bool, expected *float64) Verdict {
	if measured == nil || math.IsNaN(*measured) {
		return VerdictUnknown
	}
	d := *measured
	if d <= 0 {
		return VerdictCorrupted
	}
	if expected != nil && *expected > 0 {
		if math.Abs(d-*expected) > v.Tolerance(*expected) {
			return VerdictTooShort
		}
		return VerdictValid
	}
	if d < v.floor(isVideo) {
		return VerdictTooShort
	}
	return VerdictValid
}

// Explain describes why Classify returned verdict for the same inputs.
func (v *Validator) Explain(verdict Verdict, measured *float64, isVideo bool, expected *float64) string {
	switch verdict {
	case VerdictUnknown:
		return "duration unavailable"
	case VerdictCorrupted:
		return fmt.Sprintf("non-positive duration %.1fs", deref(measured))
	}
	d := deref(measured)
	if expected != nil && *expected > 0 {
		diff := d - *expected
		tolerance := v.Tolerance(*expected)
		if verdict == VerdictValid {
			return fmt.Sprintf("duration %.0fs within %.0fs of expected %.0fs", d, tolerance, *expected)
		}
		direction := "shorter"
		if diff > 0 {
			direction = "longer"
		}
		return fmt.Sprintf("duration %.0fs is %.0fs %s than expected %.0fs (tolerance %.0fs)", d, math.Abs(diff), direction, *expected, tolerance)
	}
	kind := "audio"
	if isVideo {
		kind = "video"
	}
	floor := v.floor(isVideo)
	if verdict == VerdictValid {
		return fmt.Sprintf("duration %.0fs meets %s floor %.0fs", d, kind, floor)
	}
	return fmt.Sprintf("duration %.0fs below %s floor %.0fs", d, kind, floor)
}

func (v *Validator) floor(isVideo bool) float64 {
	s := v.Settings()
	if isVideo {
		return s.MinVideoSeconds
	}
	return s.MinAudioSeconds
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
