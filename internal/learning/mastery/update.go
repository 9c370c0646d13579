// Package mastery holds the per-skill mastery estimate update. It performs no I/O.
package mastery

import "math"

const (
	LearningRate  = 0.15
	MaxGain       = 0.10
	MaxLoss       = -0.12
	PassThreshold = 0.6

	PassFactor   = 1.5
	FailFactor   = 0.5
	MinStability = 1.0
	MaxStability = 30.0

	// InitialP is the estimate for a skill with no attempts yet.
	InitialP         = 0.2
	InitialStability = MinStability
)

var formatWeights = map[string]float64{
	"written":         1.0,
	"oral":            1.0,
	"drafting":        1.1,
	"multiple_choice": 0.8,
}

var modeWeights = map[string]float64{
	"practice":        1.0,
	"timed":           1.2,
	"exam_simulation": 1.3,
}

// Outcome is one graded attempt as seen by a single skill.
type Outcome struct {
	Score          float64
	Format         string
	Mode           string
	CoverageWeight float64
}

// Result is the post-update state plus the applied delta.
type Result struct {
	P         float64
	Stability float64
	Delta     float64
	Passed    bool
}

// FormatWeight returns the weight for an answer format. Unknown formats weigh 1.
func FormatWeight(format string) float64 {
	if w, ok := formatWeights[format]; ok {
		return w
	}
	return 1.0
}

// ModeWeight returns the weight for an assessment mode. Unknown modes weigh 1.
func ModeWeight(mode string) float64 {
	if w, ok := modeWeights[mode]; ok {
		return w
	}
	return 1.0
}

// Update applies one outcome to (p, stability). Inputs outside their ranges are clamped.
func Update(p, stability float64, o Outcome) Result {
	p = clamp(sanitize(p), 0, 1)
	score := clamp(sanitize(o.Score), 0, 1)
	coverage := clamp(sanitize(o.CoverageWeight), 0, 1)

	raw := LearningRate * (score - p) * FormatWeight(o.Format) * ModeWeight(o.Mode) * coverage
	delta := clamp(raw, MaxLoss, MaxGain)
	newP := clamp(p+delta, 0, 1)

	passed := score >= PassThreshold
	s := sanitize(stability)
	if s < MinStability {
		s = MinStability
	}
	if passed {
		s *= PassFactor
	} else {
		s *= FailFactor
	}
	s = clamp(s, MinStability, MaxStability)

	return Result{P: newP, Stability: s, Delta: newP - p, Passed: passed}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
