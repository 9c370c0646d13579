// Package spacedrep computes SM-2 review intervals.
package spacedrep

import (
	"math"
	"time"
)

const (
	DefaultEasiness = 2.5
	MinEasiness     = 1.3
	MaxIntervalDays = 180
	FirstInterval   = 1
	SecondInterval  = 6
	PassQuality     = 3
	// PassScore matches the mastery pass threshold; anything below it is a lapse.
	PassScore = 0.6
)

// State is the scheduling memory kept per (user, skill).
type State struct {
	Easiness     float64
	IntervalDays int
}

// Schedule is the next review plan.
type Schedule struct {
	Quality        int
	Easiness       float64
	IntervalDays   int
	NextReviewDate time.Time
}

// Quality maps a normalized score onto the 0..5 SM-2 scale. Scores below
// PassScore never reach PassQuality.
func Quality(score float64) int {
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	q := int(math.Round(score * 5))
	if score < PassScore && q >= PassQuality {
		q = PassQuality - 1
	}
	return q
}

// Next computes the schedule after an attempt scored at score.
func Next(prev State, score float64, now time.Time) Schedule {
	q := Quality(score)
	ef := prev.Easiness
	if ef <= 0 {
		ef = DefaultEasiness
	}
	miss := float64(5 - q)
	ef = ef + (0.1 - miss*(0.08+miss*0.02))
	if ef < MinEasiness {
		ef = MinEasiness
	}

	var interval int
	switch {
	case q < PassQuality:
		interval = FirstInterval
	case prev.IntervalDays <= FirstInterval:
		interval = SecondInterval
	default:
		interval = int(math.Round(float64(prev.IntervalDays) * ef))
	}
	if interval > MaxIntervalDays {
		interval = MaxIntervalDays
	}
	if interval < FirstInterval {
		interval = FirstInterval
	}

	return Schedule{
		Quality:        q,
		Easiness:       ef,
		IntervalDays:   interval,
		NextReviewDate: now.UTC().AddDate(0, 0, interval),
	}
}
