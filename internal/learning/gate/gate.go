// Package gate decides whether a skill is durably learned. It evaluates a snapshot and performs no I/O.
package gate

import (
	"fmt"
	"sort"
	"time"
)

const (
	MasteryThreshold = 0.85
	RequiredPasses   = 2
	PassScore        = 0.6
	Window           = 90 * 24 * time.Hour
	Cooldown         = 24 * time.Hour
	TopErrorTags     = 3
)

const (
	ReasonMasteryBelowThreshold        = "mastery_below_threshold"
	ReasonInsufficientHighStakesPasses = "insufficient_high_stakes_passes"
	ReasonInsufficientCooldown         = "insufficient_cooldown"
	ReasonRecurringErrorTags           = "recurring_error_tags"
)

// Attempt is the slice of an attempt the gate looks at.
type Attempt struct {
	ID         string
	Score      float64
	HighStakes bool
	ErrorTags  []string
	At         time.Time
}

// Snapshot is everything known about one (user, skill) at decision time.
type Snapshot struct {
	PMastery        float64
	AlreadyVerified bool
	// History is every attempt covering the skill, any mode, any age.
	History []Attempt
	Now     time.Time
}

type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decision is the gate outcome. Reasons is empty iff Verified.
type Decision struct {
	Verified           bool     `json:"verified"`
	AlreadyVerified    bool     `json:"already_verified"`
	Reasons            []Reason `json:"reasons"`
	PMastery           float64  `json:"p_mastery"`
	PassCount          int      `json:"pass_count"`
	HoursBetweenPasses float64  `json:"hours_between_passes"`
	TopErrorTags       []string `json:"top_error_tags,omitempty"`
	CountedAttemptIDs  []string `json:"counted_attempt_ids,omitempty"`
}

// Has reports whether code is among the failing reasons.
func (d Decision) Has(code string) bool {
	for _, r := range d.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

// Evaluate runs every criterion and collects all failing reasons.
func Evaluate(s Snapshot) Decision {
	if s.AlreadyVerified {
		return Decision{Verified: true, AlreadyVerified: true, PMastery: s.PMastery, Reasons: []Reason{}}
	}
	now := s.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	d := Decision{PMastery: s.PMastery, Reasons: []Reason{}}
	topTags := TopTags(s.History, TopErrorTags)
	d.TopErrorTags = topTags

	// Passes showing a top tag are not counted; the rest must meet the gate on their own.
	passes := highStakesPasses(s.History, now)
	counted, recurring := splitByTags(passes, topTags)
	d.PassCount = len(counted)
	for _, p := range counted {
		d.CountedAttemptIDs = append(d.CountedAttemptIDs, p.ID)
	}
	if len(counted) >= 2 {
		d.HoursBetweenPasses = counted[len(counted)-1].At.Sub(counted[0].At).Hours()
	}
	enoughPasses := len(counted) >= RequiredPasses
	spaced := d.HoursBetweenPasses >= Cooldown.Hours()

	if s.PMastery < MasteryThreshold {
		d.Reasons = append(d.Reasons, Reason{
			Code:    ReasonMasteryBelowThreshold,
			Message: fmt.Sprintf("mastery %.2f is below %.2f", s.PMastery, MasteryThreshold),
		})
	}
	if !enoughPasses {
		d.Reasons = append(d.Reasons, Reason{
			Code:    ReasonInsufficientHighStakesPasses,
			Message: fmt.Sprintf("%d of %d timed or exam passes in the last 90 days", len(counted), RequiredPasses),
		})
	}
	if len(passes) >= 1 && !spaced {
		d.Reasons = append(d.Reasons, Reason{
			Code:    ReasonInsufficientCooldown,
			Message: fmt.Sprintf("passes are %.1fh apart, need at least %.0fh", d.HoursBetweenPasses, Cooldown.Hours()),
		})
	}
	if len(recurring) > 0 && (!enoughPasses || !spaced) {
		d.Reasons = append(d.Reasons, Reason{
			Code:    ReasonRecurringErrorTags,
			Message: fmt.Sprintf("frequent errors still present in passes: %v", recurring),
		})
	}

	d.Verified = len(d.Reasons) == 0
	return d
}

// highStakesPasses returns in-window high-stakes passes, oldest first.
func highStakesPasses(history []Attempt, now time.Time) []Attempt {
	cutoff := now.Add(-Window)
	var out []Attempt
	for _, a := range history {
		if !a.HighStakes || a.Score < PassScore {
			continue
		}
		if a.At.Before(cutoff) || a.At.After(now) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// TopTags returns the n most frequent error tags, ties broken by name.
func TopTags(history []Attempt, n int) []string {
	counts := map[string]int{}
	for _, a := range history {
		for _, t := range a.ErrorTags {
			if t == "" {
				continue
			}
			counts[t]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}

// splitByTags returns the passes free of top tags and the top tags found on the others.
func splitByTags(passes []Attempt, top []string) ([]Attempt, []string) {
	if len(top) == 0 {
		return passes, nil
	}
	topSet := map[string]bool{}
	for _, t := range top {
		topSet[t] = true
	}
	seen := map[string]bool{}
	var clean []Attempt
	var found []string
	for _, p := range passes {
		hit := false
		for _, t := range p.ErrorTags {
			if !topSet[t] {
				continue
			}
			hit = true
			if !seen[t] {
				seen[t] = true
				found = append(found, t)
			}
		}
		if !hit {
			clean = append(clean, p)
		}
	}
	sort.Strings(found)
	return clean, found
}
