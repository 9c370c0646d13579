// Package readiness summarizes exam readiness from persisted mastery and attempts.
package readiness

import (
	"math"
	"sort"
	"time"

	types "github.com/yungbote/studyforge-backend/internal/domain"
)

const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

const (
	TrendWindow    = 14 * 24 * time.Hour
	TrendThreshold = 0.05
	// minWeight stands in for a zero or missing exam weight.
	minWeight = 0.01
)

type ScoreSample struct {
	Score float64
	At    time.Time
}

type EvidenceBucket struct {
	Format string `json:"format"`
	Mode   string `json:"mode"`
	Count  int64  `json:"count"`
}

type Input struct {
	Units         []*types.CurriculumUnit
	Skills        []*types.Skill
	States        []*types.MasteryState
	Evidence      []EvidenceBucket
	Scores        []ScoreSample
	VerifiedGates int64
	Now           time.Time
}

type UnitReadiness struct {
	UnitID         string  `json:"unit_id"`
	Title          string  `json:"title"`
	ExamWeight     float64 `json:"exam_weight"`
	Mastery        float64 `json:"mastery"`
	SkillsTotal    int     `json:"skills_total"`
	SkillsVerified int     `json:"skills_verified"`
}

type Evidence struct {
	ByFormatMode  []EvidenceBucket `json:"by_format_mode"`
	TotalAttempts int64            `json:"total_attempts"`
	VerifiedGates int64            `json:"verified_gates"`
}

type Report struct {
	Overall     float64         `json:"overall"`
	Units       []UnitReadiness `json:"units"`
	Trend       string          `json:"trend"`
	TrendDelta  float64         `json:"trend_delta"`
	Evidence    Evidence        `json:"evidence"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Build computes the report. Skills without mastery state count as zero.
func Build(in Input) Report {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	state := make(map[string]*types.MasteryState, len(in.States))
	for _, s := range in.States {
		state[s.SkillID] = s
	}
	units := make(map[string]*types.CurriculumUnit, len(in.Units))
	for _, u := range in.Units {
		units[u.ID] = u
	}

	type acc struct {
		num, den float64
		total    int
		verified int
	}
	byUnit := map[string]*acc{}
	for _, sk := range in.Skills {
		a := byUnit[sk.UnitID]
		if a == nil {
			a = &acc{}
			byUnit[sk.UnitID] = a
		}
		w := weight(sk.ExamWeight)
		p := 0.0
		if st := state[sk.ID]; st != nil {
			p = st.PMastery
			if st.IsVerified {
				a.verified++
			}
		}
		a.num += p * w
		a.den += w
		a.total++
	}

	rep := Report{GeneratedAt: now}
	var num, den float64
	for unitID, a := range byUnit {
		ur := UnitReadiness{UnitID: unitID, SkillsTotal: a.total, SkillsVerified: a.verified}
		uw := minWeight
		if u := units[unitID]; u != nil {
			ur.Title = u.Title
			uw = weight(u.ExamWeight)
		}
		ur.ExamWeight = uw
		if a.den > 0 {
			ur.Mastery = round3(a.num / a.den)
		}
		num += ur.Mastery * uw
		den += uw
		rep.Units = append(rep.Units, ur)
	}
	sort.Slice(rep.Units, func(i, j int) bool {
		if rep.Units[i].ExamWeight != rep.Units[j].ExamWeight {
			return rep.Units[i].ExamWeight > rep.Units[j].ExamWeight
		}
		return rep.Units[i].UnitID < rep.Units[j].UnitID
	})
	if den > 0 {
		rep.Overall = round3(num / den)
	}

	rep.Trend, rep.TrendDelta = Trend(in.Scores, now)

	rep.Evidence = Evidence{ByFormatMode: in.Evidence, VerifiedGates: in.VerifiedGates}
	if rep.Evidence.ByFormatMode == nil {
		rep.Evidence.ByFormatMode = []EvidenceBucket{}
	}
	for _, b := range in.Evidence {
		rep.Evidence.TotalAttempts += b.Count
	}
	return rep
}

// Trend compares the mean score of the last window with the window before it.
// Either window empty means stable.
func Trend(scores []ScoreSample, now time.Time) (string, float64) {
	recentFrom := now.Add(-TrendWindow)
	priorFrom := now.Add(-2 * TrendWindow)
	var rSum, pSum float64
	var rN, pN int
	for _, s := range scores {
		switch {
		case s.At.After(now):
		case !s.At.Before(recentFrom):
			rSum += s.Score
			rN++
		case !s.At.Before(priorFrom):
			pSum += s.Score
			pN++
		}
	}
	if rN == 0 || pN == 0 {
		return TrendStable, 0
	}
	delta := round3(rSum/float64(rN) - pSum/float64(pN))
	switch {
	case delta > TrendThreshold:
		return TrendImproving, delta
	case delta < -TrendThreshold:
		return TrendDeclining, delta
	}
	return TrendStable, delta
}

func weight(w float64) float64 {
	if w <= 0 || math.IsNaN(w) {
		return minWeight
	}
	return w
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
