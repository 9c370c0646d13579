package content

import (
	"sort"

	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
)

const (
	// GateActivityScore is the best score required on both gating activities.
	GateActivityScore = 0.7
	MinSlotMinutes    = 5
	MinActivityTypes  = 3
)

// Attempt activity types that unlock PAST_PAPER for a skill.
const (
	GateActivityCheckpoint = "CHECKPOINT"
	GateActivityQuiz       = "QUIZ"
)

// SkillTarget is one skill the session should cover.
type SkillTarget struct {
	SkillID    string
	PMastery   float64
	ExamWeight float64
	// BestScores maps attempt activity type to the best score on this skill.
	BestScores map[string]float64
}

// Weakness is (1 - p) scaled by exam weight.
func (s SkillTarget) Weakness() float64 {
	p := s.PMastery
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	w := s.ExamWeight
	if w <= 0 {
		w = 0.01
	}
	return (1 - p) * w
}

// PastPaperUnlocked reports whether checkpoint and quiz gates are both passed.
func (s SkillTarget) PastPaperUnlocked() bool {
	return s.BestScores[GateActivityCheckpoint] >= GateActivityScore &&
		s.BestScores[GateActivityQuiz] >= GateActivityScore
}

type Blueprint struct {
	Slots   []products.ActivitySlot `json:"slots"`
	Blocked []string                `json:"blocked"`
	Minutes int                     `json:"minutes"`
}

// Types returns the distinct activity types in slot order.
func (b Blueprint) Types() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range b.Slots {
		if !seen[s.Type] {
			seen[s.Type] = true
			out = append(out, s.Type)
		}
	}
	return out
}

type share struct {
	activity string
	pct      int
}

// foundation mixes lean on reading and recall; exam mixes on application.
var (
	foundationMix = []share{
		{products.ActivityReading, 25},
		{products.ActivityFlashcards, 25},
		{products.ActivityQuiz, 25},
		{products.ActivityIssueSpotter, 15},
		{products.ActivityPastPaper, 10},
	}
	examMix = []share{
		{products.ActivityReading, 15},
		{products.ActivityFlashcards, 15},
		{products.ActivityQuiz, 25},
		{products.ActivityIssueSpotter, 25},
		{products.ActivityPastPaper, 20},
	}
)

// BuildBlueprint lays out a session of minutes over targets. Skills in every
// slot are ordered weakest first. PAST_PAPER only lists unlocked skills and
// its minutes go to QUIZ and ISSUE_SPOTTER when no skill is unlocked.
func BuildBlueprint(targets []SkillTarget, minutes int) Blueprint {
	floor := MinActivityTypes * MinSlotMinutes
	if minutes < floor {
		minutes = floor
	}
	ordered := append([]SkillTarget(nil), targets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		wi, wj := ordered[i].Weakness(), ordered[j].Weakness()
		if wi != wj {
			return wi > wj
		}
		return ordered[i].SkillID < ordered[j].SkillID
	})

	all := make([]string, 0, len(ordered))
	var unlocked []string
	meanP := 0.0
	for _, t := range ordered {
		all = append(all, t.SkillID)
		meanP += t.PMastery
		if t.PastPaperUnlocked() {
			unlocked = append(unlocked, t.SkillID)
		}
	}
	if len(ordered) > 0 {
		meanP /= float64(len(ordered))
	}
	mix := foundationMix
	if meanP >= 0.5 {
		mix = examMix
	}

	bp := Blueprint{Minutes: minutes}
	alloc := map[string]int{}
	var order []string
	reclaimed := 0
	for _, sh := range mix {
		m := minutes * sh.pct / 100
		if sh.activity == products.ActivityPastPaper && len(unlocked) == 0 {
			bp.Blocked = append(bp.Blocked, sh.activity)
			reclaimed += m
			continue
		}
		alloc[sh.activity] = m
		order = append(order, sh.activity)
	}
	// blocked minutes split between the two application activities
	alloc[products.ActivityQuiz] += reclaimed - reclaimed/2
	alloc[products.ActivityIssueSpotter] += reclaimed / 2

	used := 0
	for _, a := range order {
		used += alloc[a]
	}
	alloc[products.ActivityQuiz] += minutes - used

	// drop slots below the minimum, folding them into QUIZ, while keeping three types
	for i := len(order) - 1; i >= 0 && len(order) > MinActivityTypes; i-- {
		a := order[i]
		if a == products.ActivityQuiz || alloc[a] >= MinSlotMinutes {
			continue
		}
		alloc[products.ActivityQuiz] += alloc[a]
		delete(alloc, a)
		order = append(order[:i], order[i+1:]...)
	}

	for _, a := range order {
		skills := all
		if a == products.ActivityPastPaper {
			skills = unlocked
		}
		bp.Slots = append(bp.Slots, products.ActivitySlot{
			Type:    a,
			Minutes: alloc[a],
			Skills:  append([]string(nil), skills...),
		})
	}
	return bp
}
