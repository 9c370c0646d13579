package content

import (
	"testing"

	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
)

func minutesOf(bp Blueprint) map[string]int {
	out := map[string]int{}
	for _, s := range bp.Slots {
		out[s.Type] = s.Minutes
	}
	return out
}

func sum(bp Blueprint) int {
	n := 0
	for _, s := range bp.Slots {
		n += s.Minutes
	}
	return n
}

func TestBuildBlueprintBlocksPastPaperUntilGatesPass(t *testing.T) {
	targets := []SkillTarget{
		{SkillID: "a", PMastery: 0.3, ExamWeight: 0.5},
		{SkillID: "b", PMastery: 0.2, ExamWeight: 0.5, BestScores: map[string]float64{GateActivityCheckpoint: 0.9}},
	}
	bp := BuildBlueprint(targets, 60)

	if sum(bp) != 60 {
		t.Fatalf("minutes sum=%d want 60", sum(bp))
	}
	if len(bp.Blocked) != 1 || bp.Blocked[0] != products.ActivityPastPaper {
		t.Fatalf("blocked=%v want [PAST_PAPER]", bp.Blocked)
	}
	m := minutesOf(bp)
	if _, ok := m[products.ActivityPastPaper]; ok {
		t.Fatalf("PAST_PAPER must not be scheduled: %v", m)
	}
	want := map[string]int{
		products.ActivityReading:      15,
		products.ActivityFlashcards:   15,
		products.ActivityQuiz:         18,
		products.ActivityIssueSpotter: 12,
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s=%d want %d (all=%v)", k, m[k], v, m)
		}
	}
}

func TestBuildBlueprintUnlockedPastPaperListsOnlyUnlockedSkills(t *testing.T) {
	passed := map[string]float64{GateActivityCheckpoint: 0.8, GateActivityQuiz: 0.7}
	targets := []SkillTarget{
		{SkillID: "ready", PMastery: 0.8, ExamWeight: 0.4, BestScores: passed},
		{SkillID: "notyet", PMastery: 0.6, ExamWeight: 0.4, BestScores: map[string]float64{GateActivityQuiz: 0.95}},
	}
	bp := BuildBlueprint(targets, 60)

	if len(bp.Blocked) != 0 {
		t.Fatalf("blocked=%v want none", bp.Blocked)
	}
	if sum(bp) != 60 {
		t.Fatalf("minutes sum=%d want 60", sum(bp))
	}
	m := minutesOf(bp)
	if m[products.ActivityPastPaper] != 12 || m[products.ActivityIssueSpotter] != 15 {
		t.Fatalf("exam mix expected, got %v", m)
	}
	for _, s := range bp.Slots {
		if s.Type == products.ActivityPastPaper {
			if len(s.Skills) != 1 || s.Skills[0] != "ready" {
				t.Fatalf("past paper skills=%v", s.Skills)
			}
		} else if len(s.Skills) != 2 {
			t.Fatalf("%s skills=%v", s.Type, s.Skills)
		}
	}
}

func TestBuildBlueprintSmallBudgetKeepsThreeTypes(t *testing.T) {
	bp := BuildBlueprint([]SkillTarget{{SkillID: "a", PMastery: 0.1, ExamWeight: 1}}, 10)
	if bp.Minutes != 15 || sum(bp) != 15 {
		t.Fatalf("minutes=%d sum=%d want 15", bp.Minutes, sum(bp))
	}
	if n := len(bp.Types()); n < MinActivityTypes {
		t.Fatalf("types=%v want at least %d", bp.Types(), MinActivityTypes)
	}
	if _, ok := minutesOf(bp)[products.ActivityIssueSpotter]; ok {
		t.Fatalf("undersized ISSUE_SPOTTER slot should fold into QUIZ: %v", minutesOf(bp))
	}
}

func TestBuildBlueprintOrdersWeakestFirst(t *testing.T) {
	targets := []SkillTarget{
		{SkillID: "strong", PMastery: 0.9, ExamWeight: 0.5},
		{SkillID: "weak", PMastery: 0.2, ExamWeight: 0.5},
		{SkillID: "unweighted", PMastery: 0.0, ExamWeight: 0},
	}
	bp := BuildBlueprint(targets, 45)
	got := bp.Slots[0].Skills
	want := []string{"weak", "strong", "unweighted"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("skills=%v want %v", got, want)
		}
	}
}
