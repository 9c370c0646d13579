package readiness

import (
	"testing"
	"time"

	types "github.com/yungbote/studyforge-backend/internal/domain"
)

func TestBuildWeightsByExamWeight(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rep := Build(Input{
		Units: []*types.CurriculumUnit{
			{ID: "contract", Title: "Contract", ExamWeight: 0.75},
			{ID: "tort", Title: "Tort", ExamWeight: 0.25},
		},
		Skills: []*types.Skill{
			{ID: "offer", UnitID: "contract", ExamWeight: 0.5},
			{ID: "consideration", UnitID: "contract", ExamWeight: 0.5},
			{ID: "negligence", UnitID: "tort", ExamWeight: 1},
		},
		States: []*types.MasteryState{
			{SkillID: "offer", PMastery: 0.9, IsVerified: true},
			{SkillID: "consideration", PMastery: 0.5},
		},
		Evidence: []EvidenceBucket{
			{Format: "written", Mode: "timed", Count: 3},
			{Format: "multiple_choice", Mode: "practice", Count: 7},
		},
		VerifiedGates: 1,
		Now:           now,
	})

	if len(rep.Units) != 2 || rep.Units[0].UnitID != "contract" {
		t.Fatalf("units=%+v", rep.Units)
	}
	if rep.Units[0].Mastery != 0.7 || rep.Units[0].SkillsVerified != 1 || rep.Units[0].SkillsTotal != 2 {
		t.Fatalf("contract=%+v", rep.Units[0])
	}
	if rep.Units[1].Mastery != 0 {
		t.Fatalf("tort without state should be 0, got %v", rep.Units[1].Mastery)
	}
	if rep.Overall != 0.525 {
		t.Fatalf("overall=%v want 0.525", rep.Overall)
	}
	if rep.Evidence.TotalAttempts != 10 || rep.Evidence.VerifiedGates != 1 {
		t.Fatalf("evidence=%+v", rep.Evidence)
	}
	if rep.Trend != TrendStable {
		t.Fatalf("trend=%s with no scores", rep.Trend)
	}
}

func TestTrend(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	cases := []struct {
		name   string
		recent []float64
		prior  []float64
		want   string
	}{
		{"improving", []float64{0.8, 0.9}, []float64{0.5, 0.6}, TrendImproving},
		{"declining", []float64{0.4}, []float64{0.7}, TrendDeclining},
		{"within threshold", []float64{0.62}, []float64{0.6}, TrendStable},
		{"no prior window", []float64{0.9}, nil, TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var scores []ScoreSample
			for i, s := range tc.recent {
				scores = append(scores, ScoreSample{Score: s, At: now.Add(-time.Duration(i+1) * day)})
			}
			for i, s := range tc.prior {
				scores = append(scores, ScoreSample{Score: s, At: now.Add(-time.Duration(15+i) * day)})
			}
			// older than both windows
			scores = append(scores, ScoreSample{Score: 0, At: now.Add(-40 * day)})
			got, _ := Trend(scores, now)
			if got != tc.want {
				t.Fatalf("trend=%s want %s", got, tc.want)
			}
		})
	}
}
