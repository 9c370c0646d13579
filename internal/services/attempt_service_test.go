package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/personalization"
	"github.com/yungbote/studyforge-backend/internal/learning/gate"
	"github.com/yungbote/studyforge-backend/internal/learning/grading"
	"github.com/yungbote/studyforge-backend/internal/learning/mastery"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

func newAttemptFixture(t *testing.T, g grading.Grader) (*fixture, *attemptService, time.Time) {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUnit(t, ctx, f.db, "contract", 0.5)
	testutil.SeedSkill(t, ctx, f.db, "offer", "contract", 0.4)
	testutil.SeedSkill(t, ctx, f.db, "consideration", "contract", 0.2)

	svc := NewAttemptService(f.db, f.log, f.repos, g, f.events, nil).(*attemptService)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return f, svc, now
}

func TestSubmitCreatesMasteryLazily(t *testing.T) {
	f, svc, now := newAttemptFixture(t, fixedGrader{score: 1})

	res, err := svc.Submit(as(f.userID), AttemptInput{
		ItemID:   "q-1",
		Response: "An offer is a definite promise.",
		Format:   "written",
		Mode:     "practice",
		Skills:   []SkillCoverage{{SkillID: "offer", Weight: 1}},
	})
	require.NoError(t, err)
	require.Len(t, res.Skills, 1)

	sr := res.Skills[0]
	assert.InDelta(t, mastery.InitialP, sr.PBefore, 1e-9)
	assert.InDelta(t, mastery.InitialP+mastery.MaxGain, sr.PAfter, 1e-9)
	assert.InDelta(t, 1.5, sr.Stability, 1e-9)
	assert.Equal(t, 6, sr.IntervalDays)
	assert.Equal(t, now.AddDate(0, 0, 6), sr.NextReviewDate)
	assert.False(t, sr.Gate.Verified)
	assert.True(t, sr.Gate.Has(gate.ReasonMasteryBelowThreshold))
	assert.True(t, sr.Gate.Has(gate.ReasonInsufficientHighStakesPasses))

	st, err := f.repos.Mastery.GetByUserAndSkill(dbctx.Context{Ctx: context.Background()}, f.userID, "offer")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 1, st.AttemptCount)
	assert.Equal(t, 1, st.CorrectCount)
	assert.Equal(t, 1, st.Version)
	assert.InDelta(t, 2.6, st.Easiness, 1e-9)

	history, err := f.repos.Attempts.ListForUserSkill(dbctx.Context{Ctx: context.Background()}, f.userID, "offer")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fixed", history[0].GraderName)
	assert.Equal(t, "An offer is a definite promise.", history[0].ResponseExcerpt)
}

func TestSubmitUpdatesEveryCoveredSkill(t *testing.T) {
	f, svc, _ := newAttemptFixture(t, fixedGrader{score: 0})

	res, err := svc.Submit(as(f.userID), AttemptInput{
		ItemID: "q-2",
		Format: "multiple_choice",
		Mode:   "practice",
		Skills: []SkillCoverage{
			{SkillID: "offer", Weight: 1},
			{SkillID: "consideration", Weight: 0.5},
			{SkillID: "offer", Weight: 0.2},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Skills, 2)
	for _, sr := range res.Skills {
		assert.Less(t, sr.PAfter, sr.PBefore, sr.SkillID)
		assert.Equal(t, 1, sr.IntervalDays, sr.SkillID)
	}
	// half coverage moves the estimate half as far
	assert.InDelta(t, res.Skills[0].Delta/2, res.Skills[1].Delta, 1e-9)
}

func TestSubmitVerifiesGateOnce(t *testing.T) {
	f, svc, now := newAttemptFixture(t, fixedGrader{score: 0.9})
	ctx := context.Background()
	testutil.SeedMastery(t, ctx, f.db, f.userID, "offer", 0.9, nil)
	testutil.SeedAttempt(t, ctx, f.db, f.userID, "offer", 0.8, personalization.ModeTimed, now.Add(-72*time.Hour))
	testutil.SeedAttempt(t, ctx, f.db, f.userID, "offer", 0.85, personalization.ModeExamSimulation, now.Add(-24*time.Hour))

	in := AttemptInput{
		ItemID: "q-3",
		Format: "written",
		Mode:   "timed",
		Skills: []SkillCoverage{{SkillID: "offer", Weight: 1}},
	}
	res, err := svc.Submit(as(f.userID), in)
	require.NoError(t, err)
	sr := res.Skills[0]
	assert.True(t, sr.Gate.Verified, "reasons: %+v", sr.Gate.Reasons)
	assert.True(t, sr.NewlyVerified)
	assert.Equal(t, 3, sr.Gate.PassCount)
	assert.Equal(t, []string{"offer"}, f.events.verified)

	rec, err := f.repos.GateRecords.GetByUserAndSkill(dbctx.Context{Ctx: ctx}, f.userID, "offer")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.InDelta(t, 72, rec.HoursBetweenPasses, 1e-6)

	// a later failing attempt never un-verifies
	svc.grader = fixedGrader{score: 0.1}
	res, err = svc.Submit(as(f.userID), in)
	require.NoError(t, err)
	assert.True(t, res.Skills[0].Gate.Verified)
	assert.True(t, res.Skills[0].Gate.AlreadyVerified)
	assert.False(t, res.Skills[0].NewlyVerified)

	n, err := f.repos.GateRecords.CountByUser(dbctx.Context{Ctx: ctx}, f.userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Len(t, f.events.verified, 1)

	st, err := f.repos.Mastery.GetByUserAndSkill(dbctx.Context{Ctx: ctx}, f.userID, "offer")
	require.NoError(t, err)
	assert.True(t, st.IsVerified)
}

func TestSubmitFallsBackWhenGraderFails(t *testing.T) {
	f, _, _ := newAttemptFixture(t, nil)
	svc := NewAttemptService(f.db, f.log, f.repos, grading.WithFallback{Primary: brokenGrader{}, Log: f.log}, nil, nil)

	res, err := svc.Submit(as(f.userID), AttemptInput{
		ItemID:   "q-4",
		Response: "offer acceptance consideration intention",
		Keywords: []string{"offer", "acceptance"},
		Format:   "written",
		Mode:     "practice",
		Skills:   []SkillCoverage{{SkillID: "offer", Weight: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Grade.Grader)
	assert.True(t, res.Grade.Fallback)
	assert.LessOrEqual(t, res.Grade.Score, grading.DefaultHeuristicConfig().Cap)
	assert.Equal(t, "heuristic", res.Attempt.GraderName)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	f, svc, _ := newAttemptFixture(t, fixedGrader{score: 1})

	cases := []struct {
		name string
		in   AttemptInput
	}{
		{"no item", AttemptInput{Format: "written", Mode: "practice", Skills: []SkillCoverage{{SkillID: "offer", Weight: 1}}}},
		{"bad format", AttemptInput{ItemID: "q", Format: "essay", Mode: "practice", Skills: []SkillCoverage{{SkillID: "offer", Weight: 1}}}},
		{"bad mode", AttemptInput{ItemID: "q", Format: "written", Mode: "homework", Skills: []SkillCoverage{{SkillID: "offer", Weight: 1}}}},
		{"no skills", AttemptInput{ItemID: "q", Format: "written", Mode: "practice"}},
		{"unknown skill", AttemptInput{ItemID: "q", Format: "written", Mode: "practice", Skills: []SkillCoverage{{SkillID: "tort", Weight: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(as(f.userID), tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apierr.ErrInvalidArgument), "got %v", err)
		})
	}

	_, err := svc.Submit(dbctx.Context{Ctx: context.Background()}, AttemptInput{})
	assert.Equal(t, 401, apierr.StatusOf(err))
}
