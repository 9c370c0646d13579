package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/core"
)

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, weight float64) *types.CurriculumUnit {
	tb.Helper()
	u := &types.CurriculumUnit{ID: id, Title: "Unit " + id, ExamWeight: weight}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit: %v", err)
	}
	return u
}

func SeedSkill(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, unitID string, weight float64) *types.Skill {
	tb.Helper()
	s := &types.Skill{ID: id, UnitID: unitID, Name: "Skill " + id, ExamWeight: weight, MinTimedProofs: 2}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed skill: %v", err)
	}
	return s
}

// SeedSources creates one outline topic, one approved and one pending excerpt,
// and one verified authority linked to the skill.
func SeedSources(tb testing.TB, ctx context.Context, tx *gorm.DB, skillID string, unitID string) {
	tb.Helper()
	rows := []interface{}{
		&types.OutlineTopic{ID: "ot-" + skillID, SkillID: skillID, UnitID: unitID, Title: "Outline " + skillID, Body: "Elements of " + skillID, Confidence: 1},
		&types.TranscriptExcerpt{ID: "tx-" + skillID, SkillID: skillID, LectureID: "lec-1", Text: "Lecture on " + skillID, ModerationStatus: core.ModerationApproved, Confidence: 0.7},
		&types.TranscriptExcerpt{ID: "tx-pending-" + skillID, SkillID: skillID, LectureID: "lec-2", Text: "Unreviewed", ModerationStatus: core.ModerationPending, Confidence: 0.7},
		&types.Authority{ID: "auth-" + skillID, Kind: core.AuthorityCase, Citation: "[2001] UKHL 1", Title: "Case for " + skillID, Verified: true, Confidence: 0.9},
		&types.AuthorityLink{AuthorityID: "auth-" + skillID, TargetType: core.LinkTargetSkill, TargetID: skillID},
	}
	for _, r := range rows {
		if err := tx.WithContext(ctx).Create(r).Error; err != nil {
			tb.Fatalf("seed sources: %v", err)
		}
	}
}

func SeedMastery(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, skillID string, p float64, next *time.Time) *types.MasteryState {
	tb.Helper()
	m := &types.MasteryState{
		UserID:         userID,
		SkillID:        skillID,
		PMastery:       p,
		Stability:      1,
		Easiness:       2.5,
		NextReviewDate: next,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed mastery: %v", err)
	}
	return m
}

func SeedAttempt(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, skillID string, score float64, mode string, at time.Time, tags ...string) *types.Attempt {
	tb.Helper()
	a := &types.Attempt{
		ID:         uuid.New(),
		UserID:     userID,
		ItemID:     "item-" + skillID,
		Score:      score,
		Format:     "written",
		Mode:       mode,
		ErrorTags:  datatypes.JSONSlice[string](tags),
		GraderName: "test",
		CreatedAt:  at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed attempt: %v", err)
	}
	link := &types.AttemptSkill{AttemptID: a.ID, SkillID: skillID, Weight: 1}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		tb.Fatalf("seed attempt skill: %v", err)
	}
	return a
}
