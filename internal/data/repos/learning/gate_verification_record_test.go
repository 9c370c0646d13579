package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/personalization"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

func TestGateRecordAndAttempts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	gates := NewGateVerificationRecordRepo(db, log)
	attempts := NewAttemptRepo(db, log)

	userID := uuid.New()
	now := time.Now().UTC()
	rec := &types.GateVerificationRecord{UserID: userID, SkillID: "s-1", PMastery: 0.9, PassCount: 2, HoursBetweenPasses: 30, VerifiedAt: now}
	if ok, err := gates.CreateIfAbsent(dbc, rec); err != nil || !ok {
		t.Fatalf("CreateIfAbsent: ok=%v err=%v", ok, err)
	}
	again := &types.GateVerificationRecord{UserID: userID, SkillID: "s-1", PMastery: 0.95, VerifiedAt: now}
	if ok, err := gates.CreateIfAbsent(dbc, again); err != nil || ok {
		t.Fatalf("second record must be a no-op: ok=%v err=%v", ok, err)
	}
	if n, _ := gates.CountByUser(dbc, userID); n != 1 {
		t.Fatalf("CountByUser=%d want 1", n)
	}

	a := &types.Attempt{UserID: userID, ItemID: "q1", Score: 0.8, Format: personalization.FormatWritten, Mode: personalization.ModeTimed, ActivityType: "QUIZ"}
	cov := []*types.AttemptSkill{{SkillID: "s-1", Weight: 1}, {SkillID: "s-2", Weight: 0.5}}
	if err := attempts.Create(dbc, a, cov); err != nil {
		t.Fatalf("Create attempt: %v", err)
	}
	testutil.SeedAttempt(t, ctx, tx, userID, "s-2", 0.4, personalization.ModePractice, now.Add(-time.Hour))

	hist, err := attempts.ListForUserSkill(dbc, userID, "s-2")
	if err != nil || len(hist) != 2 {
		t.Fatalf("ListForUserSkill: len=%d err=%v", len(hist), err)
	}
	best, err := attempts.BestScoreByActivity(dbc, userID, "s-1", []string{"QUIZ", "CHECKPOINT"})
	if err != nil || best["QUIZ"] != 0.8 {
		t.Fatalf("BestScoreByActivity: %v %v", best, err)
	}
	counts, err := attempts.CountsByFormatMode(dbc, userID)
	if err != nil || len(counts) != 2 {
		t.Fatalf("CountsByFormatMode: %v %v", counts, err)
	}
	scores, err := attempts.ScoresSince(dbc, userID, now.Add(-2*time.Hour))
	if err != nil || len(scores) != 2 {
		t.Fatalf("ScoresSince: %v %v", scores, err)
	}
}
