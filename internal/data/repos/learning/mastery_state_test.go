package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

func TestMasteryStateRepoVersioning(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMasteryStateRepo(db, testutil.Logger(t))

	userID := uuid.New()
	past := time.Now().UTC().Add(-time.Hour)
	row := testutil.SeedMastery(t, ctx, tx, userID, "contract-formation", 0.3, &past)

	stale := *row
	row.PMastery = 0.4
	if ok, err := repo.UpdateVersioned(dbc, row); err != nil || !ok {
		t.Fatalf("UpdateVersioned: ok=%v err=%v", ok, err)
	}
	if row.Version != 1 {
		t.Fatalf("version should bump to 1, got %d", row.Version)
	}

	stale.PMastery = 0.9
	if ok, err := repo.UpdateVersioned(dbc, &stale); err != nil || ok {
		t.Fatalf("stale write must be rejected: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetByUserAndSkill(dbc, userID, "contract-formation")
	if err != nil || got == nil {
		t.Fatalf("GetByUserAndSkill: %v %v", got, err)
	}
	if got.PMastery != 0.4 || got.Version != 1 {
		t.Fatalf("unexpected stored state %+v", got)
	}

	due, err := repo.ListDue(dbc, userID, time.Now().UTC())
	if err != nil || len(due) != 1 {
		t.Fatalf("ListDue: len=%d err=%v", len(due), err)
	}
	users, err := repo.ListUsersWithDue(dbc, time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("ListUsersWithDue: %v", err)
	}
	found := false
	for _, u := range users {
		if u == userID {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListUsersWithDue should include %s", userID)
	}
}

func TestMasteryStateRepoUniquePerSkill(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	userID := uuid.New()
	testutil.SeedMastery(t, ctx, tx, userID, "torts-duty", 0.2, nil)

	repo := NewMasteryStateRepo(db, testutil.Logger(t))
	if err := tx.SavePoint("dup").Error; err != nil {
		t.Fatalf("savepoint: %v", err)
	}
	err := repo.Create(dbctx.Context{Ctx: ctx, Tx: tx}, &types.MasteryState{UserID: userID, SkillID: "torts-duty", Stability: 1, Easiness: 2.5})
	if err == nil {
		t.Fatalf("second row for the same (user, skill) must fail")
	}
	tx.RollbackTo("dup")
}
