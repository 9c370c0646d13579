package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

// racingMastery lands a competing write on the same row just before each of the
// next `races` versioned updates, so the caller's version is stale.
type racingMastery struct {
	repos.MasteryStateRepo
	races int
}

func (m *racingMastery) UpdateVersioned(dbc dbctx.Context, row *types.MasteryState) (bool, error) {
	if m.races > 0 {
		m.races--
		rival, err := m.GetByUserAndSkill(dbc, row.UserID, row.SkillID)
		if err != nil || rival == nil {
			return false, fmt.Errorf("load rival: %v", err)
		}
		rival.AttemptCount++
		if ok, err := m.MasteryStateRepo.UpdateVersioned(dbc, rival); err != nil || !ok {
			return false, fmt.Errorf("rival write: ok=%v err=%v", ok, err)
		}
	}
	return m.MasteryStateRepo.UpdateVersioned(dbc, row)
}

var practiceOffer = AttemptInput{
	ItemID: "q-c",
	Format: "written",
	Mode:   "practice",
	Skills: []SkillCoverage{{SkillID: "offer", Weight: 1}},
}

func TestSubmitRetriesOnVersionConflict(t *testing.T) {
	f, svc, _ := newAttemptFixture(t, fixedGrader{score: 1})
	ctx := context.Background()
	testutil.SeedMastery(t, ctx, f.db, f.userID, "offer", 0.5, nil)
	racer := &racingMastery{MasteryStateRepo: f.repos.Mastery, races: 1}
	svc.repos.Mastery = racer

	res, err := svc.Submit(as(f.userID), practiceOffer)
	require.NoError(t, err)
	assert.Equal(t, 0, racer.races)
	assert.InDelta(t, 0.5, res.Skills[0].PBefore, 1e-9)

	st, err := f.repos.Mastery.GetByUserAndSkill(dbctx.Context{Ctx: ctx}, f.userID, "offer")
	require.NoError(t, err)
	assert.Equal(t, 2, st.AttemptCount, "the rival write and the retried write both land")
	assert.Equal(t, 2, st.Version)
}

func TestSubmitGivesUpAfterRepeatedConflicts(t *testing.T) {
	f, svc, _ := newAttemptFixture(t, fixedGrader{score: 1})
	ctx := context.Background()
	testutil.SeedMastery(t, ctx, f.db, f.userID, "offer", 0.5, nil)
	svc.repos.Mastery = &racingMastery{MasteryStateRepo: f.repos.Mastery, races: maxVersionRetries}

	_, err := svc.Submit(as(f.userID), practiceOffer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMasteryConflict), "err=%v", err)

	history, err := f.repos.Attempts.ListForUserSkill(dbctx.Context{Ctx: ctx}, f.userID, "offer")
	require.NoError(t, err)
	assert.Empty(t, history, "the attempt rolls back with the failed update")
	st, err := f.repos.Mastery.GetByUserAndSkill(dbctx.Context{Ctx: ctx}, f.userID, "offer")
	require.NoError(t, err)
	assert.Equal(t, 0, st.AttemptCount)
}

func TestConcurrentSubmitsLoseNoUpdates(t *testing.T) {
	f, svc, _ := newAttemptFixture(t, fixedGrader{score: 0.8})
	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Submit(as(f.userID), practiceOffer); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	ctx := dbctx.Context{Ctx: context.Background()}
	st, err := f.repos.Mastery.GetByUserAndSkill(ctx, f.userID, "offer")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, n, st.AttemptCount)
	assert.Equal(t, n, st.CorrectCount)
	history, err := f.repos.Attempts.ListForUserSkill(ctx, f.userID, "offer")
	require.NoError(t, err)
	assert.Len(t, history, n)
}
