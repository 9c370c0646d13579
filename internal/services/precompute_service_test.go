package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

func newPrecomputeFixture(t *testing.T) (*fixture, *precomputeService, time.Time) {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUnit(t, ctx, f.db, "contract", 0.5)
	testutil.SeedSkill(t, ctx, f.db, "s1", "contract", 0.4)
	testutil.SeedSkill(t, ctx, f.db, "s2", "contract", 0.3)
	testutil.SeedSkill(t, ctx, f.db, "s3", "contract", 0.2)
	testutil.SeedSkill(t, ctx, f.db, "s4", "contract", 0.1)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	testutil.SeedMastery(t, ctx, f.db, f.userID, "s4", 0.8, &due)

	jobsSvc := NewJobService(f.db, f.log, f.repos.Jobs, f.events, 3)
	svc := NewPrecomputeService(f.db, f.log, f.repos, jobsSvc, PrecomputeConfig{Sessions: 3, SessionMinutes: 45, SkillsPerSession: 2}).(*precomputeService)
	svc.now = func() time.Time { return now }
	return f, svc, now
}

func TestEnsureUpcomingPlansSessionsAndJobs(t *testing.T) {
	f, svc, _ := newPrecomputeFixture(t)
	ctx := context.Background()

	sessions, err := svc.EnsureUpcoming(dbctx.Context{Ctx: ctx}, f.userID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	for i, s := range sessions {
		assert.Equal(t, i+1, s.Sequence)
		assert.Equal(t, products.SessionPreparing, s.Status)
		require.Len(t, s.Assets, len(products.SessionAssetKinds))
		for _, a := range s.Assets {
			assert.Equal(t, products.AssetGenerating, a.Status)
			assert.Equal(t, products.GroundingSoft, a.GroundingMode)
			require.NotNil(t, a.JobID)
		}
		assert.GreaterOrEqual(t, len(s.ActivityMix.Data()), 3)
	}
	// due review first, then weakest by exam weight
	assert.Equal(t, []string{"s4", "s1"}, []string(sessions[0].TargetSkillIDs))
	assert.Equal(t, []string{"s2", "s3"}, []string(sessions[1].TargetSkillIDs))

	counts, err := f.repos.Jobs.CountByStatus(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	assert.EqualValues(t, 12, counts[jobs.StatusPending])
	assert.Len(t, f.events.created, 12)

	first, err := f.repos.Jobs.GetByID(dbctx.Context{Ctx: ctx}, *sessions[0].Assets[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, PriorityNextSession, first.Priority)
	assert.Equal(t, runtime.JobTypeAssetGenerate, first.JobType)
	later, err := f.repos.Jobs.GetByID(dbctx.Context{Ctx: ctx}, *sessions[2].Assets[0].JobID)
	require.NoError(t, err)
	assert.Greater(t, later.Priority, PriorityNextSession)
}

func TestEnsureUpcomingIsIdempotent(t *testing.T) {
	f, svc, _ := newPrecomputeFixture(t)
	ctx := context.Background()

	_, err := svc.EnsureUpcoming(dbctx.Context{Ctx: ctx}, f.userID)
	require.NoError(t, err)
	again, err := svc.EnsureUpcoming(dbctx.Context{Ctx: ctx}, f.userID)
	require.NoError(t, err)
	assert.Len(t, again, 3)

	counts, err := f.repos.Jobs.CountByStatus(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	assert.EqualValues(t, 12, counts[jobs.StatusPending])
}

func TestEnsureUpcomingRefillsAfterAbandon(t *testing.T) {
	f, svc, _ := newPrecomputeFixture(t)
	ctx := context.Background()

	sessions, err := svc.EnsureUpcoming(dbctx.Context{Ctx: ctx}, f.userID)
	require.NoError(t, err)
	ok, err := f.repos.Sessions.TransitionStatus(dbctx.Context{Ctx: ctx}, sessions[0].ID, []string{products.SessionPreparing}, products.SessionAbandoned, nil)
	require.NoError(t, err)
	require.True(t, ok)

	refilled, err := svc.EnsureUpcoming(dbctx.Context{Ctx: ctx}, f.userID)
	require.NoError(t, err)
	require.Len(t, refilled, 3)
	assert.Equal(t, 4, refilled[2].Sequence)
}

func TestEnsureUpcomingWithoutCurriculum(t *testing.T) {
	f := newFixture(t)
	svc := NewPrecomputeService(f.db, f.log, f.repos, NewJobService(f.db, f.log, f.repos.Jobs, nil, 0), PrecomputeConfig{})

	sessions, err := svc.EnsureUpcoming(dbctx.Context{Ctx: context.Background()}, f.userID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestEnqueueDedupesRunnableJobs(t *testing.T) {
	f := newFixture(t)
	svc := NewJobService(f.db, f.log, f.repos.Jobs, f.events, 3)
	dbc := dbctx.Context{Ctx: context.Background()}
	p := runtime.ReportGenerate{UserID: f.userID}

	first, created, err := svc.Enqueue(dbc, f.userID, p, EnqueueOptions{Priority: PriorityReport, Dedupe: true})
	require.NoError(t, err)
	assert.True(t, created)
	second, created, err := svc.Enqueue(dbc, f.userID, p, EnqueueOptions{Priority: PriorityReport, Dedupe: true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	claimed, err := f.repos.Jobs.ClaimNext(dbc, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	ok, err := f.repos.Jobs.Fail(dbc, claimed.ID, "boom")
	require.NoError(t, err)
	require.True(t, ok)
	third, created, err := svc.Enqueue(dbc, f.userID, p, EnqueueOptions{Priority: PriorityReport, Dedupe: true})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestGetJobForRequestUserHidesOtherUsers(t *testing.T) {
	f := newFixture(t)
	svc := NewJobService(f.db, f.log, f.repos.Jobs, nil, 3)
	job, _, err := svc.Enqueue(dbctx.Context{Ctx: context.Background()}, f.userID, runtime.ReportGenerate{UserID: f.userID}, EnqueueOptions{Priority: PriorityReport})
	require.NoError(t, err)

	got, err := svc.GetByIDForRequestUser(as(f.userID), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = svc.GetByIDForRequestUser(as(uuid.New()), job.ID)
	assert.Equal(t, 404, apierr.StatusOf(err))
}
