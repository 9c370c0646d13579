package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

func newSessionFixture(t *testing.T) (*fixture, *precomputeService, SessionService, []*types.StudySession) {
	t.Helper()
	f, pre, _ := newPrecomputeFixture(t)
	svc := NewSessionService(f.db, f.log, f.repos, pre, f.events)
	sessions, err := svc.ListForRequestUser(as(f.userID))
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	return f, pre, svc, sessions
}

func markAssets(t *testing.T, f *fixture, s *types.StudySession, status string) {
	t.Helper()
	for _, a := range s.Assets {
		require.NoError(t, f.repos.Assets.UpdateFields(dbctx.Context{Ctx: context.Background()}, a.ID, map[string]interface{}{"status": status}))
	}
}

func TestListSessionsRunsPrecompute(t *testing.T) {
	_, _, _, sessions := newSessionFixture(t)
	for _, s := range sessions {
		assert.Len(t, s.Assets, len(products.SessionAssetKinds))
	}
}

func TestRefreshReadinessNeedsEveryAsset(t *testing.T) {
	f, _, svc, sessions := newSessionFixture(t)
	ctx := context.Background()
	s := sessions[0]

	markAssets(t, f, s, products.AssetReady)
	require.NoError(t, f.repos.Assets.UpdateFields(dbctx.Context{Ctx: ctx}, s.Assets[0].ID, map[string]interface{}{"status": products.AssetFailed}))
	ready, err := svc.RefreshReadiness(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ready)
	got, err := svc.GetForRequestUser(as(f.userID), s.ID)
	require.NoError(t, err)
	assert.Equal(t, products.SessionPreparing, got.Status)

	markAssets(t, f, s, products.AssetReady)
	ready, err = svc.RefreshReadiness(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, []uuid.UUID{s.ID}, f.events.ready)

	// already READY: nothing more to do
	ready, err = svc.RefreshReadiness(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestSessionLifecycle(t *testing.T) {
	f, _, svc, sessions := newSessionFixture(t)
	ctx := context.Background()
	s := sessions[0]
	me := as(f.userID)

	_, err := svc.StartForRequestUser(me, s.ID)
	assert.True(t, errors.Is(err, apierr.ErrConflict), "start before ready: %v", err)

	markAssets(t, f, s, products.AssetReady)
	_, err = svc.RefreshReadiness(ctx, s.ID)
	require.NoError(t, err)

	got, err := svc.StartForRequestUser(me, s.ID)
	require.NoError(t, err)
	assert.Equal(t, products.SessionInProgress, got.Status)
	assert.NotNil(t, got.StartedAt)

	got, err = svc.CompleteForRequestUser(me, s.ID)
	require.NoError(t, err)
	assert.Equal(t, products.SessionCompleted, got.Status)

	_, err = svc.AbandonForRequestUser(me, s.ID)
	assert.True(t, errors.Is(err, apierr.ErrConflict))

	got, err = svc.AbandonForRequestUser(me, sessions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, products.SessionAbandoned, got.Status)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	_, _, svc, sessions := newSessionFixture(t)
	stranger := as(uuid.New())

	_, err := svc.GetForRequestUser(stranger, sessions[0].ID)
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
	_, err = svc.StartForRequestUser(stranger, sessions[0].ID)
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
	_, err = svc.GetAssetForRequestUser(stranger, sessions[0].Assets[0].ID)
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
}
