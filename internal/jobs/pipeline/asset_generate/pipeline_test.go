package asset_generate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/learning/content"
	"github.com/yungbote/studyforge-backend/internal/learning/grounding"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

type fakeRefresher struct {
	calls []uuid.UUID
	ready bool
	err   error
}

func (f *fakeRefresher) RefreshReadiness(_ context.Context, sessionID uuid.UUID) (bool, error) {
	f.calls = append(f.calls, sessionID)
	return f.ready, f.err
}

type harness struct {
	repos    repos.Repos
	pipeline *Pipeline
	refresh  *fakeRefresher
	userID   uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.Isolated(t)
	ctx := context.Background()
	testutil.SeedUnit(t, ctx, db, "contract", 0.5)
	testutil.SeedSkill(t, ctx, db, "offer", "contract", 0.4)
	testutil.SeedSkill(t, ctx, db, "duress", "contract", 0.1)
	testutil.SeedSources(t, ctx, db, "offer", "contract")

	log := testutil.Logger(t)
	r := repos.New(db, log)
	retriever := grounding.NewRetriever(r.Curriculum, r.Sources, nil, grounding.DefaultLimits(), log)
	gen := content.NewPipeline(db, log, r, retriever, content.TemplateComposer{}, content.PipelineConfig{})
	h := &harness{repos: r, refresh: &fakeRefresher{ready: true}, userID: uuid.New()}
	h.pipeline = New(db, log, gen, h.refresh, observability.New())
	return h
}

func (h *harness) asset(t *testing.T, mode string, skills ...string) *types.StudyAsset {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	targets := make([]content.SkillTarget, 0, len(skills))
	for _, s := range skills {
		targets = append(targets, content.SkillTarget{SkillID: s, PMastery: 0.2, ExamWeight: 0.3})
	}
	bp := content.BuildBlueprint(targets, 45)
	s := &types.StudySession{
		UserID:          h.userID,
		Sequence:        1,
		Status:          products.SessionPreparing,
		DurationMinutes: bp.Minutes,
		TargetSkillIDs:  datatypes.JSONSlice[string](skills),
		ActivityMix:     datatypes.NewJSONType(bp.Slots),
		BlockedActivity: datatypes.JSONSlice[string](bp.Blocked),
	}
	require.NoError(t, h.repos.Sessions.Create(dbc, s))
	rows, err := h.repos.Assets.Create(dbc, []*types.StudyAsset{{
		SessionID: s.ID, UserID: h.userID, Kind: products.AssetPracticeSet, Status: products.AssetGenerating, GroundingMode: mode,
	}})
	require.NoError(t, err)
	return rows[0]
}

func (h *harness) jobContext(t *testing.T, assetID uuid.UUID) *runtime.Context {
	t.Helper()
	p := runtime.AssetGenerate{AssetID: assetID}
	raw, err := runtime.Encode(p)
	require.NoError(t, err)
	job := &types.BackgroundJob{OwnerUserID: h.userID, JobType: p.JobType(), Payload: raw}
	return runtime.NewContext(context.Background(), nil, job, nil, nil, testutil.Logger(t))
}

func TestRunGeneratesAssetAndRefreshesSession(t *testing.T) {
	h := newHarness(t)
	a := h.asset(t, products.GroundingSoft, "offer")

	res, err := h.pipeline.Run(h.jobContext(t, a.ID), runtime.AssetGenerate{AssetID: a.ID})
	require.NoError(t, err)
	out, ok := res.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, products.AssetReady, out["status"])
	assert.Equal(t, true, out["session_ready"])
	assert.Equal(t, []uuid.UUID{a.SessionID}, h.refresh.calls)

	// rerun is a no-op on the asset but still checks readiness
	res, err = h.pipeline.Run(h.jobContext(t, a.ID), runtime.AssetGenerate{AssetID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["skipped"])
	assert.Len(t, h.refresh.calls, 2)
}

func TestRunStrictWithoutSourcesIsPermanent(t *testing.T) {
	h := newHarness(t)
	a := h.asset(t, products.GroundingStrict, "duress")
	jc := h.jobContext(t, a.ID)

	_, err := h.pipeline.Run(jc, runtime.AssetGenerate{AssetID: a.ID})
	require.Error(t, err)
	assert.True(t, runtime.IsPermanent(err))
	assert.Empty(t, h.refresh.calls)

	h.pipeline.OnFailed(context.Background(), jc.Job, err)
	got, err := h.repos.Assets.GetByID(dbctx.Context{Ctx: context.Background()}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, products.AssetFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestRunUnknownAssetIsPermanent(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	_, err := h.pipeline.Run(h.jobContext(t, id), runtime.AssetGenerate{AssetID: id})
	require.Error(t, err)
	assert.True(t, runtime.IsPermanent(err))
}

func TestRunRetriesWhenReadinessFails(t *testing.T) {
	h := newHarness(t)
	h.refresh.err = errors.New("db gone")
	a := h.asset(t, products.GroundingSoft, "offer")

	_, err := h.pipeline.Run(h.jobContext(t, a.ID), runtime.AssetGenerate{AssetID: a.ID})
	require.Error(t, err)
	assert.False(t, runtime.IsPermanent(err))
}
