package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	jobstatus "github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(e string) {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
}

func (n *recordingNotifier) JobCreated(uuid.UUID, *types.BackgroundJob) { n.add("created") }
func (n *recordingNotifier) JobProgress(uuid.UUID, *types.BackgroundJob, string, int, string) {
	n.add("progress")
}
func (n *recordingNotifier) JobRetrying(uuid.UUID, *types.BackgroundJob, string) { n.add("retrying") }
func (n *recordingNotifier) JobFailed(uuid.UUID, *types.BackgroundJob, string)   { n.add("failed") }
func (n *recordingNotifier) JobDone(uuid.UUID, *types.BackgroundJob)             { n.add("done") }

type harness struct {
	repos    repos.Repos
	worker   *Worker
	notify   *recordingNotifier
	failed   []uuid.UUID
	runs     int
	metrics  *observability.Metrics
	assetErr error
}

func newHarness(t *testing.T, maxAttempts int) *harness {
	t.Helper()
	db := testutil.Isolated(t)
	log := testutil.Logger(t)
	h := &harness{repos: repos.New(db, log), notify: &recordingNotifier{}, metrics: observability.New()}
	handlers := runtime.Handlers{
		AssetGenerate: runtime.HandlerFunc[runtime.AssetGenerate](func(c *runtime.Context, p runtime.AssetGenerate) (any, error) {
			h.runs++
			if h.assetErr != nil {
				return nil, h.assetErr
			}
			return map[string]any{"asset_id": p.AssetID}, nil
		}),
		ReportGenerate: runtime.HandlerFunc[runtime.ReportGenerate](func(c *runtime.Context, p runtime.ReportGenerate) (any, error) {
			panic("boom")
		}),
		ReminderSend: runtime.HandlerFunc[runtime.ReminderSend](func(c *runtime.Context, p runtime.ReminderSend) (any, error) {
			return nil, nil
		}),
	}
	onFailed := func(ctx context.Context, job *types.BackgroundJob, cause error) {
		h.failed = append(h.failed, job.ID)
	}
	w, err := NewWorker(db, log, h.repos.Jobs, handlers, h.notify, onFailed, h.metrics, Config{
		Retry: runtime.RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: 0},
	})
	require.NoError(t, err)
	h.worker = w
	return h
}

func (h *harness) enqueue(t *testing.T, p runtime.Payload, maxAttempts int) *types.BackgroundJob {
	t.Helper()
	raw, err := runtime.Encode(p)
	require.NoError(t, err)
	et, eid := p.Entity()
	rows, err := h.repos.Jobs.Create(dbctx.Context{Ctx: context.Background()}, []*types.BackgroundJob{{
		OwnerUserID: uuid.New(), JobType: p.JobType(), EntityType: et, EntityID: eid,
		Payload: raw, MaxAttempts: maxAttempts, ScheduledFor: time.Now().UTC().Add(-time.Second),
	}})
	require.NoError(t, err)
	return rows[0]
}

func (h *harness) job(t *testing.T, id uuid.UUID) *types.BackgroundJob {
	t.Helper()
	j, err := h.repos.Jobs.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	require.NoError(t, err)
	return j
}

func TestWorkerCompletesJob(t *testing.T) {
	h := newHarness(t, 3)
	asset := uuid.New()
	job := h.enqueue(t, runtime.AssetGenerate{AssetID: asset}, 3)

	ran, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	got := h.job(t, job.ID)
	assert.Equal(t, jobstatus.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, string(got.Result), asset.String())
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, []string{"done"}, h.notify.events)

	ran, err = h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "completed jobs are never claimed again")
}

func TestWorkerRetriesThenFails(t *testing.T) {
	h := newHarness(t, 2)
	h.assetErr = errors.New("upstream timeout")
	job := h.enqueue(t, runtime.AssetGenerate{AssetID: uuid.New()}, 2)
	ctx := context.Background()

	_, err := h.worker.RunOnce(ctx)
	require.NoError(t, err)
	got := h.job(t, job.ID)
	assert.Equal(t, jobstatus.StatusPending, got.Status)
	assert.Equal(t, "upstream timeout", got.Error)
	assert.Nil(t, got.LockedAt)
	assert.Empty(t, h.failed)

	_, err = h.worker.RunOnce(ctx)
	require.NoError(t, err)
	got = h.job(t, job.ID)
	assert.Equal(t, jobstatus.StatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, []uuid.UUID{job.ID}, h.failed)
	assert.Equal(t, []string{"retrying", "failed"}, h.notify.events)
	assert.Equal(t, 2, h.runs)

	ran, _ := h.worker.RunOnce(ctx)
	assert.False(t, ran)
}

func TestWorkerPermanentErrorSkipsRetry(t *testing.T) {
	h := newHarness(t, 3)
	h.assetErr = runtime.Permanent(errors.New("no items survived"))
	job := h.enqueue(t, runtime.AssetGenerate{AssetID: uuid.New()}, 3)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	got := h.job(t, job.ID)
	assert.Equal(t, jobstatus.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Len(t, h.failed, 1)
}

func TestWorkerRecoversHandlerPanic(t *testing.T) {
	h := newHarness(t, 1)
	job := h.enqueue(t, runtime.ReportGenerate{UserID: uuid.New()}, 1)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	got := h.job(t, job.ID)
	assert.Equal(t, jobstatus.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "panic")
}

func TestWorkerRejectsMissingHandlers(t *testing.T) {
	_, err := NewWorker(nil, testutil.Logger(t), nil, runtime.Handlers{}, nil, nil, nil, Config{})
	require.Error(t, err)
}

func TestWorkerLoopDrainsQueue(t *testing.T) {
	h := newHarness(t, 3)
	for i := 0; i < 3; i++ {
		h.enqueue(t, runtime.ReminderSend{UserID: uuid.New()}, 3)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.worker.cfg.PollInterval = 10 * time.Millisecond
	h.worker.Start(ctx)

	require.Eventually(t, func() bool {
		counts, err := h.repos.Jobs.CountByStatus(dbctx.Context{Ctx: context.Background()})
		return err == nil && counts[jobstatus.StatusCompleted] == 3
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	h.worker.Wait()
}
