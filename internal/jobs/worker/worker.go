package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// FailureHook runs after a job fails for good, to fail whatever depended on it.
type FailureHook func(ctx context.Context, job *types.BackgroundJob, cause error)

type Config struct {
	Concurrency    int
	PollInterval   time.Duration
	HeartbeatEvery time.Duration
	Retry          runtime.RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 15 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 || c.Retry.BaseDelay < 0 {
		c.Retry = runtime.DefaultRetryPolicy()
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.BackgroundJobRepo
	handlers runtime.Handlers
	notify   runtime.Notifier
	onFailed FailureHook
	metrics  *observability.Metrics
	cfg      Config
	wg       sync.WaitGroup
}

// NewWorker fails when any job kind has no handler.
func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.BackgroundJobRepo, handlers runtime.Handlers, notify runtime.Notifier, onFailed FailureHook, metrics *observability.Metrics, cfg Config) (*Worker, error) {
	if err := handlers.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		handlers: handlers,
		notify:   notify,
		onFailed: onFailed,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}, nil
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "poll_interval", w.cfg.PollInterval)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop has seen ctx done and finished its current job.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.log.Warn("ClaimNext failed", "worker_id", workerID, "error", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job ran.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNext(dbctx.Context{Ctx: ctx}, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(ctx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *types.BackgroundJob) {
	spanCtx, span := observability.StartSpan(ctx, "job."+job.JobType,
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.type", job.JobType),
		attribute.Int("job.attempt", job.Attempts),
	)
	defer span.End()

	jc := runtime.NewContext(spanCtx, w.db, job, w.repo, w.notify, w.log)
	stop := w.keepAlive(spanCtx, jc)
	start := time.Now()
	result, runErr := w.dispatch(jc)
	stop()
	dur := time.Since(start)

	// terminal writes must land even if the caller is shutting down
	writeCtx := context.WithoutCancel(spanCtx)
	dbc := dbctx.Context{Ctx: writeCtx}

	if runErr == nil {
		var raw datatypes.JSON
		if result != nil {
			b, err := json.Marshal(result)
			if err != nil {
				runErr = runtime.Permanent(fmt.Errorf("encode result: %w", err))
			} else {
				raw = datatypes.JSON(b)
			}
		}
		if runErr == nil {
			ok, err := w.repo.Complete(dbc, job.ID, raw)
			if err != nil {
				w.log.Error("Complete failed", "job_id", job.ID, "error", err)
				span.RecordError(err)
				return
			}
			if ok {
				job.Result = raw
				if w.notify != nil {
					w.notify.JobDone(job.OwnerUserID, job)
				}
			}
			w.metrics.ObserveJob(job.JobType, "completed", dur)
			span.SetStatus(codes.Ok, "")
			return
		}
	}

	span.RecordError(runErr)
	span.SetStatus(codes.Error, runErr.Error())
	msg := runErr.Error()
	if at, retry := w.cfg.Retry.Next(job.Attempts, job.MaxAttempts, runErr, time.Now().UTC()); retry {
		if _, err := w.repo.Retry(dbc, job.ID, msg, at); err != nil {
			w.log.Error("Retry failed", "job_id", job.ID, "error", err)
			return
		}
		w.log.Warn("Job failed; retry scheduled",
			"job_id", job.ID,
			"job_type", job.JobType,
			"attempt", job.Attempts,
			"retry_at", at,
			"error", msg,
		)
		if w.notify != nil {
			w.notify.JobRetrying(job.OwnerUserID, job, msg)
		}
		w.metrics.ObserveJob(job.JobType, "retried", dur)
		return
	}

	ok, err := w.repo.Fail(dbc, job.ID, msg)
	if err != nil {
		w.log.Error("Fail failed", "job_id", job.ID, "error", err)
		return
	}
	w.log.Error("Job failed",
		"job_id", job.ID,
		"job_type", job.JobType,
		"attempt", job.Attempts,
		"permanent", runtime.IsPermanent(runErr),
		"error", msg,
	)
	w.metrics.ObserveJob(job.JobType, "failed", dur)
	if !ok {
		return
	}
	if w.onFailed != nil {
		w.onFailed(writeCtx, job, runErr)
	}
	if w.notify != nil {
		w.notify.JobFailed(job.OwnerUserID, job, msg)
	}
}

func (w *Worker) dispatch(jc *runtime.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic",
				"job_id", jc.Job.ID,
				"job_type", jc.Job.JobType,
				"panic", r,
			)
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handlers.Dispatch(jc)
}

// keepAlive heartbeats while the handler runs.
func (w *Worker) keepAlive(ctx context.Context, jc *runtime.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				jc.Heartbeat()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
