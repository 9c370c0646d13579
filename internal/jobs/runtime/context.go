package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// Notifier publishes job lifecycle events to the owning user.
type Notifier interface {
	JobCreated(userID uuid.UUID, job *types.BackgroundJob)
	JobProgress(userID uuid.UUID, job *types.BackgroundJob, stage string, progress int, message string)
	JobRetrying(userID uuid.UUID, job *types.BackgroundJob, errorMessage string)
	JobFailed(userID uuid.UUID, job *types.BackgroundJob, errorMessage string)
	JobDone(userID uuid.UUID, job *types.BackgroundJob)
}

/*
Context is the handle a handler gets for one claimed job.
Handlers never touch the job row directly; terminal transitions belong to the worker.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.BackgroundJob
	Repo   repos.BackgroundJobRepo
	Notify Notifier
	Log    *logger.Logger

	payload Payload
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.BackgroundJob, repo repos.BackgroundJobRepo, notify Notifier, log *logger.Logger) *Context {
	if log == nil {
		log = logger.Nop()
	}
	return &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
		Log:    log.With("job_id", job.ID, "job_type", job.JobType),
	}
}

// Payload is the decoded input, set by Dispatch.
func (c *Context) Payload() Payload { return c.payload }

func (c *Context) DBC() dbctx.Context { return dbctx.Context{Ctx: c.Ctx} }

// Heartbeat refreshes heartbeat_at so the stale sweep leaves the job alone.
func (c *Context) Heartbeat() {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	if err := c.Repo.Heartbeat(c.DBC(), c.Job.ID); err != nil {
		c.Log.Warn("heartbeat failed", "error", err)
		return
	}
	now := time.Now().UTC()
	c.Job.HeartbeatAt = &now
}

// Progress heartbeats and tells the owner how far along the job is.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		now := time.Now().UTC()
		ok, err := c.Repo.UpdateFieldsUnlessStatus(c.DBC(), c.Job.ID, []string{jobs.StatusCompleted, jobs.StatusFailed}, map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Warn("progress update failed", "stage", stage, "error", err)
		}
		if !ok {
			return
		}
		c.Job.HeartbeatAt = &now
	}
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, stage, pct, msg)
	}
}
