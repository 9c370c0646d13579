package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// Lower runs first.
const (
	PriorityNextSession  = 10
	PriorityLaterSession = 20
	PriorityReport       = 50
	PriorityReminder     = 80
)

type EnqueueOptions struct {
	Priority     int
	ScheduledFor time.Time
	// Dedupe returns the existing runnable job for the same entity and type instead of creating one.
	Dedupe bool
}

type JobService interface {
	// Enqueue creates a pending job. created is false when a runnable duplicate was returned.
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, payload runtime.Payload, opts EnqueueOptions) (job *types.BackgroundJob, created bool, err error)
	GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.BackgroundJob, error)
	GetLatestForEntityForRequestUser(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.BackgroundJob, error)
}

type jobService struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.BackgroundJobRepo
	notify      runtime.Notifier
	maxAttempts int
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.BackgroundJobRepo, notify runtime.Notifier, maxAttempts int) JobService {
	if maxAttempts <= 0 {
		maxAttempts = runtime.DefaultRetryPolicy().MaxAttempts
	}
	return &jobService{
		db:          db,
		log:         baseLog.With("service", "JobService"),
		repo:        repo,
		notify:      notify,
		maxAttempts: maxAttempts,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, payload runtime.Payload, opts EnqueueOptions) (*types.BackgroundJob, bool, error) {
	if ownerUserID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: missing owner_user_id", apierr.ErrInvalidArgument)
	}
	if payload == nil {
		return nil, false, fmt.Errorf("%w: missing payload", apierr.ErrInvalidArgument)
	}
	raw, err := runtime.Encode(payload)
	if err != nil {
		return nil, false, err
	}
	inner := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	entityType, entityID := payload.Entity()

	if opts.Dedupe && entityID != nil {
		exists, err := s.repo.ExistsRunnable(inner, payload.JobType(), entityType, entityID)
		if err != nil {
			return nil, false, fmt.Errorf("check runnable: %w", err)
		}
		if exists {
			existing, err := s.repo.GetLatestByEntity(inner, entityType, *entityID, payload.JobType())
			if err != nil {
				return nil, false, err
			}
			if existing != nil {
				s.log.Debug("job deduped", "job_id", existing.ID, "job_type", existing.JobType)
				return existing, false, nil
			}
		}
	}

	scheduled := opts.ScheduledFor
	if scheduled.IsZero() {
		scheduled = time.Now().UTC()
	}
	job := &types.BackgroundJob{
		OwnerUserID:  ownerUserID,
		JobType:      payload.JobType(),
		EntityType:   entityType,
		EntityID:     entityID,
		Priority:     opts.Priority,
		Status:       jobs.StatusPending,
		ScheduledFor: scheduled.UTC(),
		MaxAttempts:  s.maxAttempts,
		Payload:      raw,
	}
	if _, err := s.repo.Create(inner, []*types.BackgroundJob{job}); err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify.JobCreated(ownerUserID, job)
	}
	s.log.Debug("job enqueued", "job_id", job.ID, "job_type", job.JobType, "priority", job.Priority)
	return job, true, nil
}

func (s *jobService) GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.BackgroundJob, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing job id", apierr.ErrInvalidArgument)
	}
	job, err := s.repo.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.OwnerUserID != userID {
		return nil, fmt.Errorf("job %w", apierr.ErrNotFound)
	}
	return job, nil
}

func (s *jobService) GetLatestForEntityForRequestUser(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.BackgroundJob, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	job, err := s.repo.GetLatestByEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, entityType, entityID, jobType)
	if err != nil {
		return nil, err
	}
	if job == nil || job.OwnerUserID != userID {
		return nil, fmt.Errorf("job %w", apierr.ErrNotFound)
	}
	return job, nil
}

var errUnauthenticated = apierr.New(http.StatusUnauthorized, "unauthenticated", fmt.Errorf("not authenticated"))

func requestUserID(dbc dbctx.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, errUnauthenticated
	}
	return rd.UserID, nil
}
