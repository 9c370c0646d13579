package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	jobstatus "github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

const DefaultMaxAttempts = 3

type BackgroundJobRepo interface {
	Create(dbc dbctx.Context, jobs []*types.BackgroundJob) ([]*types.BackgroundJob, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.BackgroundJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BackgroundJob, error)
	GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.BackgroundJob, error)
	ClaimNext(dbc dbctx.Context, now time.Time) (*types.BackgroundJob, error)
	Complete(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error)
	Retry(dbc dbctx.Context, id uuid.UUID, errMsg string, at time.Time) (bool, error)
	Fail(dbc dbctx.Context, id uuid.UUID, errMsg string) (bool, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	ExistsRunnable(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID) (bool, error)
	ReclaimStale(dbc dbctx.Context, heartbeatBefore time.Time, now time.Time) (requeued int64, failed []*types.BackgroundJob, err error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

type backgroundJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBackgroundJobRepo(db *gorm.DB, baseLog *logger.Logger) BackgroundJobRepo {
	return &backgroundJobRepo{
		db:  db,
		log: baseLog.With("repo", "BackgroundJobRepo"),
	}
}

func (r *backgroundJobRepo) Create(dbc dbctx.Context, jobs []*types.BackgroundJob) ([]*types.BackgroundJob, error) {
	transaction := dbc.DB(r.db)
	if len(jobs) == 0 {
		return []*types.BackgroundJob{}, nil
	}
	now := time.Now().UTC()
	for _, j := range jobs {
		if j.Status == "" {
			j.Status = jobstatus.StatusPending
		}
		if j.ScheduledFor.IsZero() {
			j.ScheduledFor = now
		}
		j.ScheduledFor = j.ScheduledFor.UTC()
		if j.MaxAttempts <= 0 {
			j.MaxAttempts = DefaultMaxAttempts
		}
		if len(j.Payload) == 0 {
			j.Payload = datatypes.JSON([]byte("{}"))
		}
	}
	if err := transaction.WithContext(dbc.Context()).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *backgroundJobRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.BackgroundJob, error) {
	transaction := dbc.DB(r.db)
	var out []*types.BackgroundJob
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *backgroundJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BackgroundJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *backgroundJobRepo) GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.BackgroundJob, error) {
	transaction := dbc.DB(r.db)
	var job types.BackgroundJob
	err := transaction.WithContext(dbc.Context()).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// ClaimNext takes the pending job with the lowest priority number, then earliest
// scheduled_for, that is due at now. The status flip is conditional so a job is
// handed to at most one worker even without row locks.
func (r *backgroundJobRepo) ClaimNext(dbc dbctx.Context, now time.Time) (*types.BackgroundJob, error) {
	transaction := dbc.DB(r.db)
	now = now.UTC()
	var claimed *types.BackgroundJob
	err := transaction.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			var job types.BackgroundJob
			qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("status = ? AND scheduled_for <= ?", jobstatus.StatusPending, now).
				Order("priority ASC").
				Order("scheduled_for ASC").
				Order("created_at ASC").
				First(&job).Error
			if errors.Is(qErr, gorm.ErrRecordNotFound) {
				return nil
			}
			if qErr != nil {
				return qErr
			}
			res := txx.Model(&types.BackgroundJob{}).
				Where("id = ? AND status = ?", job.ID, jobstatus.StatusPending).
				Updates(map[string]interface{}{
					"status":       jobstatus.StatusProcessing,
					"attempts":     gorm.Expr("attempts + 1"),
					"locked_at":    now,
					"heartbeat_at": now,
					"updated_at":   now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// lost the race on a non-locking dialect
				continue
			}
			job.Status = jobstatus.StatusProcessing
			job.Attempts++
			job.LockedAt = &now
			job.HeartbeatAt = &now
			claimed = &job
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *backgroundJobRepo) Complete(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error) {
	now := time.Now().UTC()
	if len(result) == 0 {
		result = datatypes.JSON([]byte("{}"))
	}
	return r.updateIfStatus(dbc, id, jobstatus.StatusProcessing, map[string]interface{}{
		"status":       jobstatus.StatusCompleted,
		"result":       result,
		"error":        "",
		"completed_at": now,
		"heartbeat_at": now,
	})
}

// Retry returns a processing job to pending, runnable again at at.
func (r *backgroundJobRepo) Retry(dbc dbctx.Context, id uuid.UUID, errMsg string, at time.Time) (bool, error) {
	now := time.Now().UTC()
	return r.updateIfStatus(dbc, id, jobstatus.StatusProcessing, map[string]interface{}{
		"status":        jobstatus.StatusPending,
		"scheduled_for": at.UTC(),
		"error":         errMsg,
		"last_error_at": now,
		"locked_at":     nil,
	})
}

func (r *backgroundJobRepo) Fail(dbc dbctx.Context, id uuid.UUID, errMsg string) (bool, error) {
	now := time.Now().UTC()
	return r.updateIfStatus(dbc, id, jobstatus.StatusProcessing, map[string]interface{}{
		"status":        jobstatus.StatusFailed,
		"error":         errMsg,
		"last_error_at": now,
		"locked_at":     nil,
	})
}

func (r *backgroundJobRepo) updateIfStatus(dbc dbctx.Context, id uuid.UUID, status string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Context()).
		Model(&types.BackgroundJob{}).
		Where("id = ? AND status = ?", id, status).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *backgroundJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := transaction.WithContext(dbc.Context()).
		Model(&types.BackgroundJob{}).
		Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *backgroundJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.DB(r.db)
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Context()).
		Model(&types.BackgroundJob{}).
		Where("id = ? AND status = ?", id, jobstatus.StatusProcessing).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *backgroundJobRepo) ExistsRunnable(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID) (bool, error) {
	transaction := dbc.DB(r.db)
	q := transaction.WithContext(dbc.Context()).
		Model(&types.BackgroundJob{}).
		Where("job_type = ? AND status IN ?", jobType, []string{jobstatus.StatusPending, jobstatus.StatusProcessing})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != nil && *entityID != uuid.Nil {
		q = q.Where("entity_id = ?", *entityID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReclaimStale returns processing jobs with a heartbeat older than heartbeatBefore
// to pending, or fails them when attempts are exhausted. Failed rows are returned
// so callers can propagate the failure to dependent entities.
func (r *backgroundJobRepo) ReclaimStale(dbc dbctx.Context, heartbeatBefore time.Time, now time.Time) (int64, []*types.BackgroundJob, error) {
	transaction := dbc.DB(r.db)
	heartbeatBefore = heartbeatBefore.UTC()
	now = now.UTC()
	var requeued int64
	var failed []*types.BackgroundJob
	err := transaction.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		var stale []*types.BackgroundJob
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?", jobstatus.StatusProcessing, heartbeatBefore).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, j := range stale {
			updates := map[string]interface{}{
				"error":         "stale heartbeat",
				"last_error_at": now,
				"locked_at":     nil,
				"updated_at":    now,
			}
			if j.Attempts < j.MaxAttempts {
				updates["status"] = jobstatus.StatusPending
				updates["scheduled_for"] = now
			} else {
				updates["status"] = jobstatus.StatusFailed
			}
			res := txx.Model(&types.BackgroundJob{}).
				Where("id = ? AND status = ?", j.ID, jobstatus.StatusProcessing).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if updates["status"] == jobstatus.StatusPending {
				requeued++
			} else {
				j.Status = jobstatus.StatusFailed
				failed = append(failed, j)
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return requeued, failed, nil
}

func (r *backgroundJobRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	transaction := dbc.DB(r.db)
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := transaction.WithContext(dbc.Context()).
		Model(&types.BackgroundJob{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
