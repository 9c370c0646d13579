package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type MasteryStateRepo interface {
	Create(dbc dbctx.Context, row *types.MasteryState) error
	GetByUserAndSkills(dbc dbctx.Context, userID uuid.UUID, skillIDs []string) ([]*types.MasteryState, error)
	GetByUserAndSkill(dbc dbctx.Context, userID uuid.UUID, skillID string) (*types.MasteryState, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.MasteryState, error)
	ListDue(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.MasteryState, error)
	ListUsersWithDue(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// UpdateVersioned writes row only if the stored version equals row.Version,
	// bumping the version. It reports false on a version conflict.
	UpdateVersioned(dbc dbctx.Context, row *types.MasteryState) (bool, error)
}

type masteryStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryStateRepo(db *gorm.DB, baseLog *logger.Logger) MasteryStateRepo {
	return &masteryStateRepo{db: db, log: baseLog.With("repo", "MasteryStateRepo")}
}

func (r *masteryStateRepo) Create(dbc dbctx.Context, row *types.MasteryState) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).Create(row).Error
}

func (r *masteryStateRepo) GetByUserAndSkills(dbc dbctx.Context, userID uuid.UUID, skillIDs []string) ([]*types.MasteryState, error) {
	var out []*types.MasteryState
	if userID == uuid.Nil || len(skillIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("user_id = ? AND skill_id IN ?", userID, skillIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryStateRepo) GetByUserAndSkill(dbc dbctx.Context, userID uuid.UUID, skillID string) (*types.MasteryState, error) {
	rows, err := r.GetByUserAndSkills(dbc, userID, []string{skillID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *masteryStateRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.MasteryState, error) {
	var out []*types.MasteryState
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("user_id = ?", userID).
		Order("skill_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryStateRepo) ListDue(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.MasteryState, error) {
	var out []*types.MasteryState
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("user_id = ? AND next_review_date IS NOT NULL AND next_review_date <= ?", userID, now.UTC()).
		Order("next_review_date ASC, skill_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryStateRepo) ListUsersWithDue(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.MasteryState{}).
		Distinct("user_id").
		Where("next_review_date IS NOT NULL AND next_review_date <= ?", now.UTC())
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("user_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryStateRepo) UpdateVersioned(dbc dbctx.Context, row *types.MasteryState) (bool, error) {
	if row == nil || row.ID == uuid.Nil {
		return false, nil
	}
	now := time.Now().UTC()
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.MasteryState{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"p_mastery":         row.PMastery,
			"stability":         row.Stability,
			"easiness":          row.Easiness,
			"interval_days":     row.IntervalDays,
			"attempt_count":     row.AttemptCount,
			"correct_count":     row.CorrectCount,
			"is_verified":       row.IsVerified,
			"verified_at":       row.VerifiedAt,
			"last_practiced_at": row.LastPracticedAt,
			"next_review_date":  row.NextReviewDate,
			"version":           row.Version + 1,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	row.Version++
	row.UpdatedAt = now
	return true, nil
}
