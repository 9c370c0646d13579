package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// FormatModeCount is an evidence bucket for readiness reports.
type FormatModeCount struct {
	Format string `json:"format"`
	Mode   string `json:"mode"`
	Count  int64  `json:"count"`
}

// DatedScore is an attempt score with its timestamp.
type DatedScore struct {
	Score     float64
	CreatedAt time.Time
}

// AttemptRepo stores graded attempts. Attempts are never updated.
type AttemptRepo interface {
	Create(dbc dbctx.Context, row *types.Attempt, coverage []*types.AttemptSkill) error
	ListForUserSkill(dbc dbctx.Context, userID uuid.UUID, skillID string) ([]*types.Attempt, error)
	BestScoreByActivity(dbc dbctx.Context, userID uuid.UUID, skillID string, activityTypes []string) (map[string]float64, error)
	CountsByFormatMode(dbc dbctx.Context, userID uuid.UUID) ([]FormatModeCount, error)
	ScoresSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) ([]DatedScore, error)
}

type attemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRepo {
	return &attemptRepo{db: db, log: baseLog.With("repo", "AttemptRepo")}
}

func (r *attemptRepo) Create(dbc dbctx.Context, row *types.Attempt, coverage []*types.AttemptSkill) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	t := dbc.DB(r.db).WithContext(dbc.Context())
	if err := t.Create(row).Error; err != nil {
		return err
	}
	if len(coverage) == 0 {
		return nil
	}
	for _, c := range coverage {
		c.AttemptID = row.ID
	}
	return t.Create(&coverage).Error
}

func (r *attemptRepo) ListForUserSkill(dbc dbctx.Context, userID uuid.UUID, skillID string) ([]*types.Attempt, error) {
	var out []*types.Attempt
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Joins("JOIN attempt_skill ON attempt_skill.attempt_id = attempt.id").
		Where("attempt.user_id = ? AND attempt_skill.skill_id = ?", userID, skillID).
		Order("attempt.created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptRepo) BestScoreByActivity(dbc dbctx.Context, userID uuid.UUID, skillID string, activityTypes []string) (map[string]float64, error) {
	type row struct {
		ActivityType string
		Best         float64
	}
	var rows []row
	out := map[string]float64{}
	if len(activityTypes) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.Attempt{}).
		Select("attempt.activity_type AS activity_type, MAX(attempt.score) AS best").
		Joins("JOIN attempt_skill ON attempt_skill.attempt_id = attempt.id").
		Where("attempt.user_id = ? AND attempt_skill.skill_id = ? AND attempt.activity_type IN ?", userID, skillID, activityTypes).
		Group("attempt.activity_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ActivityType] = r.Best
	}
	return out, nil
}

func (r *attemptRepo) CountsByFormatMode(dbc dbctx.Context, userID uuid.UUID) ([]FormatModeCount, error) {
	var out []FormatModeCount
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.Attempt{}).
		Select("format, mode, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("format, mode").
		Order("format ASC, mode ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptRepo) ScoresSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) ([]DatedScore, error) {
	var out []DatedScore
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.Attempt{}).
		Select("score, created_at").
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Order("created_at ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
