package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type StudySessionRepo interface {
	Create(dbc dbctx.Context, row *types.StudySession) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error)
	GetByIDWithAssets(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error)
	ListUpcoming(dbc dbctx.Context, userID uuid.UUID) ([]*types.StudySession, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, statuses []string, limit int) ([]*types.StudySession, error)
	MaxSequence(dbc dbctx.Context, userID uuid.UUID) (int, error)
	// TransitionStatus moves the session to status when its current status is one of from.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error)
}

type studySessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudySessionRepo(db *gorm.DB, baseLog *logger.Logger) StudySessionRepo {
	return &studySessionRepo{db: db, log: baseLog.With("repo", "StudySessionRepo")}
}

func (r *studySessionRepo) Create(dbc dbctx.Context, row *types.StudySession) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).Omit("Assets").Create(row).Error
}

func (r *studySessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error) {
	var out []*types.StudySession
	if id == uuid.Nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *studySessionRepo) GetByIDWithAssets(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error) {
	var out []*types.StudySession
	if id == uuid.Nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("kind ASC") }).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *studySessionRepo) ListUpcoming(dbc dbctx.Context, userID uuid.UUID) ([]*types.StudySession, error) {
	return r.ListByUser(dbc, userID, []string{products.SessionQueued, products.SessionPreparing, products.SessionReady}, 0)
}

func (r *studySessionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, statuses []string, limit int) ([]*types.StudySession, error) {
	var out []*types.StudySession
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	q = q.Order("sequence ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studySessionRepo) MaxSequence(dbc dbctx.Context, userID uuid.UUID) (int, error) {
	var max int64
	row := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.StudySession{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("user_id = ?", userID).
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return int(max), nil
}

func (r *studySessionRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(from) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.StudySession{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
