package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type StudyAssetRepo interface {
	Create(dbc dbctx.Context, rows []*types.StudyAsset) ([]*types.StudyAsset, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StudyAsset, error)
	ListBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*types.StudyAsset, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsIfStatus applies updates only while the asset has status.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, status string, updates map[string]interface{}) (bool, error)
}

type studyAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyAssetRepo(db *gorm.DB, baseLog *logger.Logger) StudyAssetRepo {
	return &studyAssetRepo{db: db, log: baseLog.With("repo", "StudyAssetRepo")}
}

func (r *studyAssetRepo) Create(dbc dbctx.Context, rows []*types.StudyAsset) ([]*types.StudyAsset, error) {
	if len(rows) == 0 {
		return []*types.StudyAsset{}, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *studyAssetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StudyAsset, error) {
	var out []*types.StudyAsset
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

func (r *studyAssetRepo) ListBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*types.StudyAsset, error) {
	var out []*types.StudyAsset
	if len(sessionIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("session_id IN ?", sessionIDs).
		Order("session_id ASC, kind ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studyAssetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.StudyAsset{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *studyAssetRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, status string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.StudyAsset{}).
		Where("id = ? AND status = ?", id, status).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
