package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type MissingAuthorityLogRepo interface {
	Create(dbc dbctx.Context, rows []*types.MissingAuthorityLogEntry) error
	List(dbc dbctx.Context, skillID string, limit int, offset int) ([]*types.MissingAuthorityLogEntry, error)
	CountByAsset(dbc dbctx.Context, assetID uuid.UUID) (int64, error)
}

type missingAuthorityLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMissingAuthorityLogRepo(db *gorm.DB, baseLog *logger.Logger) MissingAuthorityLogRepo {
	return &missingAuthorityLogRepo{db: db, log: baseLog.With("repo", "MissingAuthorityLogRepo")}
}

func (r *missingAuthorityLogRepo) Create(dbc dbctx.Context, rows []*types.MissingAuthorityLogEntry) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).Create(&rows).Error
}

// List returns entries newest first, optionally for one skill.
func (r *missingAuthorityLogRepo) List(dbc dbctx.Context, skillID string, limit int, offset int) ([]*types.MissingAuthorityLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := dbc.DB(r.db).WithContext(dbc.Context())
	if skillID != "" {
		q = q.Where("skill_id = ?", skillID)
	}
	var out []*types.MissingAuthorityLogEntry
	if err := q.Order("created_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *missingAuthorityLogRepo) CountByAsset(dbc dbctx.Context, assetID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.MissingAuthorityLogEntry{}).
		Where("asset_id = ?", assetID).
		Count(&n).Error
	return n, err
}
