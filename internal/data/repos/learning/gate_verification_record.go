package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type GateVerificationRecordRepo interface {
	// CreateIfAbsent inserts row unless (user, skill) already has a record.
	CreateIfAbsent(dbc dbctx.Context, row *types.GateVerificationRecord) (bool, error)
	GetByUserAndSkill(dbc dbctx.Context, userID uuid.UUID, skillID string) (*types.GateVerificationRecord, error)
	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type gateVerificationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGateVerificationRecordRepo(db *gorm.DB, baseLog *logger.Logger) GateVerificationRecordRepo {
	return &gateVerificationRecordRepo{db: db, log: baseLog.With("repo", "GateVerificationRecordRepo")}
}

func (r *gateVerificationRecordRepo) CreateIfAbsent(dbc dbctx.Context, row *types.GateVerificationRecord) (bool, error) {
	if row == nil || row.UserID == uuid.Nil || row.SkillID == "" {
		return false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gateVerificationRecordRepo) GetByUserAndSkill(dbc dbctx.Context, userID uuid.UUID, skillID string) (*types.GateVerificationRecord, error) {
	var out []*types.GateVerificationRecord
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *gateVerificationRecordRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.GateVerificationRecord{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}
