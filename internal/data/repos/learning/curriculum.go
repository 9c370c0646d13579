package learning

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// CurriculumRepo owns units and skills. Rows are written only by curriculum import.
type CurriculumRepo interface {
	UpsertUnits(dbc dbctx.Context, rows []*types.CurriculumUnit) error
	UpsertSkills(dbc dbctx.Context, rows []*types.Skill) error
	GetSkillsByIDs(dbc dbctx.Context, ids []string) ([]*types.Skill, error)
	GetSkillByID(dbc dbctx.Context, id string) (*types.Skill, error)
	ListSkills(dbc dbctx.Context) ([]*types.Skill, error)
	ListUnits(dbc dbctx.Context) ([]*types.CurriculumUnit, error)
}

type curriculumRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCurriculumRepo(db *gorm.DB, baseLog *logger.Logger) CurriculumRepo {
	return &curriculumRepo{db: db, log: baseLog.With("repo", "CurriculumRepo")}
}

func (r *curriculumRepo) UpsertUnits(dbc dbctx.Context, rows []*types.CurriculumUnit) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = now
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "exam_weight", "sort_index", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *curriculumRepo) UpsertSkills(dbc dbctx.Context, rows []*types.Skill) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = now
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"unit_id", "name", "exam_weight", "min_repetitions", "min_timed_proofs", "updated_at",
			}),
		}).
		Create(&rows).Error
}

func (r *curriculumRepo) GetSkillsByIDs(dbc dbctx.Context, ids []string) ([]*types.Skill, error) {
	var out []*types.Skill
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *curriculumRepo) GetSkillByID(dbc dbctx.Context, id string) (*types.Skill, error) {
	if id == "" {
		return nil, nil
	}
	rows, err := r.GetSkillsByIDs(dbc, []string{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *curriculumRepo) ListSkills(dbc dbctx.Context) ([]*types.Skill, error) {
	var out []*types.Skill
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Order("unit_id ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *curriculumRepo) ListUnits(dbc dbctx.Context) ([]*types.CurriculumUnit, error) {
	var out []*types.CurriculumUnit
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Order("sort_index ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
