package learning

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/core"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// GroundingSourceRepo reads and imports the reference material content is grounded on.
type GroundingSourceRepo interface {
	UpsertOutlineTopics(dbc dbctx.Context, rows []*types.OutlineTopic) error
	UpsertTranscriptExcerpts(dbc dbctx.Context, rows []*types.TranscriptExcerpt) error
	UpsertAuthorities(dbc dbctx.Context, rows []*types.Authority) error
	ReplaceAuthorityLinks(dbc dbctx.Context, authorityID string, links []*types.AuthorityLink) error

	OutlineForSkill(dbc dbctx.Context, skillID string, limit int) ([]*types.OutlineTopic, error)
	ApprovedTranscriptsForSkill(dbc dbctx.Context, skillID string, limit int) ([]*types.TranscriptExcerpt, error)
	VerifiedAuthoritiesFor(dbc dbctx.Context, skillID string, unitID string, limit int) ([]*types.Authority, error)
	GetAuthoritiesByIDs(dbc dbctx.Context, ids []string) ([]*types.Authority, error)
}

type groundingSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroundingSourceRepo(db *gorm.DB, baseLog *logger.Logger) GroundingSourceRepo {
	return &groundingSourceRepo{db: db, log: baseLog.With("repo", "GroundingSourceRepo")}
}

func stamp(created *time.Time, updated *time.Time, now time.Time) {
	*updated = now
	if created.IsZero() {
		*created = now
	}
}

func (r *groundingSourceRepo) UpsertOutlineTopics(dbc dbctx.Context, rows []*types.OutlineTopic) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		stamp(&row.CreatedAt, &row.UpdatedAt, now)
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"skill_id", "unit_id", "title", "body", "confidence", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *groundingSourceRepo) UpsertTranscriptExcerpts(dbc dbctx.Context, rows []*types.TranscriptExcerpt) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		stamp(&row.CreatedAt, &row.UpdatedAt, now)
		if row.ModerationStatus == "" {
			row.ModerationStatus = core.ModerationPending
		}
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"skill_id", "lecture_id", "text", "moderation_status", "confidence", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *groundingSourceRepo) UpsertAuthorities(dbc dbctx.Context, rows []*types.Authority) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		stamp(&row.CreatedAt, &row.UpdatedAt, now)
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "citation", "title", "summary", "verified", "confidence", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *groundingSourceRepo) ReplaceAuthorityLinks(dbc dbctx.Context, authorityID string, links []*types.AuthorityLink) error {
	t := dbc.DB(r.db).WithContext(dbc.Context())
	if err := t.Where("authority_id = ?", authorityID).Delete(&types.AuthorityLink{}).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	for _, l := range links {
		l.AuthorityID = authorityID
	}
	return t.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

func (r *groundingSourceRepo) OutlineForSkill(dbc dbctx.Context, skillID string, limit int) ([]*types.OutlineTopic, error) {
	var out []*types.OutlineTopic
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("skill_id = ?", skillID).
		Order("confidence DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groundingSourceRepo) ApprovedTranscriptsForSkill(dbc dbctx.Context, skillID string, limit int) ([]*types.TranscriptExcerpt, error) {
	var out []*types.TranscriptExcerpt
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("skill_id = ? AND moderation_status = ?", skillID, core.ModerationApproved).
		Order("confidence DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groundingSourceRepo) VerifiedAuthoritiesFor(dbc dbctx.Context, skillID string, unitID string, limit int) ([]*types.Authority, error) {
	var out []*types.Authority
	linked := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.AuthorityLink{}).
		Select("authority_id").
		Where("(target_type = ? AND target_id = ?) OR (target_type = ? AND target_id = ?)",
			core.LinkTargetSkill, skillID, core.LinkTargetUnit, unitID)
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("verified = ? AND id IN (?)", true, linked).
		Order("confidence DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groundingSourceRepo) GetAuthoritiesByIDs(dbc dbctx.Context, ids []string) ([]*types.Authority, error) {
	var out []*types.Authority
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
