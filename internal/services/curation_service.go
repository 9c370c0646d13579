package services

import (
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type CurationQuery struct {
	SkillID string
	Limit   int
	Offset  int
}

// CurationService exposes the missing-authority log to curators.
type CurationService interface {
	ListMissingAuthorities(dbc dbctx.Context, q CurationQuery) ([]*types.MissingAuthorityLogEntry, error)
}

type curationService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.MissingAuthorityLogRepo
}

func NewCurationService(db *gorm.DB, baseLog *logger.Logger, repo repos.MissingAuthorityLogRepo) CurationService {
	return &curationService{db: db, log: baseLog.With("service", "CurationService"), repo: repo}
}

func (s *curationService) ListMissingAuthorities(dbc dbctx.Context, q CurationQuery) ([]*types.MissingAuthorityLogEntry, error) {
	if _, err := requestUserID(dbc); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, strings.TrimSpace(q.SkillID), q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.MissingAuthorityLogEntry{}
	}
	return rows, nil
}
