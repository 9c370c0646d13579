package curriculum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/graph"
	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/platform/neo4jdb"
)

// Importer loads curriculum reference data. Re-importing a document is idempotent:
// rows are upserted by id and each authority's link set is replaced.
type Importer struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
	neo   *neo4jdb.Client
}

func NewImporter(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, neo *neo4jdb.Client) *Importer {
	return &Importer{
		db:    db,
		log:   baseLog.With("component", "CurriculumImporter"),
		repos: r,
		neo:   neo,
	}
}

// ImportFile picks the parser from the extension: .yaml, .yml or .xlsx.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc *Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		doc, err = ParseYAML(f)
	case ".xlsx":
		doc, err = ParseXLSX(f)
	default:
		return nil, fmt.Errorf("%w: unsupported curriculum file type %q", apierr.ErrInvalidArgument, ext)
	}
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, doc)
}

func (im *Importer) Import(ctx context.Context, doc *Document) (*Summary, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty curriculum document", apierr.ErrInvalidArgument)
	}
	if err := doc.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrInvalidArgument, err)
	}

	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := im.repos.Curriculum.UpsertUnits(dbc, doc.Units); err != nil {
			return fmt.Errorf("upsert units: %w", err)
		}
		if err := im.repos.Curriculum.UpsertSkills(dbc, doc.Skills); err != nil {
			return fmt.Errorf("upsert skills: %w", err)
		}
		if err := im.repos.Sources.UpsertOutlineTopics(dbc, doc.Outline); err != nil {
			return fmt.Errorf("upsert outline: %w", err)
		}
		if err := im.repos.Sources.UpsertTranscriptExcerpts(dbc, doc.Transcripts); err != nil {
			return fmt.Errorf("upsert transcripts: %w", err)
		}
		if err := im.repos.Sources.UpsertAuthorities(dbc, doc.Authorities); err != nil {
			return fmt.Errorf("upsert authorities: %w", err)
		}
		for authorityID, links := range doc.linksByAuthority() {
			if err := im.repos.Sources.ReplaceAuthorityLinks(dbc, authorityID, links); err != nil {
				return fmt.Errorf("links for %s: %w", authorityID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Units:       len(doc.Units),
		Skills:      len(doc.Skills),
		Outline:     len(doc.Outline),
		Transcripts: len(doc.Transcripts),
		Authorities: len(doc.Authorities),
		Links:       len(doc.Links),
		Cites:       len(doc.Cites),
	}

	// SQL stays the source of truth; a graph outage only degrades retrieval.
	if im.neo != nil {
		if err := graph.SyncAuthorities(ctx, im.neo, im.log, doc.Authorities, doc.Links, doc.Cites); err != nil {
			im.log.Warn("authority graph sync failed", "error", err)
		} else {
			sum.GraphSynced = true
		}
	}

	im.log.Info("Curriculum imported",
		"units", sum.Units,
		"skills", sum.Skills,
		"authorities", sum.Authorities,
		"graph_synced", sum.GraphSynced,
	)
	return sum, nil
}
