package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/learning/grounding"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

var (
	ErrAssetNotFound   = errors.New("study asset not found")
	ErrSessionNotFound = errors.New("study session not found")
)

type PipelineConfig struct {
	// DefaultMode applies to assets created without a grounding mode.
	DefaultMode  string
	MinCitations int
}

// Outcome reports what Generate did with an asset.
type Outcome struct {
	Asset   *types.StudyAsset
	Skipped bool
	Stats   products.AssetStats
	Missing int
	Scrubs  []string
}

// Pipeline turns a GENERATING asset into a READY one:
// blueprint, retrieve, compose, validate, persist.
type Pipeline struct {
	db         *gorm.DB
	log        *logger.Logger
	sessions   repos.StudySessionRepo
	assets     repos.StudyAssetRepo
	curriculum repos.CurriculumRepo
	missing    repos.MissingAuthorityLogRepo
	retriever  *grounding.Retriever
	composer   Composer
	cfg        PipelineConfig
}

func NewPipeline(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, retriever *grounding.Retriever, composer Composer, cfg PipelineConfig) *Pipeline {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = products.GroundingSoft
	}
	if cfg.MinCitations < 1 {
		cfg.MinCitations = 1
	}
	return &Pipeline{
		db:         db,
		log:        baseLog.With("service", "ContentPipeline"),
		sessions:   r.Sessions,
		assets:     r.Assets,
		curriculum: r.Curriculum,
		missing:    r.MissingAuthorities,
		retriever:  retriever,
		composer:   composer,
		cfg:        cfg,
	}
}

// Generate runs the pipeline for one asset. Assets no longer GENERATING are
// returned untouched, so reruns after a crash are harmless.
func (p *Pipeline) Generate(ctx context.Context, assetID uuid.UUID) (*Outcome, error) {
	dbc := dbctx.Context{Ctx: ctx}
	asset, err := p.assets.GetByID(dbc, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}
	if asset.Status != products.AssetGenerating {
		return &Outcome{Asset: asset, Skipped: true}, nil
	}
	session, err := p.sessions.GetByID(dbc, asset.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	skillIDs := []string(session.TargetSkillIDs)
	skills, err := p.curriculum.GetSkillsByIDs(dbc, skillIDs)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	names := make(map[string]string, len(skills))
	for _, s := range skills {
		names[s.ID] = s.Name
	}
	briefs := make([]SkillBrief, 0, len(skillIDs))
	for _, id := range skillIDs {
		name := names[id]
		if name == "" {
			name = id
		}
		briefs = append(briefs, SkillBrief{ID: id, Name: name})
	}
	bp := Blueprint{
		Slots:   session.ActivityMix.Data(),
		Blocked: []string(session.BlockedActivity),
		Minutes: session.DurationMinutes,
	}

	set, err := p.retriever.RetrieveMany(ctx, skillIDs)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	draft, err := p.composer.Compose(ctx, ComposeRequest{Kind: asset.Kind, Skills: briefs, Blueprint: bp, Sources: set})
	if err != nil {
		return nil, err
	}
	items, scrubs := ScrubItems(draft.Items)

	mode := asset.GroundingMode
	if mode == "" {
		mode = p.cfg.DefaultMode
	}
	res, verr := Validate(items, set.IDs(), mode, p.cfg.MinCitations)
	entries := p.missingEntries(asset, mode, res.Missing)
	if verr != nil {
		if len(entries) > 0 {
			if err := p.missing.Create(dbc, entries); err != nil {
				p.log.Warn("missing authority log write failed", "asset_id", asset.ID, "error", err)
			}
		}
		return nil, verr
	}

	cited := map[string]bool{}
	for i := range res.Items {
		for _, id := range res.Items[i].Citations {
			cited[id] = true
		}
		if res.Items[i].Fallback && names[res.Items[i].SkillID] != "" {
			res.Items[i].Title = names[res.Items[i].SkillID]
		}
	}

	doc := Document{Kind: asset.Kind, Items: res.Items, Blueprint: bp.Slots}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}

	out := &Outcome{Stats: res.Stats, Missing: len(entries), Scrubs: scrubs}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		ok, err := p.assets.UpdateFieldsIfStatus(inner, asset.ID, products.AssetGenerating, map[string]interface{}{
			"status":         products.AssetReady,
			"grounding_mode": mode,
			"content":        datatypes.JSON(raw),
			"grounding_refs": datatypes.NewJSONType(set.Subset(cited).Refs()),
			"stats":          datatypes.NewJSONType(res.Stats),
			"model_id":       draft.Model,
			"error":          "",
			"updated_at":     time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !ok {
			out.Skipped = true
			return nil
		}
		if len(entries) > 0 {
			return p.missing.Create(inner, entries)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist asset: %w", err)
	}

	out.Asset, err = p.assets.GetByID(dbc, asset.ID)
	if err != nil {
		return nil, err
	}
	p.log.Info("asset generated",
		"asset_id", asset.ID,
		"kind", asset.Kind,
		"mode", mode,
		"items", res.Stats.ItemsTotal,
		"cited", res.Stats.ItemsCited,
		"fallback", res.Stats.ItemsFallback,
		"rejected", res.Stats.ItemsRejected,
		"skipped", out.Skipped,
	)
	return out, nil
}

// MarkFailed records a terminal pipeline failure on a still-GENERATING asset.
func (p *Pipeline) MarkFailed(ctx context.Context, assetID uuid.UUID, cause error) error {
	msg := "generation failed"
	if cause != nil {
		msg = cause.Error()
	}
	_, err := p.assets.UpdateFieldsIfStatus(dbctx.Context{Ctx: ctx}, assetID, products.AssetGenerating, map[string]interface{}{
		"status":     products.AssetFailed,
		"error":      msg,
		"updated_at": time.Now().UTC(),
	})
	return err
}

func (p *Pipeline) missingEntries(asset *types.StudyAsset, mode string, claims []MissingClaim) []*types.MissingAuthorityLogEntry {
	out := make([]*types.MissingAuthorityLogEntry, 0, len(claims))
	for _, c := range claims {
		out = append(out, &types.MissingAuthorityLogEntry{
			UserID:    asset.UserID,
			SkillID:   c.SkillID,
			AssetID:   asset.ID,
			AssetKind: asset.Kind,
			Mode:      mode,
			Claim:     c.Claim,
			Reason:    c.Reason,
		})
	}
	return out
}
