package asset_generate

import (
	"context"
	"errors"
	"fmt"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/learning/content"
)

func (p *Pipeline) Run(jc *runtime.Context, in runtime.AssetGenerate) (any, error) {
	jc.Progress("generate", 10, "Generating study asset")
	out, err := p.content.Generate(jc.Ctx, in.AssetID)
	switch {
	case errors.Is(err, content.ErrAssetNotFound),
		errors.Is(err, content.ErrSessionNotFound),
		errors.Is(err, content.ErrNoSurvivingItems):
		return nil, runtime.Permanent(err)
	case err != nil:
		return nil, err
	}

	if !out.Skipped && p.metrics != nil {
		p.metrics.ObserveGrounding(out.Asset.Kind, out.Stats.ItemsCited, out.Stats.ItemsFallback, out.Stats.ItemsRejected)
	}

	jc.Progress("readiness", 90, "Checking session readiness")
	ready, err := p.sessions.RefreshReadiness(jc.Ctx, out.Asset.SessionID)
	if err != nil {
		return nil, fmt.Errorf("refresh readiness: %w", err)
	}

	return map[string]any{
		"asset_id":      out.Asset.ID.String(),
		"session_id":    out.Asset.SessionID.String(),
		"status":        out.Asset.Status,
		"skipped":       out.Skipped,
		"stats":         out.Stats,
		"missing":       out.Missing,
		"session_ready": ready,
	}, nil
}

// OnFailed marks the asset FAILED once its job is out of attempts. The
// session stays PREPARING.
func (p *Pipeline) OnFailed(ctx context.Context, job *types.BackgroundJob, cause error) {
	if job == nil || job.JobType != runtime.JobTypeAssetGenerate {
		return
	}
	payload, err := runtime.Decode(job.JobType, job.Payload)
	if err != nil {
		p.log.Warn("undecodable asset job payload", "job_id", job.ID, "error", err)
		return
	}
	in, ok := payload.(runtime.AssetGenerate)
	if !ok {
		return
	}
	if err := p.content.MarkFailed(ctx, in.AssetID, cause); err != nil {
		p.log.Error("mark asset failed", "asset_id", in.AssetID, "error", err)
	}
}
