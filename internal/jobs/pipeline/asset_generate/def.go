package asset_generate

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/learning/content"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// ReadinessRefresher promotes a session once all of its assets are READY.
type ReadinessRefresher interface {
	RefreshReadiness(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	content  *content.Pipeline
	sessions ReadinessRefresher
	metrics  *observability.Metrics
}

var _ runtime.Handler[runtime.AssetGenerate] = (*Pipeline)(nil)

func New(db *gorm.DB, baseLog *logger.Logger, gen *content.Pipeline, sessions ReadinessRefresher, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		db:       db,
		log:      baseLog.With("job", runtime.JobTypeAssetGenerate),
		content:  gen,
		sessions: sessions,
		metrics:  metrics,
	}
}

func (p *Pipeline) Type() string { return runtime.JobTypeAssetGenerate }
