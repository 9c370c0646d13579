package report_generate

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type Exporter interface {
	Export(ctx context.Context, userID uuid.UUID, upload bool) (*services.ReportExport, error)
}

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	reports Exporter
}

var _ runtime.Handler[runtime.ReportGenerate] = (*Pipeline)(nil)

func New(db *gorm.DB, baseLog *logger.Logger, reports Exporter) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", runtime.JobTypeReportGenerate),
		reports: reports,
	}
}

func (p *Pipeline) Type() string { return runtime.JobTypeReportGenerate }
