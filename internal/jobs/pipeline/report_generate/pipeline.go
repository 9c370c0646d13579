package report_generate

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *runtime.Context, in runtime.ReportGenerate) (any, error) {
	if in.UserID == uuid.Nil {
		return nil, runtime.Permanent(fmt.Errorf("missing user_id"))
	}
	if jc.Job != nil && jc.Job.OwnerUserID != in.UserID {
		return nil, runtime.Permanent(fmt.Errorf("report job owner mismatch"))
	}

	jc.Progress("build", 20, "Building readiness report")
	out, err := p.reports.Export(jc.Ctx, in.UserID, in.Export)
	if err != nil {
		return nil, err
	}
	if out.URI != "" {
		p.log.Info("readiness report exported", "user_id", in.UserID, "uri", out.URI)
	}
	return out, nil
}
