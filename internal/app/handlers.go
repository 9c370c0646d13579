package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/studyforge-backend/internal/http/handlers"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Attempt  *httpH.AttemptHandler
	Mastery  *httpH.MasteryHandler
	Session  *httpH.SessionHandler
	Report   *httpH.ReportHandler
	Job      *httpH.JobHandler
	Curation *httpH.CurationHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Attempt:  httpH.NewAttemptHandler(log, services.Attempts),
		Mastery:  httpH.NewMasteryHandler(services.Mastery, services.Gates),
		Session:  httpH.NewSessionHandler(services.Sessions),
		Report:   httpH.NewReportHandler(services.Reports),
		Job:      httpH.NewJobHandler(services.Jobs),
		Curation: httpH.NewCurationHandler(services.Curation),
	}
}
