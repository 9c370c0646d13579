package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/studyforge-backend/internal/http"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,

		AuthMiddleware: middleware.Auth,

		AttemptHandler:  handlers.Attempt,
		MasteryHandler:  handlers.Mastery,
		SessionHandler:  handlers.Session,
		ReportHandler:   handlers.Report,
		JobHandler:      handlers.Job,
		CurationHandler: handlers.Curation,

		HealthHandler: handlers.Health,
	})
}
