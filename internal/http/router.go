package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/studyforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyforge-backend/internal/http/middleware"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	AttemptHandler  *httpH.AttemptHandler
	MasteryHandler  *httpH.MasteryHandler
	SessionHandler  *httpH.SessionHandler
	ReportHandler   *httpH.ReportHandler
	JobHandler      *httpH.JobHandler
	CurationHandler *httpH.CurationHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Attempts
		if cfg.AttemptHandler != nil {
			protected.POST("/attempts", cfg.AttemptHandler.Submit)
		}

		// Mastery + gates
		if cfg.MasteryHandler != nil {
			protected.GET("/mastery", cfg.MasteryHandler.List)
			protected.GET("/mastery/:skillId/gate", cfg.MasteryHandler.ExplainGate)
		}

		// Sessions + assets
		if cfg.SessionHandler != nil {
			protected.GET("/sessions", cfg.SessionHandler.List)
			protected.GET("/sessions/:id", cfg.SessionHandler.Get)
			protected.POST("/sessions/:id/start", cfg.SessionHandler.Start)
			protected.POST("/sessions/:id/complete", cfg.SessionHandler.Complete)
			protected.POST("/sessions/:id/abandon", cfg.SessionHandler.Abandon)
			protected.GET("/assets/:id", cfg.SessionHandler.GetAsset)
		}

		// Reports
		if cfg.ReportHandler != nil {
			protected.GET("/reports/readiness", cfg.ReportHandler.Readiness)
			protected.POST("/reports", cfg.ReportHandler.Request)
		}

		// Jobs
		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}

		// Curation
		if cfg.CurationHandler != nil {
			protected.GET("/curation/missing-authorities", cfg.CurationHandler.ListMissingAuthorities)
		}
	}

	return r
}
