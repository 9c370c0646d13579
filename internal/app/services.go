package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/curriculum"
	"github.com/yungbote/studyforge-backend/internal/data/graph"
	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/jobs/pipeline/asset_generate"
	"github.com/yungbote/studyforge-backend/internal/jobs/pipeline/reminder_send"
	"github.com/yungbote/studyforge-backend/internal/jobs/pipeline/report_generate"
	jobruntime "github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/jobs/schedule"
	"github.com/yungbote/studyforge-backend/internal/jobs/worker"
	"github.com/yungbote/studyforge-backend/internal/learning/content"
	"github.com/yungbote/studyforge-backend/internal/learning/grading"
	"github.com/yungbote/studyforge-backend/internal/learning/grounding"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Jobs       services.JobService
	Attempts   services.AttemptService
	Mastery    services.MasteryService
	Gates      services.GateService
	Precompute services.PrecomputeService
	Sessions   services.SessionService
	Reports    services.ReportService
	Curation   services.CurationService

	JobNotifier     jobruntime.Notifier
	LearnerNotifier services.LearnerNotifier

	Content  *content.Pipeline
	Importer *curriculum.Importer

	JobWorker *worker.Worker
	Sweeper   *schedule.Sweeper
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	var out Services

	out.JobNotifier = services.NewJobNotifier(clients.Bus, log)
	out.LearnerNotifier = services.NewLearnerNotifier(clients.Bus, log)

	out.Auth = services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer)
	out.Jobs = services.NewJobService(db, log, r.Jobs, out.JobNotifier, cfg.Worker.MaxAttempts)
	out.Attempts = services.NewAttemptService(db, log, r, buildGrader(log, clients), out.LearnerNotifier, metrics)
	out.Mastery = services.NewMasteryService(db, log, r)
	out.Gates = services.NewGateService(db, log, r)
	out.Precompute = services.NewPrecomputeService(db, log, r, out.Jobs, cfg.Precompute)
	out.Sessions = services.NewSessionService(db, log, r, out.Precompute, out.LearnerNotifier)
	out.Curation = services.NewCurationService(db, log, r.MissingAuthorities)

	var uploader services.ReportUploader
	if clients.Bucket != nil {
		uploader = clients.Bucket
	}
	out.Reports = services.NewReportService(db, log, r, out.Jobs, uploader)

	retriever := grounding.NewRetriever(r.Curriculum, r.Sources, graph.NewAuthorityGraph(clients.Neo4j, log), grounding.DefaultLimits(), log)
	out.Content = content.NewPipeline(db, log, r, retriever, buildComposer(clients), content.PipelineConfig{
		DefaultMode:  cfg.Precompute.GroundingMode,
		MinCitations: cfg.MinCitations,
	})
	out.Importer = curriculum.NewImporter(db, log, r, clients.Neo4j)

	assets := asset_generate.New(db, log, out.Content, out.Sessions, metrics)
	handlers := jobruntime.Handlers{
		AssetGenerate:  assets,
		ReportGenerate: report_generate.New(db, log, out.Reports),
		ReminderSend:   reminder_send.New(db, log, r.Mastery, out.LearnerNotifier),
	}
	w, err := worker.NewWorker(db, log, r.Jobs, handlers, out.JobNotifier, assets.OnFailed, metrics, worker.Config{
		Concurrency:    cfg.Worker.Concurrency,
		PollInterval:   cfg.Worker.PollInterval,
		HeartbeatEvery: cfg.Worker.HeartbeatEvery,
		Retry: jobruntime.RetryPolicy{
			MaxAttempts: cfg.Worker.MaxAttempts,
			BaseDelay:   cfg.Worker.RetryBaseDelay,
		},
	})
	if err != nil {
		return Services{}, fmt.Errorf("init job worker: %w", err)
	}
	out.JobWorker = w
	out.Sweeper = schedule.NewSweeper(log, r, out.Jobs, out.JobNotifier, assets.OnFailed, metrics, cfg.Schedule)

	return out, nil
}

func buildComposer(clients Clients) content.Composer {
	if clients.LLM != nil {
		return content.LLMComposer{Client: clients.LLM}
	}
	return content.TemplateComposer{}
}

// buildGrader prefers the model and falls back to the capped heuristic.
func buildGrader(log *logger.Logger, clients Clients) grading.Grader {
	heuristic := grading.HeuristicGrader{Config: grading.DefaultHeuristicConfig()}
	if clients.LLM == nil {
		return heuristic
	}
	return grading.WithFallback{
		Primary:  grading.LLMGrader{Client: clients.LLM},
		Fallback: heuristic,
		Log:      log,
	}
}

// queueCounter adapts the job repo to the metrics queue sampler.
type queueCounter struct {
	jobs repos.BackgroundJobRepo
}

func (q queueCounter) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return q.jobs.CountByStatus(dbctx.Context{Ctx: ctx})
}
