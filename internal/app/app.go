package app

import (
	"context"
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/curriculum"
	dbpkg "github.com/yungbote/studyforge-backend/internal/data/db"
	"github.com/yungbote/studyforge-backend/internal/data/repos"
	apphttp "github.com/yungbote/studyforge-backend/internal/http"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/envutil"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	dbService    *dbpkg.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// bootstrap loads env and config, then opens the database.
func bootstrap() (Config, *logger.Logger, *dbpkg.Service, error) {
	if err := envutil.LoadDotEnv(); err != nil {
		return Config{}, nil, nil, fmt.Errorf("load .env: %w", err)
	}
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return Config{}, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return Config{}, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	svc, err := dbpkg.NewService(cfg.DB, log)
	if err != nil {
		log.Sync()
		return Config{}, nil, nil, fmt.Errorf("init database: %w", err)
	}
	return cfg, log, svc, nil
}

// Migrate creates or updates every table and exits.
func Migrate() error {
	_, log, svc, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer svc.Close()

	log.Info("Auto migrating tables...", "driver", svc.Driver())
	return dbpkg.AutoMigrateAll(svc.DB())
}

func New(ctx context.Context) (*App, error) {
	cfg, log, svc, err := bootstrap()
	if err != nil {
		return nil, err
	}
	theDB := svc.DB()
	if err := dbpkg.AutoMigrateAll(theDB); err != nil {
		_ = svc.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log, cfg.MetricsEnabled)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = svc.Close()
		log.Sync()
		return nil, err
	}

	reposet := repos.New(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close(ctx, log)
		_ = svc.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(theDB, log, serviceset)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		dbService:    svc,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches metric collectors and, when background is set, the job worker and sweeps.
func (a *App) Start(ctx context.Context, background bool) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.Redis.Addr)
	a.Metrics.StartJobQueueCollector(ctx, a.Log, queueCounter{jobs: a.Repos.Jobs})

	if !background {
		return nil
	}
	a.Services.JobWorker.Start(ctx)
	if err := a.Services.Sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	return nil
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := net.JoinHostPort("", a.Cfg.Port)
	a.Log.Info("HTTP server listening", "addr", addr)
	srv := &apphttp.Server{Engine: a.Router}
	return srv.Run(ctx, addr)
}

// ServeAndWork runs the API and the worker in one process.
func (a *App) ServeAndWork(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if err := a.Start(gctx, true); err != nil {
		return err
	}
	g.Go(func() error { return a.Serve(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		a.Services.JobWorker.Wait()
		return nil
	})
	return g.Wait()
}

// Work runs only the job worker and sweeps until ctx is cancelled.
func (a *App) Work(ctx context.Context) error {
	if err := a.Start(ctx, true); err != nil {
		return err
	}
	a.Log.Info("Job worker running", "concurrency", a.Cfg.Worker.Concurrency)
	<-ctx.Done()
	a.Services.JobWorker.Wait()
	return nil
}

func (a *App) ImportCurriculum(ctx context.Context, path string) (*curriculum.Summary, error) {
	return a.Services.Importer.ImportFile(ctx, path)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx := context.Background()
	if a.Services.Sweeper != nil {
		a.Services.Sweeper.Stop()
	}
	a.Clients.Close(ctx, a.Log)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
