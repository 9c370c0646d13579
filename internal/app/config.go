package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/yungbote/studyforge-backend/internal/data/db"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/jobs/schedule"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/envutil"
	"github.com/yungbote/studyforge-backend/internal/platform/gcp"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/platform/neo4jdb"
	"github.com/yungbote/studyforge-backend/internal/platform/openai"
	"github.com/yungbote/studyforge-backend/internal/realtime/bus"
	"github.com/yungbote/studyforge-backend/internal/services"
)

const defaultJWTSecret = "defaultsecret"

type WorkerConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	HeartbeatEvery time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

type Config struct {
	LogMode string
	Port    string

	DB dbpkg.Config

	JWTSecretKey   string
	JWTIssuer      string
	AllowedOrigins []string

	Worker     WorkerConfig
	Schedule   schedule.Config
	Precompute services.PrecomputeConfig

	MinCitations int

	OpenAI openai.Config
	Redis  bus.RedisConfig
	Neo4j  neo4jdb.Config
	Bucket gcp.BucketConfig

	Otel           observability.OtelConfig
	MetricsEnabled bool
	MetricsAddr    string
}

func LoadConfig(log *logger.Logger) Config {
	pre := services.DefaultPrecomputeConfig()
	sched := schedule.DefaultConfig()

	cfg := Config{
		LogMode: envutil.String("LOG_MODE", "development"),
		Port:    envutil.String("PORT", "8080"),
		DB: dbpkg.Config{
			Driver:       strings.ToLower(envutil.String("DB_DRIVER", dbpkg.DriverPostgres)),
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "studyforge"),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:   envutil.String("SQLITE_PATH", "studyforge.db"),
			MaxOpenConns: envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5),
		},
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", defaultJWTSecret),
		JWTIssuer:      envutil.String("JWT_ISSUER", ""),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		Worker: WorkerConfig{
			Concurrency:    envutil.Int("WORKER_CONCURRENCY", 4),
			PollInterval:   envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
			HeartbeatEvery: envutil.Duration("WORKER_HEARTBEAT_EVERY", 15*time.Second),
			MaxAttempts:    envutil.Int("JOB_MAX_ATTEMPTS", 3),
			RetryBaseDelay: envutil.Duration("JOB_RETRY_BASE_DELAY", 30*time.Second),
		},
		Schedule: schedule.Config{
			ReclaimEvery:     envutil.Duration("JOB_RECLAIM_EVERY", sched.ReclaimEvery),
			StaleAfter:       envutil.Duration("JOB_STALE_AFTER", sched.StaleAfter),
			ReminderEvery:    envutil.Duration("REMINDER_EVERY", sched.ReminderEvery),
			ReminderCooldown: envutil.Duration("REMINDER_COOLDOWN", sched.ReminderCooldown),
			ReminderBatch:    envutil.Int("REMINDER_BATCH", sched.ReminderBatch),
		},
		Precompute: services.PrecomputeConfig{
			Sessions:         envutil.Int("PRECOMPUTE_SESSIONS", pre.Sessions),
			SessionMinutes:   envutil.Int("SESSION_MINUTES", pre.SessionMinutes),
			SkillsPerSession: envutil.Int("SESSION_SKILLS", pre.SkillsPerSession),
			GroundingMode:    strings.ToLower(envutil.String("GROUNDING_MODE", pre.GroundingMode)),
		},
		MinCitations: envutil.Int("GROUNDING_MIN_CITATIONS", 1),
		OpenAI: openai.Config{
			APIKey:      envutil.String("OPENAI_API_KEY", ""),
			BaseURL:     envutil.String("OPENAI_BASE_URL", ""),
			Model:       envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
			MaxRetries:  envutil.Int("OPENAI_MAX_RETRIES", 2),
			Temperature: envutil.Float("OPENAI_TEMPERATURE", 0.2),
			Timeout:     envutil.Duration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Channel:  envutil.String("REDIS_CHANNEL", "studyforge:events"),
		},
		Neo4j: neo4jdb.Config{
			URI:         envutil.String("NEO4J_URI", ""),
			User:        envutil.String("NEO4J_USER", "neo4j"),
			Password:    envutil.String("NEO4J_PASSWORD", ""),
			Database:    envutil.String("NEO4J_DATABASE", ""),
			Timeout:     envutil.Duration("NEO4J_TIMEOUT", 10*time.Second),
			MaxPoolSize: envutil.Int("NEO4J_MAX_POOL_SIZE", 20),
		},
		Bucket: gcp.BucketConfig{
			Name:         envutil.String("REPORT_BUCKET", ""),
			Credentials:  envutil.String("GCP_CREDENTIALS_FILE", ""),
			EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
			Prefix:       envutil.String("REPORT_PREFIX", "reports"),
		},
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "studyforge-backend"),
			Environment: envutil.String("OTEL_ENVIRONMENT", "development"),
			Version:     envutil.String("OTEL_SERVICE_VERSION", "dev"),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLE_RATIO", 1),
		},
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),
		MetricsAddr:    envutil.String("METRICS_ADDR", ":9090"),
	}

	if log != nil {
		if cfg.JWTSecretKey == defaultJWTSecret {
			log.Warn("JWT_SECRET_KEY not set, using development default")
		}
		if cfg.OpenAI.APIKey == "" {
			log.Info("OPENAI_API_KEY not set, using template composer and heuristic grader")
		}
	}
	return cfg
}

// Validate reports every setting that would make the process misbehave.
func (c Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case dbpkg.DriverPostgres, dbpkg.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %s or %s, got %q", dbpkg.DriverPostgres, dbpkg.DriverSQLite, c.DB.Driver))
	}
	switch c.Precompute.GroundingMode {
	case products.GroundingSoft, products.GroundingStrict:
	default:
		errs = append(errs, fmt.Errorf("GROUNDING_MODE must be soft or strict, got %q", c.Precompute.GroundingMode))
	}
	if c.MinCitations < 0 {
		errs = append(errs, errors.New("GROUNDING_MIN_CITATIONS must not be negative"))
	}
	if c.Precompute.Sessions < 1 {
		errs = append(errs, errors.New("PRECOMPUTE_SESSIONS must be at least 1"))
	}
	if c.Precompute.SkillsPerSession < 1 {
		errs = append(errs, errors.New("SESSION_SKILLS must be at least 1"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if c.Worker.MaxAttempts < 1 {
		errs = append(errs, errors.New("JOB_MAX_ATTEMPTS must be at least 1"))
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is empty"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
