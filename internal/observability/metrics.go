package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// QueueCounter reports job counts by status.
type QueueCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *Gauge
	jobOutcomes  *CounterVec
	jobDuration  *HistogramVec
	queueDepth   *GaugeVec
	gateDecision *CounterVec
	grounding    *CounterVec
	grading      *CounterVec
	llmRequests  *CounterVec
	llmLatency   *HistogramVec
	dbStats      *GaugeVec
	redisUp      *Gauge
	redisPing    *Gauge

	scrapeEvery time.Duration
	all         []writer
}

type writer interface {
	WritePrometheus(w io.Writer) error
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current is nil until Init runs with metrics enabled. Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered metrics set.
func New() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("sf_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec("sf_api_request_duration_seconds", "API latency by method/route.",
			[]string{"method", "route"}, []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}),
		apiInflight: NewGauge("sf_api_inflight_requests", "In-flight API requests."),
		jobOutcomes: NewCounterVec("sf_job_outcomes_total", "Job executions by type and outcome.", []string{"job_type", "outcome"}),
		jobDuration: NewHistogramVec("sf_job_duration_seconds", "Job handler duration.",
			[]string{"job_type"}, []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}),
		queueDepth:   NewGaugeVec("sf_job_queue_depth", "Jobs by status.", []string{"status"}),
		gateDecision: NewCounterVec("sf_gate_decisions_total", "Gate evaluations by result and reason.", []string{"result", "reason"}),
		grounding:    NewCounterVec("sf_grounding_items_total", "Validated content items by asset kind and outcome.", []string{"kind", "outcome"}),
		grading:      NewCounterVec("sf_grading_total", "Graded attempts by grader kind.", []string{"grader"}),
		llmRequests:  NewCounterVec("sf_llm_requests_total", "LLM requests by model and status.", []string{"model", "status"}),
		llmLatency: NewHistogramVec("sf_llm_request_duration_seconds", "LLM latency by model.",
			[]string{"model"}, []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60}),
		dbStats:     NewGaugeVec("sf_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp:     NewGauge("sf_redis_up", "1 when the last redis ping succeeded."),
		redisPing:   NewGauge("sf_redis_ping_seconds", "Last redis ping latency."),
		scrapeEvery: 10 * time.Second,
	}
	m.all = []writer{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.jobOutcomes, m.jobDuration, m.queueDepth,
		m.gateDecision, m.grounding, m.grading,
		m.llmRequests, m.llmLatency,
		m.dbStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, x := range m.all {
		if err := x.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

// ObserveJob records one handler run. outcome is completed, retried or failed.
func (m *Metrics) ObserveJob(jobType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobOutcomes.Inc(jobType, outcome)
	m.jobDuration.Observe(dur.Seconds(), jobType)
}

func (m *Metrics) IncJobReclaimed(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.jobOutcomes.Add(float64(n), "reclaim", outcome)
}

func (m *Metrics) ObserveGate(verified bool, reasons []string) {
	if m == nil {
		return
	}
	if verified {
		m.gateDecision.Inc("verified", "none")
		return
	}
	for _, r := range reasons {
		m.gateDecision.Inc("not_verified", r)
	}
}

func (m *Metrics) ObserveGrounding(kind string, cited, fallback, rejected int) {
	if m == nil {
		return
	}
	m.grounding.Add(float64(cited), kind, "cited")
	m.grounding.Add(float64(fallback), kind, "fallback")
	m.grounding.Add(float64(rejected), kind, "rejected")
}

func (m *Metrics) IncGrading(grader string) {
	if m != nil {
		m.grading.Inc(grader)
	}
}

func (m *Metrics) ObserveLLM(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	m.llmLatency.Observe(dur.Seconds(), model)
}

// StartDBCollector samples the connection pool.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: db stats unavailable", "error", err)
			}
			return
		}
		s := sqlDB.Stats()
		m.dbStats.Set(float64(s.OpenConnections), "open_connections")
		m.dbStats.Set(float64(s.InUse), "in_use")
		m.dbStats.Set(float64(s.Idle), "idle")
		m.dbStats.Set(float64(s.WaitCount), "wait_count")
		m.dbStats.Set(s.WaitDuration.Seconds(), "wait_duration_seconds")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || strings.TrimSpace(addr) == "" {
		return
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		<-ctx.Done()
		_ = rdb.Close()
	}()
	m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartJobQueueCollector samples queue depth by status.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, q QueueCounter) {
	if m == nil || q == nil {
		return
	}
	m.every(ctx, func() { m.SampleQueue(ctx, log, q) })
}

func (m *Metrics) SampleQueue(ctx context.Context, log *logger.Logger, q QueueCounter) {
	if m == nil {
		return
	}
	counts, err := q.CountByStatus(ctx)
	if err != nil {
		if log != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
		}
		return
	}
	for _, s := range []string{"pending", "processing", "completed", "failed"} {
		m.queueDepth.Set(float64(counts[s]), s)
	}
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	go func() {
		ticker := time.NewTicker(m.scrapeEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
