package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/learning/readiness"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// ReportUploader stores an exported report and returns its location.
type ReportUploader interface {
	UploadJSON(ctx context.Context, key string, v any) (string, error)
}

// ReportExport is the job result of report_generate.
type ReportExport struct {
	Report readiness.Report `json:"report"`
	URI    string           `json:"uri,omitempty"`
}

type ReportService interface {
	ReadinessForRequestUser(dbc dbctx.Context) (*readiness.Report, error)
	RequestForRequestUser(dbc dbctx.Context, export bool) (*types.BackgroundJob, error)

	Build(ctx context.Context, userID uuid.UUID) (*readiness.Report, error)
	// Export builds the report and, when an uploader is configured, uploads it.
	Export(ctx context.Context, userID uuid.UUID, upload bool) (*ReportExport, error)
}

type reportService struct {
	db       *gorm.DB
	log      *logger.Logger
	repos    repos.Repos
	jobs     JobService
	uploader ReportUploader
	now      func() time.Time
}

// NewReportService accepts a nil uploader; exports are then kept as job results only.
func NewReportService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, jobs JobService, uploader ReportUploader) ReportService {
	return &reportService{
		db:       db,
		log:      baseLog.With("service", "ReportService"),
		repos:    r,
		jobs:     jobs,
		uploader: uploader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *reportService) ReadinessForRequestUser(dbc dbctx.Context) (*readiness.Report, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	return s.Build(dbc.Context(), userID)
}

func (s *reportService) RequestForRequestUser(dbc dbctx.Context, export bool) (*types.BackgroundJob, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, fmt.Errorf("job service not configured")
	}
	job, _, err := s.jobs.Enqueue(dbc, userID, runtime.ReportGenerate{UserID: userID, Export: export}, EnqueueOptions{
		Priority: PriorityReport,
		Dedupe:   true,
	})
	return job, err
}

func (s *reportService) Build(ctx context.Context, userID uuid.UUID) (*readiness.Report, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", apierr.ErrInvalidArgument)
	}
	inner := dbctx.Context{Ctx: ctx}
	now := s.now()

	units, err := s.repos.Curriculum.ListUnits(inner)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	skills, err := s.repos.Curriculum.ListSkills(inner)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	states, err := s.repos.Mastery.ListByUser(inner, userID)
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	counts, err := s.repos.Attempts.CountsByFormatMode(inner, userID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	scores, err := s.repos.Attempts.ScoresSince(inner, userID, now.Add(-2*readiness.TrendWindow))
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	gates, err := s.repos.GateRecords.CountByUser(inner, userID)
	if err != nil {
		return nil, fmt.Errorf("count gates: %w", err)
	}

	in := readiness.Input{
		Units:         units,
		Skills:        skills,
		States:        states,
		VerifiedGates: gates,
		Now:           now,
	}
	for _, c := range counts {
		in.Evidence = append(in.Evidence, readiness.EvidenceBucket{Format: c.Format, Mode: c.Mode, Count: c.Count})
	}
	for _, sc := range scores {
		in.Scores = append(in.Scores, readiness.ScoreSample{Score: sc.Score, At: sc.CreatedAt})
	}
	rep := readiness.Build(in)
	return &rep, nil
}

func (s *reportService) Export(ctx context.Context, userID uuid.UUID, upload bool) (*ReportExport, error) {
	rep, err := s.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &ReportExport{Report: *rep}
	if !upload {
		return out, nil
	}
	if s.uploader == nil {
		s.log.Warn("report export requested but no bucket is configured", "user_id", userID)
		return out, nil
	}
	key := fmt.Sprintf("reports/%s/readiness-%s.json", userID, rep.GeneratedAt.Format("20060102T150405Z"))
	uri, err := s.uploader.UploadJSON(ctx, key, rep)
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	out.URI = uri
	s.log.Info("report exported", "user_id", userID, "uri", uri)
	return out, nil
}
