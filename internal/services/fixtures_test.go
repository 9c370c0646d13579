package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/learning/gate"
	"github.com/yungbote/studyforge-backend/internal/learning/grading"
	"github.com/yungbote/studyforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type fixture struct {
	db     *gorm.DB
	log    *logger.Logger
	repos  repos.Repos
	userID uuid.UUID
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.Isolated(t)
	log := testutil.Logger(t)
	return &fixture{db: db, log: log, repos: repos.New(db, log), userID: uuid.New(), events: &recorder{}}
}

// as returns a request context authenticated as userID.
func as(userID uuid.UUID) dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})}
}

// recorder captures notifications from both notifier interfaces.
type recorder struct {
	mu        sync.Mutex
	created   []*types.BackgroundJob
	ready     []uuid.UUID
	verified  []string
	reminders [][]string
	failWith  error
}

func (r *recorder) JobCreated(_ uuid.UUID, job *types.BackgroundJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, job)
}
func (r *recorder) JobProgress(uuid.UUID, *types.BackgroundJob, string, int, string) {}
func (r *recorder) JobRetrying(uuid.UUID, *types.BackgroundJob, string)              {}
func (r *recorder) JobFailed(uuid.UUID, *types.BackgroundJob, string)                {}
func (r *recorder) JobDone(uuid.UUID, *types.BackgroundJob)                          {}

func (r *recorder) SessionReady(_ uuid.UUID, s *types.StudySession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, s.ID)
}

func (r *recorder) GateVerified(_ uuid.UUID, skillID string, _ gate.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verified = append(r.verified, skillID)
}

func (r *recorder) ReviewReminder(_ uuid.UUID, skillIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.reminders = append(r.reminders, skillIDs)
	return nil
}

type fixedGrader struct {
	score float64
	tags  []string
}

func (g fixedGrader) Grade(_ context.Context, _ grading.Submission) (grading.Grade, error) {
	return grading.Grade{
		Score:     g.score,
		Rubric:    map[string]float64{"overall": g.score},
		ErrorTags: g.tags,
		Grader:    "fixed",
	}, nil
}

type brokenGrader struct{}

func (brokenGrader) Grade(context.Context, grading.Submission) (grading.Grade, error) {
	return grading.Grade{}, errors.New("model unavailable")
}
