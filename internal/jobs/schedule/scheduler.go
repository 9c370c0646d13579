package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/jobs/worker"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

var errStaleHeartbeat = errors.New("stale heartbeat")

type Config struct {
	ReclaimEvery  time.Duration
	StaleAfter    time.Duration
	ReminderEvery time.Duration
	// ReminderCooldown is the minimum gap between two reminders to one user.
	ReminderCooldown time.Duration
	ReminderBatch    int
}

func DefaultConfig() Config {
	return Config{
		ReclaimEvery:     time.Minute,
		StaleAfter:       2 * time.Minute,
		ReminderEvery:    time.Hour,
		ReminderCooldown: 20 * time.Hour,
		ReminderBatch:    500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReclaimEvery <= 0 {
		c.ReclaimEvery = d.ReclaimEvery
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.ReminderEvery <= 0 {
		c.ReminderEvery = d.ReminderEvery
	}
	if c.ReminderCooldown < 0 {
		c.ReminderCooldown = 0
	}
	if c.ReminderBatch <= 0 {
		c.ReminderBatch = d.ReminderBatch
	}
	return c
}

// Sweeper runs the periodic maintenance jobs: stale job reclaim and due-review reminders.
type Sweeper struct {
	log      *logger.Logger
	jobs     repos.BackgroundJobRepo
	mastery  repos.MasteryStateRepo
	enqueue  services.JobService
	notify   runtime.Notifier
	onFailed worker.FailureHook
	metrics  *observability.Metrics
	cfg      Config
	now      func() time.Time

	scheduler *gocron.Scheduler
}

func NewSweeper(baseLog *logger.Logger, r repos.Repos, enqueue services.JobService, notify runtime.Notifier, onFailed worker.FailureHook, metrics *observability.Metrics, cfg Config) *Sweeper {
	return &Sweeper{
		log:      baseLog.With("component", "Sweeper"),
		jobs:     r.Jobs,
		mastery:  r.Mastery,
		enqueue:  enqueue,
		notify:   notify,
		onFailed: onFailed,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules both sweeps. Each sweep runs in singleton mode so a slow run
// is never overlapped by the next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()

	if _, err := sched.Every(s.cfg.ReclaimEvery).Do(func() {
		if _, _, err := s.ReclaimStale(ctx); err != nil {
			s.log.Error("stale job sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reclaim sweep: %w", err)
	}
	if _, err := sched.Every(s.cfg.ReminderEvery).Do(func() {
		if _, err := s.SendDueReminders(ctx); err != nil {
			s.log.Error("reminder sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}

	s.log.Info("Starting sweeps",
		"reclaim_every", s.cfg.ReclaimEvery,
		"stale_after", s.cfg.StaleAfter,
		"reminder_every", s.cfg.ReminderEvery,
	)
	sched.StartAsync()
	s.scheduler = sched

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

// ReclaimStale requeues processing jobs whose worker stopped heartbeating and
// fails those out of attempts, along with whatever depended on them.
func (s *Sweeper) ReclaimStale(ctx context.Context) (int64, int, error) {
	now := s.now()
	requeued, failed, err := s.jobs.ReclaimStale(dbctx.Context{Ctx: ctx}, now.Add(-s.cfg.StaleAfter), now)
	if err != nil {
		return 0, 0, err
	}
	s.metrics.IncJobReclaimed("requeued", int(requeued))
	s.metrics.IncJobReclaimed("failed", len(failed))

	for _, job := range failed {
		if s.notify != nil {
			s.notify.JobFailed(job.OwnerUserID, job, errStaleHeartbeat.Error())
		}
		if s.onFailed != nil {
			s.onFailed(ctx, job, errStaleHeartbeat)
		}
	}
	if requeued > 0 || len(failed) > 0 {
		s.log.Warn("Reclaimed stale jobs", "requeued", requeued, "failed", len(failed))
	}
	return requeued, len(failed), nil
}

// SendDueReminders enqueues one reminder_send job per user with reviews due,
// skipping users reminded within the cooldown.
func (s *Sweeper) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now()
	dbc := dbctx.Context{Ctx: ctx}
	users, err := s.mastery.ListUsersWithDue(dbc, now, s.cfg.ReminderBatch)
	if err != nil {
		return 0, fmt.Errorf("list users with due reviews: %w", err)
	}

	enqueued := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return enqueued, ctx.Err()
		}
		recent, err := s.remindedSince(dbc, userID, now.Add(-s.cfg.ReminderCooldown))
		if err != nil {
			s.log.Warn("reminder lookup failed", "user_id", userID, "error", err)
			continue
		}
		if recent {
			continue
		}
		due, err := s.mastery.ListDue(dbc, userID, now)
		if err != nil {
			s.log.Warn("list due failed", "user_id", userID, "error", err)
			continue
		}
		if len(due) == 0 {
			continue
		}
		skillIDs := make([]string, 0, len(due))
		for _, st := range due {
			skillIDs = append(skillIDs, st.SkillID)
		}
		_, created, err := s.enqueue.Enqueue(dbc, userID, runtime.ReminderSend{UserID: userID, SkillIDs: skillIDs}, services.EnqueueOptions{
			Priority: services.PriorityReminder,
			Dedupe:   true,
		})
		if err != nil {
			s.log.Warn("enqueue reminder failed", "user_id", userID, "error", err)
			continue
		}
		if created {
			enqueued++
		}
	}
	if enqueued > 0 {
		s.log.Info("Enqueued review reminders", "count", enqueued)
	}
	return enqueued, nil
}

func (s *Sweeper) remindedSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) (bool, error) {
	if s.cfg.ReminderCooldown == 0 {
		return false, nil
	}
	last, err := s.jobs.GetLatestByEntity(dbc, runtime.EntityUser, userID, runtime.JobTypeReminderSend)
	if err != nil {
		return false, err
	}
	return last != nil && last.CreatedAt.After(since), nil
}
