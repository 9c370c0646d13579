package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/learning/gate"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
	"github.com/yungbote/studyforge-backend/internal/realtime/bus"
)

const publishTimeout = 2 * time.Second

// emitter is the shared publish path for every notifier.
type emitter struct {
	bus bus.Bus
	log *logger.Logger
}

func (e emitter) emit(userID uuid.UUID, event realtime.Event, data any) error {
	if e.bus == nil || userID == uuid.Nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := e.bus.Publish(ctx, realtime.Message{Channel: userID.String(), Event: event, Data: data})
	if err != nil && e.log != nil {
		e.log.Warn("publish failed", "event", event, "user_id", userID, "error", err)
	}
	return err
}

// =========================
// Job notifier
// =========================

type jobNotifier struct {
	emitter
}

func NewJobNotifier(b bus.Bus, baseLog *logger.Logger) runtime.Notifier {
	return &jobNotifier{emitter{bus: b, log: baseLog.With("service", "JobNotifier")}}
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.BackgroundJob) {
	_ = n.emit(userID, realtime.EventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.BackgroundJob, stage string, progress int, message string) {
	_ = n.emit(userID, realtime.EventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobRetrying(userID uuid.UUID, job *types.BackgroundJob, errorMessage string) {
	_ = n.emit(userID, realtime.EventJobRetrying, map[string]any{
		"job_id":        job.ID,
		"job_type":      job.JobType,
		"attempts":      job.Attempts,
		"scheduled_for": job.ScheduledFor,
		"error":         errorMessage,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.BackgroundJob, errorMessage string) {
	_ = n.emit(userID, realtime.EventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"error":    errorMessage,
		"job":      job,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.BackgroundJob) {
	_ = n.emit(userID, realtime.EventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
}

// =========================
// Learner notifier
// =========================

// LearnerNotifier pushes study events that are not tied to one job.
type LearnerNotifier interface {
	SessionReady(userID uuid.UUID, session *types.StudySession)
	GateVerified(userID uuid.UUID, skillID string, decision gate.Decision)
	// ReviewReminder reports publish failures so the reminder job can retry.
	ReviewReminder(userID uuid.UUID, skillIDs []string) error
}

type learnerNotifier struct {
	emitter
}

func NewLearnerNotifier(b bus.Bus, baseLog *logger.Logger) LearnerNotifier {
	return &learnerNotifier{emitter{bus: b, log: baseLog.With("service", "LearnerNotifier")}}
}

func (n *learnerNotifier) SessionReady(userID uuid.UUID, session *types.StudySession) {
	if session == nil {
		return
	}
	_ = n.emit(userID, realtime.EventSessionReady, map[string]any{
		"session_id": session.ID,
		"sequence":   session.Sequence,
	})
}

func (n *learnerNotifier) GateVerified(userID uuid.UUID, skillID string, decision gate.Decision) {
	_ = n.emit(userID, realtime.EventGateVerified, map[string]any{
		"skill_id":             skillID,
		"p_mastery":            decision.PMastery,
		"pass_count":           decision.PassCount,
		"hours_between_passes": decision.HoursBetweenPasses,
	})
}

func (n *learnerNotifier) ReviewReminder(userID uuid.UUID, skillIDs []string) error {
	return n.emit(userID, realtime.EventReviewReminder, map[string]any{
		"skill_ids": skillIDs,
		"count":     len(skillIDs),
	})
}
