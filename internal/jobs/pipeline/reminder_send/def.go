package reminder_send

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type Reminder interface {
	ReviewReminder(userID uuid.UUID, skillIDs []string) error
}

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	mastery repos.MasteryStateRepo
	notify  Reminder
	now     func() time.Time
}

var _ runtime.Handler[runtime.ReminderSend] = (*Pipeline)(nil)

func New(db *gorm.DB, baseLog *logger.Logger, mastery repos.MasteryStateRepo, notify Reminder) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", runtime.JobTypeReminderSend),
		mastery: mastery,
		notify:  notify,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) Type() string { return runtime.JobTypeReminderSend }
