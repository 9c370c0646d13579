package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// BackgroundJob is one durable unit of async work. Only the worker mutates Status.
type BackgroundJob struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	JobType     string     `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType  string     `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`

	Priority     int       `gorm:"column:priority;not null;default:100;index:idx_background_job_claim,priority:2" json:"priority"`
	Status       string    `gorm:"column:status;not null;index:idx_background_job_claim,priority:1" json:"status"`
	ScheduledFor time.Time `gorm:"column:scheduled_for;not null;index:idx_background_job_claim,priority:3" json:"scheduled_for"`
	Attempts     int       `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts  int       `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`

	Error       string     `gorm:"column:error" json:"error,omitempty"`
	LockedAt    *time.Time `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Payload datatypes.JSON `gorm:"column:payload" json:"payload"`
	Result  datatypes.JSON `gorm:"column:result" json:"result,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (BackgroundJob) TableName() string { return "background_job" }

func (j *BackgroundJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Runnable reports whether the job can still be claimed by a worker.
func (j *BackgroundJob) Runnable() bool {
	return j != nil && (j.Status == StatusPending || j.Status == StatusProcessing)
}
