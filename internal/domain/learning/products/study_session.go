package products

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionQueued     = "QUEUED"
	SessionPreparing  = "PREPARING"
	SessionReady      = "READY"
	SessionInProgress = "IN_PROGRESS"
	SessionCompleted  = "COMPLETED"
	SessionAbandoned  = "ABANDONED"
)

const (
	ActivityReading      = "READING"
	ActivityFlashcards   = "FLASHCARDS"
	ActivityQuiz         = "QUIZ"
	ActivityIssueSpotter = "ISSUE_SPOTTER"
	ActivityPastPaper    = "PAST_PAPER"
)

// ActivitySlot is one block of a session blueprint.
type ActivitySlot struct {
	Type    string   `json:"type"`
	Minutes int      `json:"minutes"`
	Skills  []string `json:"skills"`
}

// StudySession is a planned unit of study.
// QUEUED -> PREPARING -> READY -> IN_PROGRESS -> COMPLETED, or ABANDONED from any non-terminal state.
type StudySession struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_session_user_status,priority:1;uniqueIndex:idx_session_user_sequence,priority:1" json:"user_id"`
	Sequence int       `gorm:"column:sequence;not null;default:0;uniqueIndex:idx_session_user_sequence,priority:2" json:"sequence"`
	Status   string    `gorm:"column:status;not null;index:idx_session_user_status,priority:2" json:"status"`

	DurationMinutes int                                `gorm:"column:duration_minutes;not null" json:"duration_minutes"`
	TargetSkillIDs  datatypes.JSONSlice[string]        `gorm:"column:target_skill_ids" json:"target_skill_ids"`
	ActivityMix     datatypes.JSONType[[]ActivitySlot] `gorm:"column:activity_mix" json:"activity_mix"`
	BlockedActivity datatypes.JSONSlice[string]        `gorm:"column:blocked_activity" json:"blocked_activity,omitempty"`

	ReadyAt     *time.Time `gorm:"column:ready_at" json:"ready_at,omitempty"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	AbandonedAt *time.Time `gorm:"column:abandoned_at" json:"abandoned_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Assets []*StudyAsset `gorm:"foreignKey:SessionID" json:"assets,omitempty"`
}

func (StudySession) TableName() string { return "study_session" }

func (s *StudySession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Upcoming reports whether the session still counts toward the precompute buffer.
func (s *StudySession) Upcoming() bool {
	return s != nil && (s.Status == SessionPreparing || s.Status == SessionReady)
}

// CanTransition reports whether from -> to is a legal session move.
func CanTransition(from, to string) bool {
	switch to {
	case SessionPreparing:
		return from == SessionQueued
	case SessionReady:
		return from == SessionPreparing
	case SessionInProgress:
		return from == SessionReady
	case SessionCompleted:
		return from == SessionInProgress
	case SessionAbandoned:
		return from == SessionQueued || from == SessionPreparing || from == SessionReady || from == SessionInProgress
	}
	return false
}
