package personalization

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MasteryState is the learner's estimate for one skill. One row per (user, skill).
type MasteryState struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mastery_user_skill,priority:1" json:"user_id"`
	SkillID string    `gorm:"column:skill_id;not null;uniqueIndex:idx_mastery_user_skill,priority:2;index" json:"skill_id"`

	PMastery  float64 `gorm:"column:p_mastery;not null;default:0" json:"p_mastery"`
	Stability float64 `gorm:"column:stability;not null;default:1" json:"stability"`

	// SM-2 scheduling memory, kept apart from Stability.
	Easiness     float64 `gorm:"column:easiness;not null;default:2.5" json:"easiness"`
	IntervalDays int     `gorm:"column:interval_days;not null;default:0" json:"interval_days"`

	AttemptCount int `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	CorrectCount int `gorm:"column:correct_count;not null;default:0" json:"correct_count"`

	IsVerified bool       `gorm:"column:is_verified;not null;default:false" json:"is_verified"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`

	LastPracticedAt *time.Time `gorm:"column:last_practiced_at" json:"last_practiced_at,omitempty"`
	NextReviewDate  *time.Time `gorm:"column:next_review_date;index" json:"next_review_date,omitempty"`

	// Version guards concurrent read-modify-write of the same row.
	Version int `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MasteryState) TableName() string { return "mastery_state" }

func (m *MasteryState) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Due reports whether the skill is due for review at now.
func (m *MasteryState) Due(now time.Time) bool {
	if m == nil || m.NextReviewDate == nil {
		return false
	}
	return !m.NextReviewDate.After(now)
}
