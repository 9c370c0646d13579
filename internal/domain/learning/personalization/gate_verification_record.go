package personalization

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GateVerificationRecord is immutable once written; at most one per (user, skill).
type GateVerificationRecord struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_gate_user_skill,priority:1" json:"user_id"`
	SkillID string    `gorm:"column:skill_id;not null;uniqueIndex:idx_gate_user_skill,priority:2" json:"skill_id"`

	PMastery           float64                     `gorm:"column:p_mastery;not null" json:"p_mastery"`
	PassCount          int                         `gorm:"column:pass_count;not null" json:"pass_count"`
	HoursBetweenPasses float64                     `gorm:"column:hours_between_passes;not null" json:"hours_between_passes"`
	AttemptIDs         datatypes.JSONSlice[string] `gorm:"column:attempt_ids" json:"attempt_ids"`
	VerifiedAt         time.Time                   `gorm:"column:verified_at;not null" json:"verified_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (GateVerificationRecord) TableName() string { return "gate_verification_record" }

func (g *GateVerificationRecord) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
