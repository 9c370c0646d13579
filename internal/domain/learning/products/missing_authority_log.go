package products

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MissingAuthorityLogEntry is an append-only curation signal for uncited claims.
type MissingAuthorityLogEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SkillID   string    `gorm:"column:skill_id;index" json:"skill_id"`
	AssetID   uuid.UUID `gorm:"type:uuid;not null;index" json:"asset_id"`
	AssetKind string    `gorm:"column:asset_kind;not null" json:"asset_kind"`
	Mode      string    `gorm:"column:mode;not null" json:"mode"`
	Claim     string    `gorm:"column:claim" json:"claim"`
	Reason    string    `gorm:"column:reason;not null" json:"reason"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (MissingAuthorityLogEntry) TableName() string { return "missing_authority_log" }

func (m *MissingAuthorityLogEntry) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
