package products

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AssetNotes       = "NOTES"
	AssetCheckpoint  = "CHECKPOINT"
	AssetPracticeSet = "PRACTICE_SET"
	AssetRubric      = "RUBRIC"
)

const (
	AssetGenerating = "GENERATING"
	AssetReady      = "READY"
	AssetFailed     = "FAILED"
)

const (
	GroundingSoft   = "soft"
	GroundingStrict = "strict"
)

// SessionAssetKinds are created for every precomputed session.
var SessionAssetKinds = []string{AssetNotes, AssetCheckpoint, AssetPracticeSet, AssetRubric}

// GroundingRef cites one retrieved source.
type GroundingRef struct {
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	Title      string  `json:"title,omitempty"`
	Confidence float64 `json:"confidence"`
}

// GroundingRefs groups refs by source kind.
type GroundingRefs struct {
	Outline     []GroundingRef `json:"outline"`
	Authorities []GroundingRef `json:"authorities"`
	Lectures    []GroundingRef `json:"lectures"`
}

// All flattens refs in outline, authority, lecture order.
func (g GroundingRefs) All() []GroundingRef {
	out := make([]GroundingRef, 0, len(g.Outline)+len(g.Authorities)+len(g.Lectures))
	out = append(out, g.Outline...)
	out = append(out, g.Authorities...)
	out = append(out, g.Lectures...)
	return out
}

// IDs is the set of cited source ids.
func (g GroundingRefs) IDs() map[string]bool {
	ids := map[string]bool{}
	for _, r := range g.All() {
		ids[r.SourceID] = true
	}
	return ids
}

// AssetStats summarizes citation validation.
type AssetStats struct {
	ItemsTotal    int `json:"items_total"`
	ItemsCited    int `json:"items_cited"`
	ItemsFallback int `json:"items_fallback"`
	ItemsRejected int `json:"items_rejected"`
}

// StudyAsset is one generated artifact for a session. Status only moves forward from GENERATING.
type StudyAsset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind      string    `gorm:"column:kind;not null" json:"kind"`
	Status    string    `gorm:"column:status;not null;index" json:"status"`

	GroundingMode string                            `gorm:"column:grounding_mode;not null;default:soft" json:"grounding_mode"`
	Content       datatypes.JSON                    `gorm:"column:content" json:"content,omitempty"`
	GroundingRefs datatypes.JSONType[GroundingRefs] `gorm:"column:grounding_refs" json:"grounding_refs"`
	Stats         datatypes.JSONType[AssetStats]    `gorm:"column:stats" json:"stats"`
	ModelID       string                            `gorm:"column:model_id" json:"model_id,omitempty"`
	Error         string                            `gorm:"column:error" json:"error,omitempty"`
	JobID         *uuid.UUID                        `gorm:"type:uuid;column:job_id" json:"job_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (StudyAsset) TableName() string { return "study_asset" }

func (a *StudyAsset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
