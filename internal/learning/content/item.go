package content

import "github.com/yungbote/studyforge-backend/internal/domain/learning/products"

// FallbackText replaces any claim no verified source supports.
const FallbackText = "Not found in verified sources yet."

// FallbackTitle replaces the title of a flagged item until a skill label is known.
const FallbackTitle = "Unsourced point"

const (
	ItemNote      = "note"
	ItemQuestion  = "question"
	ItemCriterion = "criterion"
)

// Item is one unit of generated material.
type Item struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	SkillID   string   `json:"skill_id,omitempty"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Answer    string   `json:"answer,omitempty"`
	Citations []string `json:"citations"`
	Fallback  bool     `json:"fallback"`
}

// Draft is the composer output before validation.
type Draft struct {
	Items []Item
	Model string
}

// Document is the persisted asset content.
type Document struct {
	Kind      string                  `json:"kind"`
	Items     []Item                  `json:"items"`
	Blueprint []products.ActivitySlot `json:"blueprint,omitempty"`
}

func itemTypeFor(kind string) string {
	switch kind {
	case products.AssetCheckpoint, products.AssetPracticeSet:
		return ItemQuestion
	case products.AssetRubric:
		return ItemCriterion
	default:
		return ItemNote
	}
}
