package joins

import "github.com/google/uuid"

// AttemptSkill records the coverage weight of one skill in one attempt.
type AttemptSkill struct {
	AttemptID uuid.UUID `gorm:"type:uuid;primaryKey" json:"attempt_id"`
	SkillID   string    `gorm:"column:skill_id;primaryKey;index" json:"skill_id"`
	Weight    float64   `gorm:"column:weight;not null" json:"weight"`
}

func (AttemptSkill) TableName() string { return "attempt_skill" }
