package core

import "time"

// CurriculumUnit groups skills. Reference data owned by curriculum import.
type CurriculumUnit struct {
	ID         string  `gorm:"column:id;primaryKey" json:"id" yaml:"id"`
	Title      string  `gorm:"column:title;not null" json:"title" yaml:"title"`
	ExamWeight float64 `gorm:"column:exam_weight;not null;default:0" json:"exam_weight" yaml:"exam_weight"`
	SortIndex  int     `gorm:"column:sort_index;not null;default:0" json:"sort_index" yaml:"sort_index"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (CurriculumUnit) TableName() string { return "curriculum_unit" }

// Skill is immutable reference data; learner activity never mutates it.
type Skill struct {
	ID             string  `gorm:"column:id;primaryKey" json:"id" yaml:"id"`
	UnitID         string  `gorm:"column:unit_id;not null;index" json:"unit_id" yaml:"unit_id"`
	Name           string  `gorm:"column:name;not null" json:"name" yaml:"name"`
	ExamWeight     float64 `gorm:"column:exam_weight;not null;default:0" json:"exam_weight" yaml:"exam_weight"`
	MinRepetitions int     `gorm:"column:min_repetitions;not null;default:0" json:"min_repetitions" yaml:"min_repetitions"`
	MinTimedProofs int     `gorm:"column:min_timed_proofs;not null;default:2" json:"min_timed_proofs" yaml:"min_timed_proofs"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (Skill) TableName() string { return "skill" }
