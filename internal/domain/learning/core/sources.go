package core

import "time"

const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"

	AuthorityStatute = "statute"
	AuthorityCase    = "case"

	LinkTargetSkill = "skill"
	LinkTargetUnit  = "unit"
)

// OutlineTopic is a curriculum outline entry mapped to one skill.
type OutlineTopic struct {
	ID         string  `gorm:"column:id;primaryKey" json:"id" yaml:"id"`
	SkillID    string  `gorm:"column:skill_id;not null;index" json:"skill_id" yaml:"skill_id"`
	UnitID     string  `gorm:"column:unit_id;index" json:"unit_id" yaml:"unit_id"`
	Title      string  `gorm:"column:title;not null" json:"title" yaml:"title"`
	Body       string  `gorm:"column:body" json:"body" yaml:"body"`
	Confidence float64 `gorm:"column:confidence;not null;default:1" json:"confidence" yaml:"confidence"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (OutlineTopic) TableName() string { return "outline_topic" }

// TranscriptExcerpt is a lecture chunk. Only approved excerpts may ground content.
type TranscriptExcerpt struct {
	ID               string  `gorm:"column:id;primaryKey" json:"id" yaml:"id"`
	SkillID          string  `gorm:"column:skill_id;not null;index:idx_transcript_skill_status,priority:1" json:"skill_id" yaml:"skill_id"`
	LectureID        string  `gorm:"column:lecture_id;index" json:"lecture_id" yaml:"lecture_id"`
	Text             string  `gorm:"column:text;not null" json:"text" yaml:"text"`
	ModerationStatus string  `gorm:"column:moderation_status;not null;default:pending;index:idx_transcript_skill_status,priority:2" json:"moderation_status" yaml:"moderation_status"`
	Confidence       float64 `gorm:"column:confidence;not null;default:0.7" json:"confidence" yaml:"confidence"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (TranscriptExcerpt) TableName() string { return "transcript_excerpt" }

// Authority is a vetted statute or case.
type Authority struct {
	ID         string  `gorm:"column:id;primaryKey" json:"id" yaml:"id"`
	Kind       string  `gorm:"column:kind;not null" json:"kind" yaml:"kind"`
	Citation   string  `gorm:"column:citation;not null" json:"citation" yaml:"citation"`
	Title      string  `gorm:"column:title" json:"title" yaml:"title"`
	Summary    string  `gorm:"column:summary" json:"summary" yaml:"summary"`
	Verified   bool    `gorm:"column:verified;not null;default:false;index" json:"verified" yaml:"verified"`
	Confidence float64 `gorm:"column:confidence;not null;default:0.9" json:"confidence" yaml:"confidence"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (Authority) TableName() string { return "authority" }

// AuthorityLink says an authority references a skill or a whole unit.
type AuthorityLink struct {
	AuthorityID string `gorm:"column:authority_id;primaryKey" json:"authority_id" yaml:"authority_id"`
	TargetType  string `gorm:"column:target_type;primaryKey;index:idx_authority_link_target,priority:1" json:"target_type" yaml:"target_type"`
	TargetID    string `gorm:"column:target_id;primaryKey;index:idx_authority_link_target,priority:2" json:"target_id" yaml:"target_id"`
}

func (AuthorityLink) TableName() string { return "authority_link" }
