package personalization

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FormatWritten        = "written"
	FormatOral           = "oral"
	FormatDrafting       = "drafting"
	FormatMultipleChoice = "multiple_choice"

	ModePractice       = "practice"
	ModeTimed          = "timed"
	ModeExamSimulation = "exam_simulation"
)

// HighStakes reports whether mode counts toward gate verification.
func HighStakes(mode string) bool {
	return mode == ModeTimed || mode == ModeExamSimulation
}

// Attempt is an append-only record of one graded response.
type Attempt struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_attempt_user_time,priority:1" json:"user_id"`
	ItemID string    `gorm:"column:item_id;not null;index" json:"item_id"`

	Score          float64 `gorm:"column:score;not null" json:"score"`
	Format         string  `gorm:"column:format;not null" json:"format"`
	Mode           string  `gorm:"column:mode;not null" json:"mode"`
	ElapsedSeconds int     `gorm:"column:elapsed_seconds;not null;default:0" json:"elapsed_seconds"`

	ErrorTags       datatypes.JSONSlice[string] `gorm:"column:error_tags" json:"error_tags"`
	RubricBreakdown datatypes.JSON              `gorm:"column:rubric_breakdown" json:"rubric_breakdown,omitempty"`
	GraderName      string                      `gorm:"column:grader_name" json:"grader_name"`
	ActivityType    string                      `gorm:"column:activity_type;index" json:"activity_type,omitempty"`
	ResponseExcerpt string                      `gorm:"column:response_excerpt" json:"response_excerpt,omitempty"`
	SessionID       *uuid.UUID                  `gorm:"type:uuid;column:session_id;index" json:"session_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_attempt_user_time,priority:2" json:"created_at"`
}

func (Attempt) TableName() string { return "attempt" }

func (a *Attempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
