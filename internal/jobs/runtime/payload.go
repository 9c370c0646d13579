package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobTypeAssetGenerate  = "asset_generate"
	JobTypeReportGenerate = "report_generate"
	JobTypeReminderSend   = "reminder_send"
)

const (
	EntityStudyAsset = "study_asset"
	EntityUser       = "user"
)

// Payload is the closed set of job inputs. Each kind maps to one job type.
type Payload interface {
	JobType() string
	// Entity names the row the job works on, used for dedupe and failure propagation.
	Entity() (entityType string, entityID *uuid.UUID)
	isPayload()
}

type AssetGenerate struct {
	AssetID uuid.UUID `json:"asset_id"`
}

func (AssetGenerate) JobType() string { return JobTypeAssetGenerate }
func (p AssetGenerate) Entity() (string, *uuid.UUID) {
	id := p.AssetID
	return EntityStudyAsset, &id
}
func (AssetGenerate) isPayload() {}

type ReportGenerate struct {
	UserID uuid.UUID `json:"user_id"`
	// Export uploads the report to the configured bucket.
	Export bool `json:"export"`
}

func (ReportGenerate) JobType() string { return JobTypeReportGenerate }
func (p ReportGenerate) Entity() (string, *uuid.UUID) {
	id := p.UserID
	return EntityUser, &id
}
func (ReportGenerate) isPayload() {}

type ReminderSend struct {
	UserID   uuid.UUID `json:"user_id"`
	SkillIDs []string  `json:"skill_ids"`
}

func (ReminderSend) JobType() string { return JobTypeReminderSend }
func (p ReminderSend) Entity() (string, *uuid.UUID) {
	id := p.UserID
	return EntityUser, &id
}
func (ReminderSend) isPayload() {}

// Encode serializes a payload for the job row.
func Encode(p Payload) (datatypes.JSON, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Decode parses raw into the payload kind for jobType.
func Decode(jobType string, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch jobType {
	case JobTypeAssetGenerate:
		var p AssetGenerate
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", jobType, err)
		}
		if p.AssetID == uuid.Nil {
			return nil, fmt.Errorf("%s payload: missing asset_id", jobType)
		}
		return p, nil
	case JobTypeReportGenerate:
		var p ReportGenerate
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", jobType, err)
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("%s payload: missing user_id", jobType)
		}
		return p, nil
	case JobTypeReminderSend:
		var p ReminderSend
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", jobType, err)
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("%s payload: missing user_id", jobType)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown job_type=%s", jobType)
}
