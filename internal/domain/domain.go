package domain

import (
	"github.com/yungbote/studyforge-backend/internal/domain/jobs"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/core"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/joins"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/personalization"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
)

type BackgroundJob = jobs.BackgroundJob

type CurriculumUnit = core.CurriculumUnit
type Skill = core.Skill
type OutlineTopic = core.OutlineTopic
type TranscriptExcerpt = core.TranscriptExcerpt
type Authority = core.Authority
type AuthorityLink = core.AuthorityLink

type AttemptSkill = joins.AttemptSkill

type MasteryState = personalization.MasteryState
type Attempt = personalization.Attempt
type GateVerificationRecord = personalization.GateVerificationRecord

type StudySession = products.StudySession
type StudyAsset = products.StudyAsset
type ActivitySlot = products.ActivitySlot
type GroundingRef = products.GroundingRef
type GroundingRefs = products.GroundingRefs
type AssetStats = products.AssetStats
type MissingAuthorityLogEntry = products.MissingAuthorityLogEntry

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&CurriculumUnit{},
		&Skill{},
		&OutlineTopic{},
		&TranscriptExcerpt{},
		&Authority{},
		&AuthorityLink{},
		&MasteryState{},
		&Attempt{},
		&AttemptSkill{},
		&GateVerificationRecord{},
		&StudySession{},
		&StudyAsset{},
		&MissingAuthorityLogEntry{},
		&BackgroundJob{},
	}
}
