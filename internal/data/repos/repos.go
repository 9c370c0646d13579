package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/studyforge-backend/internal/data/repos/learning"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type BackgroundJobRepo = jobs.BackgroundJobRepo

type CurriculumRepo = learning.CurriculumRepo
type GroundingSourceRepo = learning.GroundingSourceRepo
type MasteryStateRepo = learning.MasteryStateRepo
type AttemptRepo = learning.AttemptRepo
type GateVerificationRecordRepo = learning.GateVerificationRecordRepo
type StudySessionRepo = learning.StudySessionRepo
type StudyAssetRepo = learning.StudyAssetRepo
type MissingAuthorityLogRepo = learning.MissingAuthorityLogRepo

type FormatModeCount = learning.FormatModeCount

// Repos is the full set of repositories over one database handle.
type Repos struct {
	Jobs               BackgroundJobRepo
	Curriculum         CurriculumRepo
	Sources            GroundingSourceRepo
	Mastery            MasteryStateRepo
	Attempts           AttemptRepo
	GateRecords        GateVerificationRecordRepo
	Sessions           StudySessionRepo
	Assets             StudyAssetRepo
	MissingAuthorities MissingAuthorityLogRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Jobs:               jobs.NewBackgroundJobRepo(db, log),
		Curriculum:         learning.NewCurriculumRepo(db, log),
		Sources:            learning.NewGroundingSourceRepo(db, log),
		Mastery:            learning.NewMasteryStateRepo(db, log),
		Attempts:           learning.NewAttemptRepo(db, log),
		GateRecords:        learning.NewGateVerificationRecordRepo(db, log),
		Sessions:           learning.NewStudySessionRepo(db, log),
		Assets:             learning.NewStudyAssetRepo(db, log),
		MissingAuthorities: learning.NewMissingAuthorityLogRepo(db, log),
	}
}
