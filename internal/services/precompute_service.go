package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
	"github.com/yungbote/studyforge-backend/internal/learning/content"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type PrecomputeConfig struct {
	// Sessions is how many upcoming sessions to keep planned.
	Sessions         int
	SessionMinutes   int
	SkillsPerSession int
	GroundingMode    string
}

func DefaultPrecomputeConfig() PrecomputeConfig {
	return PrecomputeConfig{Sessions: 3, SessionMinutes: 45, SkillsPerSession: 3, GroundingMode: products.GroundingSoft}
}

type PrecomputeService interface {
	// EnsureUpcoming tops the user's upcoming sessions up to the configured count.
	// It only creates placeholders and enqueues asset jobs; generation happens in the worker.
	EnsureUpcoming(dbc dbctx.Context, userID uuid.UUID) ([]*types.StudySession, error)
}

type precomputeService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
	jobs  JobService
	cfg   PrecomputeConfig
	now   func() time.Time
}

func NewPrecomputeService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, jobs JobService, cfg PrecomputeConfig) PrecomputeService {
	def := DefaultPrecomputeConfig()
	if cfg.Sessions <= 0 {
		cfg.Sessions = def.Sessions
	}
	if cfg.SessionMinutes <= 0 {
		cfg.SessionMinutes = def.SessionMinutes
	}
	if cfg.SkillsPerSession <= 0 {
		cfg.SkillsPerSession = def.SkillsPerSession
	}
	if cfg.GroundingMode != products.GroundingStrict {
		cfg.GroundingMode = products.GroundingSoft
	}
	return &precomputeService{
		db:    db,
		log:   baseLog.With("service", "PrecomputeService"),
		repos: r,
		jobs:  jobs,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *precomputeService) EnsureUpcoming(dbc dbctx.Context, userID uuid.UUID) ([]*types.StudySession, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", apierr.ErrInvalidArgument)
	}
	ctx := dbc.Context()
	inner := dbctx.Context{Ctx: ctx}

	upcoming, err := s.repos.Sessions.ListUpcoming(inner, userID)
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	need := s.cfg.Sessions - len(upcoming)
	if need <= 0 {
		return upcoming, nil
	}

	candidates, err := s.rankSkills(inner, userID, upcoming)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.log.Debug("no skills to plan", "user_id", userID)
		return upcoming, nil
	}

	hasReady := false
	for _, u := range upcoming {
		if u.Status == products.SessionReady {
			hasReady = true
		}
	}
	for i := 0; i < need; i++ {
		targets := pickTargets(candidates, i, s.cfg.SkillsPerSession)
		priority := PriorityLaterSession + len(upcoming)
		if !hasReady && len(upcoming) == 0 {
			priority = PriorityNextSession
		}
		sess, err := s.createSession(inner, userID, targets, priority)
		if errors.Is(err, errSequenceTaken) {
			s.log.Debug("concurrent precompute; re-reading", "user_id", userID)
			return s.repos.Sessions.ListUpcoming(inner, userID)
		}
		if err != nil {
			return nil, err
		}
		upcoming = append(upcoming, sess)
	}
	return upcoming, nil
}

var errSequenceTaken = errors.New("session sequence taken")

func (s *precomputeService) createSession(inner dbctx.Context, userID uuid.UUID, targets []content.SkillTarget, priority int) (*types.StudySession, error) {
	bp := content.BuildBlueprint(targets, s.cfg.SessionMinutes)
	skillIDs := make([]string, 0, len(targets))
	for _, t := range targets {
		skillIDs = append(skillIDs, t.SkillID)
	}

	var sess *types.StudySession
	err := s.db.WithContext(inner.Context()).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: inner.Ctx, Tx: tx}
		seq, err := s.repos.Sessions.MaxSequence(txc, userID)
		if err != nil {
			return err
		}
		sess = &types.StudySession{
			UserID:          userID,
			Sequence:        seq + 1,
			Status:          products.SessionQueued,
			DurationMinutes: bp.Minutes,
			TargetSkillIDs:  datatypes.JSONSlice[string](skillIDs),
			ActivityMix:     datatypes.NewJSONType(bp.Slots),
			BlockedActivity: datatypes.JSONSlice[string](bp.Blocked),
		}
		if err := s.repos.Sessions.Create(txc, sess); err != nil {
			if apierr.IsUniqueViolation(err) {
				return errSequenceTaken
			}
			return fmt.Errorf("create session: %w", err)
		}

		assets := make([]*types.StudyAsset, 0, len(products.SessionAssetKinds))
		for _, kind := range products.SessionAssetKinds {
			assets = append(assets, &types.StudyAsset{
				SessionID:     sess.ID,
				UserID:        userID,
				Kind:          kind,
				Status:        products.AssetGenerating,
				GroundingMode: s.cfg.GroundingMode,
			})
		}
		if _, err := s.repos.Assets.Create(txc, assets); err != nil {
			return fmt.Errorf("create assets: %w", err)
		}
		for _, a := range assets {
			job, _, err := s.jobs.Enqueue(txc, userID, runtime.AssetGenerate{AssetID: a.ID}, EnqueueOptions{Priority: priority, Dedupe: true})
			if err != nil {
				return fmt.Errorf("enqueue asset job: %w", err)
			}
			jobID := job.ID
			a.JobID = &jobID
			if err := s.repos.Assets.UpdateFields(txc, a.ID, map[string]interface{}{"job_id": jobID}); err != nil {
				return err
			}
		}
		sess.Assets = assets

		ok, err := s.repos.Sessions.TransitionStatus(txc, sess.ID, []string{products.SessionQueued}, products.SessionPreparing, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: session %s left QUEUED", apierr.ErrConflict, sess.ID)
		}
		sess.Status = products.SessionPreparing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("session planned", "user_id", userID, "session_id", sess.ID, "sequence", sess.Sequence, "skills", skillIDs)
	return sess, nil
}

// rankSkills orders candidate skills: due reviews first (earliest due first), then
// the rest weakest first. Skills already targeted by upcoming sessions go last.
func (s *precomputeService) rankSkills(inner dbctx.Context, userID uuid.UUID, upcoming []*types.StudySession) ([]content.SkillTarget, error) {
	skills, err := s.repos.Curriculum.ListSkills(inner)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	states, err := s.repos.Mastery.ListByUser(inner, userID)
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	byID := make(map[string]*types.MasteryState, len(states))
	for _, st := range states {
		byID[st.SkillID] = st
	}
	planned := map[string]bool{}
	for _, u := range upcoming {
		for _, id := range u.TargetSkillIDs {
			planned[id] = true
		}
	}

	now := s.now()
	type ranked struct {
		target  content.SkillTarget
		due     bool
		dueAt   time.Time
		planned bool
	}
	rows := make([]ranked, 0, len(skills))
	for _, sk := range skills {
		t := content.SkillTarget{SkillID: sk.ID, ExamWeight: sk.ExamWeight}
		r := ranked{planned: planned[sk.ID]}
		if st := byID[sk.ID]; st != nil {
			t.PMastery = st.PMastery
			if st.Due(now) {
				r.due = true
				r.dueAt = *st.NextReviewDate
			}
		}
		best, err := s.repos.Attempts.BestScoreByActivity(inner, userID, sk.ID, []string{content.GateActivityCheckpoint, content.GateActivityQuiz})
		if err != nil {
			return nil, fmt.Errorf("best scores: %w", err)
		}
		t.BestScores = best
		r.target = t
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.planned != b.planned {
			return !a.planned
		}
		if a.due != b.due {
			return a.due
		}
		if a.due && !a.dueAt.Equal(b.dueAt) {
			return a.dueAt.Before(b.dueAt)
		}
		wa, wb := a.target.Weakness(), b.target.Weakness()
		if wa != wb {
			return wa > wb
		}
		return a.target.SkillID < b.target.SkillID
	})
	out := make([]content.SkillTarget, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.target)
	}
	return out, nil
}

// pickTargets takes the i-th window of k skills, wrapping around the ranking.
func pickTargets(ranked []content.SkillTarget, i, k int) []content.SkillTarget {
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]content.SkillTarget, 0, k)
	start := (i * k) % len(ranked)
	for j := 0; j < k; j++ {
		out = append(out, ranked[(start+j)%len(ranked)])
	}
	return out
}
