package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/personalization"
	"github.com/yungbote/studyforge-backend/internal/learning/gate"
	"github.com/yungbote/studyforge-backend/internal/learning/grading"
	"github.com/yungbote/studyforge-backend/internal/learning/mastery"
	"github.com/yungbote/studyforge-backend/internal/learning/spacedrep"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

const (
	maxVersionRetries  = 5
	responseExcerptLen = 500
)

var ErrMasteryConflict = errors.New("mastery state changed concurrently")

type SkillCoverage struct {
	SkillID string  `json:"skill_id"`
	Weight  float64 `json:"weight"`
}

type AttemptInput struct {
	ItemID         string
	Prompt         string
	Response       string
	Format         string
	Mode           string
	ActivityType   string
	SessionID      *uuid.UUID
	ElapsedSeconds int
	Keywords       []string
	Skills         []SkillCoverage
}

// SkillResult is the per-skill effect of one attempt.
type SkillResult struct {
	SkillID        string        `json:"skill_id"`
	PBefore        float64       `json:"p_before"`
	PAfter         float64       `json:"p_after"`
	Delta          float64       `json:"delta"`
	Stability      float64       `json:"stability"`
	IntervalDays   int           `json:"interval_days"`
	NextReviewDate time.Time     `json:"next_review_date"`
	Gate           gate.Decision `json:"gate"`
	NewlyVerified  bool          `json:"newly_verified"`
}

type AttemptResult struct {
	Attempt *types.Attempt `json:"attempt"`
	Grade   grading.Grade  `json:"grade"`
	Skills  []SkillResult  `json:"skills"`
}

type AttemptService interface {
	// Submit grades the response, then records the attempt and updates mastery,
	// schedule and gate for every covered skill in one transaction.
	Submit(dbc dbctx.Context, in AttemptInput) (*AttemptResult, error)
}

type attemptService struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Repos
	grader  grading.Grader
	learner LearnerNotifier
	metrics *observability.Metrics
	now     func() time.Time
}

func NewAttemptService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, grader grading.Grader, learner LearnerNotifier, metrics *observability.Metrics) AttemptService {
	if grader == nil {
		grader = grading.HeuristicGrader{Config: grading.DefaultHeuristicConfig()}
	}
	return &attemptService{
		db:      db,
		log:     baseLog.With("service", "AttemptService"),
		repos:   r,
		grader:  grader,
		learner: learner,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *attemptService) Submit(dbc dbctx.Context, in AttemptInput) (*AttemptResult, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	coverage, err := normalizeAttemptInput(&in)
	if err != nil {
		return nil, err
	}
	ctx := dbc.Context()

	skillIDs := make([]string, 0, len(coverage))
	for _, c := range coverage {
		skillIDs = append(skillIDs, c.SkillID)
	}
	skills, err := s.repos.Curriculum.GetSkillsByIDs(dbctx.Context{Ctx: ctx}, skillIDs)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	if len(skills) != len(skillIDs) {
		known := map[string]bool{}
		for _, sk := range skills {
			known[sk.ID] = true
		}
		var unknown []string
		for _, id := range skillIDs {
			if !known[id] {
				unknown = append(unknown, id)
			}
		}
		return nil, fmt.Errorf("%w: unknown skills %v", apierr.ErrInvalidArgument, unknown)
	}

	// Grading may call a model, so it runs before the transaction opens.
	grade, err := s.grader.Grade(ctx, grading.Submission{
		ItemID:   in.ItemID,
		Prompt:   in.Prompt,
		Response: in.Response,
		Format:   in.Format,
		Keywords: in.Keywords,
	})
	if err != nil {
		return nil, fmt.Errorf("grade: %w", err)
	}

	now := s.now()
	rubric, _ := json.Marshal(grade.Rubric)
	attempt := &types.Attempt{
		UserID:          userID,
		ItemID:          in.ItemID,
		Score:           grade.Score,
		Format:          in.Format,
		Mode:            in.Mode,
		ElapsedSeconds:  in.ElapsedSeconds,
		ErrorTags:       datatypes.JSONSlice[string](append([]string{}, grade.ErrorTags...)),
		RubricBreakdown: datatypes.JSON(rubric),
		GraderName:      grade.Grader,
		ActivityType:    in.ActivityType,
		ResponseExcerpt: excerpt(in.Response, responseExcerptLen),
		SessionID:       in.SessionID,
		CreatedAt:       now,
	}
	links := make([]*types.AttemptSkill, 0, len(coverage))
	for _, c := range coverage {
		links = append(links, &types.AttemptSkill{SkillID: c.SkillID, Weight: c.Weight})
	}

	result := &AttemptResult{Attempt: attempt, Grade: grade}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.repos.Attempts.Create(inner, attempt, links); err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		result.Skills = result.Skills[:0]
		for _, c := range coverage {
			sr, err := s.applySkill(inner, userID, c, attempt, grade, now)
			if err != nil {
				return err
			}
			result.Skills = append(result.Skills, sr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncGrading(grade.Grader)
	}
	for _, sr := range result.Skills {
		if s.metrics != nil && !sr.Gate.AlreadyVerified {
			codes := make([]string, 0, len(sr.Gate.Reasons))
			for _, r := range sr.Gate.Reasons {
				codes = append(codes, r.Code)
			}
			s.metrics.ObserveGate(sr.Gate.Verified, codes)
		}
		if sr.NewlyVerified {
			s.log.Info("skill verified", "user_id", userID, "skill_id", sr.SkillID, "pass_count", sr.Gate.PassCount)
			if s.learner != nil {
				s.learner.GateVerified(userID, sr.SkillID, sr.Gate)
			}
		}
	}
	return result, nil
}

// applySkill is the read-modify-write for one skill. A version conflict re-reads
// the row and recomputes from the fresh state.
func (s *attemptService) applySkill(inner dbctx.Context, userID uuid.UUID, c SkillCoverage, attempt *types.Attempt, grade grading.Grade, now time.Time) (SkillResult, error) {
	history, err := s.repos.Attempts.ListForUserSkill(inner, userID, c.SkillID)
	if err != nil {
		return SkillResult{}, fmt.Errorf("load history: %w", err)
	}
	snapshot := make([]gate.Attempt, 0, len(history))
	for _, a := range history {
		snapshot = append(snapshot, gate.Attempt{
			ID:         a.ID.String(),
			Score:      a.Score,
			HighStakes: personalization.HighStakes(a.Mode),
			ErrorTags:  []string(a.ErrorTags),
			At:         a.CreatedAt,
		})
	}

	for try := 0; try < maxVersionRetries; try++ {
		state, err := s.loadOrCreateState(inner, userID, c.SkillID)
		if err != nil {
			return SkillResult{}, err
		}
		before := state.PMastery
		upd := mastery.Update(state.PMastery, state.Stability, mastery.Outcome{
			Score:          grade.Score,
			Format:         attempt.Format,
			Mode:           attempt.Mode,
			CoverageWeight: c.Weight,
		})
		sched := spacedrep.Next(spacedrep.State{Easiness: state.Easiness, IntervalDays: state.IntervalDays}, grade.Score, now)

		state.PMastery = upd.P
		state.Stability = upd.Stability
		state.Easiness = sched.Easiness
		state.IntervalDays = sched.IntervalDays
		state.AttemptCount++
		if upd.Passed {
			state.CorrectCount++
		}
		practiced := now
		next := sched.NextReviewDate
		state.LastPracticedAt = &practiced
		state.NextReviewDate = &next

		decision := gate.Evaluate(gate.Snapshot{
			PMastery:        upd.P,
			AlreadyVerified: state.IsVerified,
			History:         snapshot,
			Now:             now,
		})
		newly := decision.Verified && !decision.AlreadyVerified
		if newly {
			verifiedAt := now
			state.IsVerified = true
			state.VerifiedAt = &verifiedAt
		}

		ok, err := s.repos.Mastery.UpdateVersioned(inner, state)
		if err != nil {
			return SkillResult{}, fmt.Errorf("update mastery: %w", err)
		}
		if !ok {
			s.log.Debug("mastery version conflict; retrying", "user_id", userID, "skill_id", c.SkillID, "try", try+1)
			continue
		}
		if newly {
			if _, err := s.repos.GateRecords.CreateIfAbsent(inner, &types.GateVerificationRecord{
				UserID:             userID,
				SkillID:            c.SkillID,
				PMastery:           decision.PMastery,
				PassCount:          decision.PassCount,
				HoursBetweenPasses: decision.HoursBetweenPasses,
				AttemptIDs:         datatypes.JSONSlice[string](decision.CountedAttemptIDs),
				VerifiedAt:         now,
			}); err != nil {
				return SkillResult{}, fmt.Errorf("record gate: %w", err)
			}
		}
		return SkillResult{
			SkillID:        c.SkillID,
			PBefore:        before,
			PAfter:         upd.P,
			Delta:          upd.Delta,
			Stability:      upd.Stability,
			IntervalDays:   sched.IntervalDays,
			NextReviewDate: sched.NextReviewDate,
			Gate:           decision,
			NewlyVerified:  newly,
		}, nil
	}
	return SkillResult{}, fmt.Errorf("%w: skill %s", ErrMasteryConflict, c.SkillID)
}

// loadOrCreateState creates the row under a savepoint so a concurrent insert of
// the same (user, skill) falls back to reading the winner.
func (s *attemptService) loadOrCreateState(inner dbctx.Context, userID uuid.UUID, skillID string) (*types.MasteryState, error) {
	state, err := s.repos.Mastery.GetByUserAndSkill(inner, userID, skillID)
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	if state != nil {
		return state, nil
	}
	row := &types.MasteryState{
		UserID:    userID,
		SkillID:   skillID,
		PMastery:  mastery.InitialP,
		Stability: mastery.InitialStability,
		Easiness:  spacedrep.DefaultEasiness,
	}
	err = inner.Tx.Transaction(func(sp *gorm.DB) error {
		return s.repos.Mastery.Create(dbctx.Context{Ctx: inner.Ctx, Tx: sp}, row)
	})
	if err == nil {
		return row, nil
	}
	if !apierr.IsUniqueViolation(err) {
		return nil, fmt.Errorf("create mastery: %w", err)
	}
	state, err = s.repos.Mastery.GetByUserAndSkill(inner, userID, skillID)
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: skill %s", ErrMasteryConflict, skillID)
	}
	return state, nil
}

var (
	validFormats = map[string]bool{
		personalization.FormatWritten:        true,
		personalization.FormatOral:           true,
		personalization.FormatDrafting:       true,
		personalization.FormatMultipleChoice: true,
	}
	validModes = map[string]bool{
		personalization.ModePractice:       true,
		personalization.ModeTimed:          true,
		personalization.ModeExamSimulation: true,
	}
)

// normalizeAttemptInput validates the request and merges duplicate skills, keeping the higher weight.
func normalizeAttemptInput(in *AttemptInput) ([]SkillCoverage, error) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.Format = strings.ToLower(strings.TrimSpace(in.Format))
	in.Mode = strings.ToLower(strings.TrimSpace(in.Mode))
	in.ActivityType = strings.ToUpper(strings.TrimSpace(in.ActivityType))
	if in.ItemID == "" {
		return nil, fmt.Errorf("%w: missing item_id", apierr.ErrInvalidArgument)
	}
	if !validFormats[in.Format] {
		return nil, fmt.Errorf("%w: unknown format %q", apierr.ErrInvalidArgument, in.Format)
	}
	if !validModes[in.Mode] {
		return nil, fmt.Errorf("%w: unknown mode %q", apierr.ErrInvalidArgument, in.Mode)
	}
	if in.ElapsedSeconds < 0 {
		in.ElapsedSeconds = 0
	}
	var out []SkillCoverage
	index := map[string]int{}
	for _, c := range in.Skills {
		id := strings.TrimSpace(c.SkillID)
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			if c.Weight > out[i].Weight {
				out[i].Weight = c.Weight
			}
			continue
		}
		index[id] = len(out)
		out = append(out, SkillCoverage{SkillID: id, Weight: c.Weight})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one skill is required", apierr.ErrInvalidArgument)
	}
	return out, nil
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
