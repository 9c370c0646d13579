package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/personalization"
	"github.com/yungbote/studyforge-backend/internal/learning/gate"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// MasteryView is one skill's state as shown to the learner.
type MasteryView struct {
	SkillID   string              `json:"skill_id"`
	SkillName string              `json:"skill_name"`
	UnitID    string              `json:"unit_id"`
	Due       bool                `json:"due"`
	State     *types.MasteryState `json:"state"`
}

type MasteryService interface {
	ListForRequestUser(dbc dbctx.Context) ([]MasteryView, error)
}

type masteryService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
	now   func() time.Time
}

func NewMasteryService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos) MasteryService {
	return &masteryService{
		db:    db,
		log:   baseLog.With("service", "MasteryService"),
		repos: r,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *masteryService) ListForRequestUser(dbc dbctx.Context) ([]MasteryView, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	inner := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	states, err := s.repos.Mastery.ListByUser(inner, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.SkillID)
	}
	skills, err := s.repos.Curriculum.GetSkillsByIDs(inner, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Skill, len(skills))
	for _, sk := range skills {
		byID[sk.ID] = sk
	}
	now := s.now()
	out := make([]MasteryView, 0, len(states))
	for _, st := range states {
		v := MasteryView{SkillID: st.SkillID, Due: st.Due(now), State: st}
		if sk := byID[st.SkillID]; sk != nil {
			v.SkillName = sk.Name
			v.UnitID = sk.UnitID
		}
		out = append(out, v)
	}
	return out, nil
}

// GateExplanation is the current gate outcome for one skill, plus the
// verification record once one exists.
type GateExplanation struct {
	SkillID  string                        `json:"skill_id"`
	Decision gate.Decision                 `json:"decision"`
	Record   *types.GateVerificationRecord `json:"record,omitempty"`
}

type GateService interface {
	ExplainForRequestUser(dbc dbctx.Context, skillID string) (*GateExplanation, error)
}

type gateService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
	now   func() time.Time
}

func NewGateService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos) GateService {
	return &gateService{
		db:    db,
		log:   baseLog.With("service", "GateService"),
		repos: r,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *gateService) ExplainForRequestUser(dbc dbctx.Context, skillID string) (*GateExplanation, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	skillID = strings.TrimSpace(skillID)
	if skillID == "" {
		return nil, fmt.Errorf("%w: missing skill id", apierr.ErrInvalidArgument)
	}
	inner := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	skill, err := s.repos.Curriculum.GetSkillByID(inner, skillID)
	if err != nil {
		return nil, err
	}
	if skill == nil {
		return nil, fmt.Errorf("skill %w", apierr.ErrNotFound)
	}
	state, err := s.repos.Mastery.GetByUserAndSkill(inner, userID, skillID)
	if err != nil {
		return nil, err
	}
	history, err := s.repos.Attempts.ListForUserSkill(inner, userID, skillID)
	if err != nil {
		return nil, err
	}

	snap := gate.Snapshot{Now: s.now()}
	if state != nil {
		snap.PMastery = state.PMastery
		snap.AlreadyVerified = state.IsVerified
	}
	for _, a := range history {
		snap.History = append(snap.History, gate.Attempt{
			ID:         a.ID.String(),
			Score:      a.Score,
			HighStakes: personalization.HighStakes(a.Mode),
			ErrorTags:  []string(a.ErrorTags),
			At:         a.CreatedAt,
		})
	}
	out := &GateExplanation{SkillID: skillID, Decision: gate.Evaluate(snap)}
	if out.Decision.Verified {
		rec, err := s.repos.GateRecords.GetByUserAndSkill(inner, userID, skillID)
		if err != nil {
			return nil, err
		}
		out.Record = rec
	}
	return out, nil
}
