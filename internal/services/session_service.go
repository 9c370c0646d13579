package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type SessionService interface {
	// ListForRequestUser runs precompute, then returns upcoming sessions with their assets.
	ListForRequestUser(dbc dbctx.Context) ([]*types.StudySession, error)
	GetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error)
	GetAssetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudyAsset, error)

	StartForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error)
	CompleteForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error)
	AbandonForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error)

	// RefreshReadiness moves a PREPARING session to READY once every asset is READY.
	RefreshReadiness(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

type sessionService struct {
	db         *gorm.DB
	log        *logger.Logger
	repos      repos.Repos
	precompute PrecomputeService
	learner    LearnerNotifier
	now        func() time.Time
}

func NewSessionService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, precompute PrecomputeService, learner LearnerNotifier) SessionService {
	return &sessionService{
		db:         db,
		log:        baseLog.With("service", "SessionService"),
		repos:      r,
		precompute: precompute,
		learner:    learner,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) ListForRequestUser(dbc dbctx.Context) ([]*types.StudySession, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	if s.precompute != nil {
		if _, err := s.precompute.EnsureUpcoming(dbctx.Context{Ctx: dbc.Ctx}, userID); err != nil {
			return nil, fmt.Errorf("precompute: %w", err)
		}
	}
	inner := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	sessions, err := s.repos.Sessions.ListByUser(inner, userID, []string{
		products.SessionQueued, products.SessionPreparing, products.SessionReady, products.SessionInProgress,
	}, 0)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}
	ids := make([]uuid.UUID, 0, len(sessions))
	byID := make(map[uuid.UUID]*types.StudySession, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
		byID[sess.ID] = sess
	}
	assets, err := s.repos.Assets.ListBySessionIDs(inner, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		if sess := byID[a.SessionID]; sess != nil {
			sess.Assets = append(sess.Assets, a)
		}
	}
	return sessions, nil
}

func (s *sessionService) GetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	sess, err := s.repos.Sessions.GetByIDWithAssets(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, id)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, fmt.Errorf("session %w", apierr.ErrNotFound)
	}
	return sess, nil
}

func (s *sessionService) GetAssetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudyAsset, error) {
	userID, err := requestUserID(dbc)
	if err != nil {
		return nil, err
	}
	asset, err := s.repos.Assets.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, id)
	if err != nil {
		return nil, err
	}
	if asset == nil || asset.UserID != userID {
		return nil, fmt.Errorf("asset %w", apierr.ErrNotFound)
	}
	return asset, nil
}

func (s *sessionService) StartForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error) {
	return s.transition(dbc, id, products.SessionInProgress, "started_at")
}

func (s *sessionService) CompleteForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error) {
	return s.transition(dbc, id, products.SessionCompleted, "completed_at")
}

func (s *sessionService) AbandonForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.StudySession, error) {
	return s.transition(dbc, id, products.SessionAbandoned, "abandoned_at")
}

var sessionStatuses = []string{
	products.SessionQueued,
	products.SessionPreparing,
	products.SessionReady,
	products.SessionInProgress,
	products.SessionCompleted,
	products.SessionAbandoned,
}

func (s *sessionService) transition(dbc dbctx.Context, id uuid.UUID, to string, stampColumn string) (*types.StudySession, error) {
	sess, err := s.GetForRequestUser(dbc, id)
	if err != nil {
		return nil, err
	}
	var from []string
	for _, st := range sessionStatuses {
		if products.CanTransition(st, to) {
			from = append(from, st)
		}
	}
	inner := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	ok, err := s.repos.Sessions.TransitionStatus(inner, sess.ID, from, to, map[string]interface{}{stampColumn: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot move session from %s to %s", apierr.ErrConflict, sess.Status, to)
	}
	s.log.Debug("session transitioned", "session_id", sess.ID, "from", sess.Status, "to", to)
	return s.GetForRequestUser(dbc, id)
}

func (s *sessionService) RefreshReadiness(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	inner := dbctx.Context{Ctx: ctx}
	sess, err := s.repos.Sessions.GetByID(inner, sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Status != products.SessionPreparing {
		return false, nil
	}
	assets, err := s.repos.Assets.ListBySessionIDs(inner, []uuid.UUID{sessionID})
	if err != nil {
		return false, err
	}
	if len(assets) == 0 {
		return false, nil
	}
	for _, a := range assets {
		if a.Status != products.AssetReady {
			return false, nil
		}
	}
	now := s.now()
	ok, err := s.repos.Sessions.TransitionStatus(inner, sessionID, []string{products.SessionPreparing}, products.SessionReady, map[string]interface{}{"ready_at": now})
	if err != nil || !ok {
		return false, err
	}
	sess.Status = products.SessionReady
	sess.ReadyAt = &now
	s.log.Info("session ready", "session_id", sessionID, "user_id", sess.UserID)
	if s.learner != nil {
		s.learner.SessionReady(sess.UserID, sess)
	}
	return true, nil
}
