package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GET /api/sessions
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.ListForRequestUser(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondErr(c, "list_sessions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "invalid_session_id")
	if !ok {
		return
	}
	session, err := h.sessions.GetForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondErr(c, "session_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/start
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, "start_session_failed", h.sessions.StartForRequestUser)
}

// POST /api/sessions/:id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	h.transition(c, "complete_session_failed", h.sessions.CompleteForRequestUser)
}

// POST /api/sessions/:id/abandon
func (h *SessionHandler) Abandon(c *gin.Context) {
	h.transition(c, "abandon_session_failed", h.sessions.AbandonForRequestUser)
}

func (h *SessionHandler) transition(c *gin.Context, code string, fn func(dbctx.Context, uuid.UUID) (*types.StudySession, error)) {
	id, ok := parseID(c, "invalid_session_id")
	if !ok {
		return
	}
	session, err := fn(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondErr(c, code, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/assets/:id
func (h *SessionHandler) GetAsset(c *gin.Context) {
	id, ok := parseID(c, "invalid_asset_id")
	if !ok {
		return
	}
	asset, err := h.sessions.GetAssetForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondErr(c, "asset_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"asset": asset})
}

func parseID(c *gin.Context, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}
