package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type AttemptHandler struct {
	log      *logger.Logger
	attempts services.AttemptService
}

func NewAttemptHandler(log *logger.Logger, attempts services.AttemptService) *AttemptHandler {
	return &AttemptHandler{log: log.With("handler", "AttemptHandler"), attempts: attempts}
}

type skillCoverageRequest struct {
	SkillID string `json:"skill_id"`
	// Weight defaults to 1 when omitted.
	Weight *float64 `json:"weight"`
}

type submitAttemptRequest struct {
	ItemID         string                 `json:"item_id"`
	Prompt         string                 `json:"prompt"`
	Response       string                 `json:"response"`
	Format         string                 `json:"format"`
	Mode           string                 `json:"mode"`
	ActivityType   string                 `json:"activity_type"`
	SessionID      *uuid.UUID             `json:"session_id"`
	ElapsedSeconds int                    `json:"elapsed_seconds"`
	Keywords       []string               `json:"keywords"`
	Skills         []skillCoverageRequest `json:"skills"`
}

// POST /api/attempts
func (h *AttemptHandler) Submit(c *gin.Context) {
	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.ElapsedSeconds < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("elapsed_seconds must be >= 0"))
		return
	}
	skills := make([]services.SkillCoverage, 0, len(req.Skills))
	for _, s := range req.Skills {
		w := 1.0
		if s.Weight != nil {
			w = *s.Weight
		}
		skills = append(skills, services.SkillCoverage{SkillID: s.SkillID, Weight: w})
	}

	res, err := h.attempts.Submit(dbctx.Context{Ctx: c.Request.Context()}, services.AttemptInput{
		ItemID:         req.ItemID,
		Prompt:         req.Prompt,
		Response:       req.Response,
		Format:         req.Format,
		Mode:           req.Mode,
		ActivityType:   req.ActivityType,
		SessionID:      req.SessionID,
		ElapsedSeconds: req.ElapsedSeconds,
		Keywords:       req.Keywords,
		Skills:         skills,
	})
	if err != nil {
		if errors.Is(err, services.ErrMasteryConflict) {
			response.RespondError(c, http.StatusConflict, "mastery_conflict", err)
			return
		}
		response.RespondErr(c, "submit_attempt_failed", err)
		return
	}
	response.RespondOK(c, res)
}
