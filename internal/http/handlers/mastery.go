package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type MasteryHandler struct {
	mastery services.MasteryService
	gates   services.GateService
}

func NewMasteryHandler(mastery services.MasteryService, gates services.GateService) *MasteryHandler {
	return &MasteryHandler{mastery: mastery, gates: gates}
}

// GET /api/mastery
func (h *MasteryHandler) List(c *gin.Context) {
	views, err := h.mastery.ListForRequestUser(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondErr(c, "list_mastery_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"skills": views})
}

// GET /api/mastery/:skillId/gate
func (h *MasteryHandler) ExplainGate(c *gin.Context) {
	exp, err := h.gates.ExplainForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, c.Param("skillId"))
	if err != nil {
		response.RespondErr(c, "gate_explain_failed", err)
		return
	}
	response.RespondOK(c, exp)
}
