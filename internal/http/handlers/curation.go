package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type CurationHandler struct {
	curation services.CurationService
}

func NewCurationHandler(curation services.CurationService) *CurationHandler {
	return &CurationHandler{curation: curation}
}

// GET /api/curation/missing-authorities?skill_id=&limit=&offset=
func (h *CurationHandler) ListMissingAuthorities(c *gin.Context) {
	q := services.CurationQuery{SkillID: c.Query("skill_id")}
	var err error
	if v := c.Query("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil || q.Limit < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a non-negative integer"))
			return
		}
	}
	if v := c.Query("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil || q.Offset < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_offset", errors.New("offset must be a non-negative integer"))
			return
		}
	}
	entries, err := h.curation.ListMissingAuthorities(dbctx.Context{Ctx: c.Request.Context()}, q)
	if err != nil {
		response.RespondErr(c, "list_missing_authorities_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"entries": entries, "limit": q.Limit, "offset": q.Offset})
}
