package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyforge-backend/internal/http/response"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GET /api/reports/readiness
func (h *ReportHandler) Readiness(c *gin.Context) {
	rep, err := h.reports.ReadinessForRequestUser(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondErr(c, "readiness_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"report": rep})
}

type requestReportRequest struct {
	Export bool `json:"export"`
}

// POST /api/reports
func (h *ReportHandler) Request(c *gin.Context) {
	var req requestReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	job, err := h.reports.RequestForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, req.Export)
	if err != nil {
		response.RespondErr(c, "request_report_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}
