package handlers

import (
	"fmt"
	"net/http"

	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/services"
	"github.com/classforge/attempt-service/internal/session"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves teacher-facing result exports.
type ReportHandler struct {
	BaseHandler
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler: NewBaseHandler(logger),
		reports:     reports,
	}
}

// ExportResults streams an xlsx of all attempts for an evaluation.
// Teachers and admins only.
func (h *ReportHandler) ExportResults(c *gin.Context) {
	role := session.RoleFromContext(c.Request.Context())
	if role != models.RoleTeacher && role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Forbidden - insufficient permissions"})
		return
	}

	evaluationID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	data, err := h.reports.ExportEvaluationResults(c.Request.Context(), evaluationID)
	if err != nil {
		h.LogError(c, err, "Results export failed", "evaluation_id", evaluationID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to export results"})
		return
	}

	filename := fmt.Sprintf("evaluation-%d-results.xlsx", evaluationID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
