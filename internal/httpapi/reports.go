package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"casino-platform/internal/audit"
	"casino-platform/internal/reporting"
)

func (h Handlers) CreateReport(c *gin.Context) {
	var req reporting.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid json")
		return
	}
	op := audit.Operation{
		EventType:   audit.EventDataExport,
		Action:      "CREATE",
		Description: "Request report " + req.ReportName,
		TargetType:  "report",
		TargetName:  req.ReportName,
		Metadata:    map[string]any{"report_type": req.ReportType},
	}
	r, err := audit.WithAuditLogging(c.Request.Context(), h.Batcher, op, func(ctx context.Context) (reporting.Report, error) {
		return h.Reports.CreateReport(ctx, req)
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) ListReports(c *gin.Context) {
	f := reporting.ListFilter{
		Status:      reporting.Status(c.Query("status")),
		ReportType:  reporting.ReportType(c.Query("report_type")),
		RequestedBy: c.Query("requested_by"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			abortJSON(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	reports, err := h.Reports.ListReports(c.Request.Context(), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h Handlers) GetReport(c *gin.Context) {
	r, err := h.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) DeleteReport(c *gin.Context) {
	id := c.Param("id")
	op := audit.Operation{
		EventType:   audit.EventAdminAction,
		Action:      "DELETE",
		Description: "Delete report " + id,
		TargetType:  "report",
		TargetID:    id,
	}
	_, err := audit.WithAuditLogging(c.Request.Context(), h.Batcher, op, func(ctx context.Context) (bool, error) {
		return h.Reports.DeleteReport(ctx, id)
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reportStatusBody struct {
	Status  string `json:"status" binding:"required"`
	FileURL string `json:"file_url"`
	Error   string `json:"error"`
}

// UpdateReportStatus is called by the job that produces report files.
func (h Handlers) UpdateReportStatus(c *gin.Context) {
	var body reportStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "status required")
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		r   reporting.Report
		err error
	)
	switch reporting.Status(body.Status) {
	case reporting.StatusGenerating:
		r, err = h.Reports.MarkGenerating(ctx, id)
	case reporting.StatusCompleted:
		r, err = h.Reports.MarkCompleted(ctx, id, body.FileURL)
	case reporting.StatusFailed:
		r, err = h.Reports.MarkFailed(ctx, id, body.Error)
	default:
		abortJSON(c, http.StatusBadRequest, "status must be generating, completed or failed")
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
