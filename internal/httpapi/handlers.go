package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-platform/internal/audit"
	"casino-platform/internal/auth"
	"casino-platform/internal/reporting"
	"casino-platform/internal/retention"
	"casino-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Batcher   *audit.Batcher
	Audit     *audit.Service
	Retention *retention.Service
	Reports   *reporting.Service
	Errors    *audit.ErrorState
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as 503 since the stores are the usual culprit.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidEvent),
		errors.Is(err, retention.ErrInvalidPolicy),
		errors.Is(err, reporting.ErrInvalidRequest):
		abortJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, retention.ErrNotFound), errors.Is(err, reporting.ErrNotFound):
		abortJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, reporting.ErrInvalidTransition), errors.Is(err, retention.ErrCleanupRunning):
		abortJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, audit.ErrQueueFull):
		abortJSON(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, retention.ErrNoArchiver):
		abortJSON(c, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.FromGin(c).Error("request failed", slog.Any("err", err))
		_ = c.Error(err)
		abortJSON(c, http.StatusServiceUnavailable, "storage unavailable")
	}
}

// GetLastError returns the admin error banner, or 204 when nothing failed.
func (h Handlers) GetLastError(c *gin.Context) {
	rec, ok := h.Errors.Last()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) ClearLastError(c *gin.Context) {
	h.Errors.Clear()
	c.Status(http.StatusNoContent)
}
