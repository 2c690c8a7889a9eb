package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"casino-platform/internal/audit"
	"casino-platform/internal/auth"
	"casino-platform/internal/rbac"
	"casino-platform/pkg/logger"
)

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Email  string `json:"email"`
	Role   string `json:"role" binding:"required"`
	Method string `json:"method"`
}

var knownRoles = map[string]struct{}{
	rbac.RolePlayer: {}, rbac.RoleSupport: {}, rbac.RoleComplianceOfficer: {},
	rbac.RoleAdmin: {}, rbac.RoleSuperAdmin: {},
}

// IssueToken issues a JWT token pair and records the login.
//
// NOTE: credentials are checked by the identity provider in front of this
// service; this endpoint trusts its caller.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		abortJSON(c, http.StatusInternalServerError, "auth not configured")
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "user_id and role required")
		return
	}
	if _, ok := knownRoles[req.Role]; !ok {
		abortJSON(c, http.StatusBadRequest, "unknown role")
		return
	}

	p := auth.Principal{UserID: req.UserID, Email: strings.TrimSpace(req.Email), Role: req.Role}
	pair, err := h.Auth.IssuePair(time.Now(), p)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, "token issuance failed")
		return
	}

	method := req.Method
	if method == "" {
		method = "password"
	}
	h.enqueue(c, auth.WithPrincipal(c.Request.Context(), p), audit.LoginEvent(method))

	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Logout(c *gin.Context) {
	h.enqueue(c, c.Request.Context(), audit.LogoutEvent())
	c.Status(http.StatusNoContent)
}

// enqueue defers an audit write; a full queue is logged, never surfaced.
func (h Handlers) enqueue(c *gin.Context, ctx context.Context, e audit.Event) {
	if h.Batcher == nil {
		return
	}
	if err := h.Batcher.EnqueueEvent(ctx, e); err != nil {
		logger.FromGin(c).Warn("audit event dropped", slog.String("event_type", string(e.EventType)), slog.Any("err", err))
	}
}
