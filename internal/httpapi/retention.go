package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-platform/internal/audit"
	"casino-platform/internal/retention"
)

func (h Handlers) ListPolicies(c *gin.Context) {
	policies, err := h.Retention.ListPolicies(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies})
}

type policyBody struct {
	RetentionDays       int  `json:"retention_days"`
	AutoDelete          bool `json:"auto_delete"`
	ArchiveBeforeDelete bool `json:"archive_before_delete"`
}

// PutPolicy creates or replaces the policy named by the :event_type path segment.
func (h Handlers) PutPolicy(c *gin.Context) {
	var body policyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid json")
		return
	}
	in := retention.PolicyInput{
		EventType:           c.Param("event_type"),
		RetentionDays:       body.RetentionDays,
		AutoDelete:          body.AutoDelete,
		ArchiveBeforeDelete: body.ArchiveBeforeDelete,
	}

	op := audit.Operation{
		EventType:   audit.EventAdminAction,
		Action:      "UPDATE",
		Description: "Update retention policy " + in.EventType,
		TargetType:  "retention_policy",
		TargetID:    in.EventType,
		Metadata: map[string]any{
			"retention_days":        in.RetentionDays,
			"auto_delete":           in.AutoDelete,
			"archive_before_delete": in.ArchiveBeforeDelete,
		},
	}
	_, err := audit.WithAuditLogging(c.Request.Context(), h.Batcher, op, func(ctx context.Context) (bool, error) {
		return h.Retention.UpdatePolicy(ctx, in)
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	p, err := h.Retention.GetPolicy(c.Request.Context(), audit.EventType(in.EventType))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type enabledBody struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h Handlers) SetPolicyEnabled(c *gin.Context) {
	var body enabledBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "enabled required")
		return
	}
	eventType := c.Param("event_type")
	op := audit.Operation{
		EventType:   audit.EventAdminAction,
		Action:      "UPDATE",
		Description: "Toggle retention policy " + eventType,
		TargetType:  "retention_policy",
		TargetID:    eventType,
		Metadata:    map[string]any{"enabled": *body.Enabled},
	}
	_, err := audit.WithAuditLogging(c.Request.Context(), h.Batcher, op, func(ctx context.Context) (bool, error) {
		return h.Retention.SetPolicyEnabled(ctx, audit.EventType(eventType), *body.Enabled)
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_type": eventType, "is_enabled": *body.Enabled})
}

// RunCleanup triggers the global expiry sweep.
func (h Handlers) RunCleanup(c *gin.Context) {
	op := audit.Operation{
		EventType:   audit.EventAdminAction,
		Action:      "DELETE",
		Description: "Run retention cleanup",
		TargetType:  "audit_events",
	}
	ok, err := audit.WithAuditLogging(c.Request.Context(), h.Batcher, op, h.Retention.PerformCleanup)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

type manualCleanupBody struct {
	EventType    string `json:"event_type" binding:"required"`
	DaysToKeep   int    `json:"days_to_keep" binding:"required"`
	ArchiveFirst bool   `json:"archive_first"`
}

// RunManualCleanup deletes one event type older than days_to_keep, ignoring policy flags.
func (h Handlers) RunManualCleanup(c *gin.Context) {
	var body manualCleanupBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "event_type and days_to_keep required")
		return
	}
	op := audit.Operation{
		EventType:   audit.EventAdminAction,
		Action:      "DELETE",
		Description: "Manual retention cleanup " + body.EventType,
		TargetType:  "audit_events",
		TargetName:  body.EventType,
		Metadata:    map[string]any{"days_to_keep": body.DaysToKeep, "archive_first": body.ArchiveFirst},
	}
	res, err := audit.WithAuditLogging(c.Request.Context(), h.Batcher, op, func(ctx context.Context) (*retention.CleanupResult, error) {
		return h.Retention.ManualCleanup(ctx, audit.EventType(body.EventType), body.DaysToKeep, body.ArchiveFirst)
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) ComplianceRequirements(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requirements": h.Retention.GetComplianceRequirements()})
}

func (h Handlers) ComplianceValidation(c *gin.Context) {
	res, err := h.Retention.ValidateCompliance(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}
