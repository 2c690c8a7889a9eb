package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"casino-platform/internal/audit"
	"casino-platform/internal/auth"
	"casino-platform/internal/rbac"
)

const (
	defaultTrailLimit = 50
	maxTrailLimit     = 500
	maxIngestBatch    = 50
)

// clientEvent is what the SPA may report. Actor and client context are
// always taken from the request, never from the body.
type clientEvent struct {
	EventType       string         `json:"event_type" binding:"required"`
	Action          string         `json:"action" binding:"required"`
	Description     string         `json:"description"`
	TargetType      string         `json:"target_type"`
	TargetID        string         `json:"target_id"`
	TargetName      string         `json:"target_name"`
	CorrelationID   string         `json:"correlation_id"`
	OldValues       map[string]any `json:"old_values"`
	NewValues       map[string]any `json:"new_values"`
	Metadata        map[string]any `json:"metadata"`
	Severity        string         `json:"severity"`
	Status          string         `json:"status"`
	RiskScore       *int           `json:"risk_score"`
	ComplianceFlags []string       `json:"compliance_flags"`
	SecurityFlags   []string       `json:"security_flags"`
}

type ingestRequest struct {
	Events []clientEvent `json:"events" binding:"required,min=1,dive"`
}

func (e clientEvent) toEvent() (audit.Event, error) {
	out := audit.Event{
		EventType:       audit.EventType(e.EventType),
		Action:          strings.ToUpper(strings.TrimSpace(e.Action)),
		Description:     e.Description,
		TargetType:      e.TargetType,
		TargetID:        e.TargetID,
		TargetName:      e.TargetName,
		CorrelationID:   e.CorrelationID,
		OldValues:       e.OldValues,
		NewValues:       e.NewValues,
		Metadata:        e.Metadata,
		Severity:        audit.Severity(e.Severity),
		Status:          audit.Status(e.Status),
		RiskScore:       e.RiskScore,
		ComplianceFlags: e.ComplianceFlags,
		SecurityFlags:   e.SecurityFlags,
	}
	switch {
	case !out.EventType.Valid():
		return audit.Event{}, fmt.Errorf("unknown event_type %q", e.EventType)
	case out.Severity != "" && !out.Severity.Valid():
		return audit.Event{}, fmt.Errorf("unknown severity %q", e.Severity)
	case out.Status != "" && !out.Status.Valid():
		return audit.Event{}, fmt.Errorf("unknown status %q", e.Status)
	}
	return out, nil
}

// IngestEvents accepts a batch of client-side audit events and defers them
// to the batcher. The whole request is rejected if any event is malformed.
func (h Handlers) IngestEvents(c *gin.Context) {
	if h.Batcher == nil {
		abortJSON(c, http.StatusServiceUnavailable, "audit queue not configured")
		return
	}
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "events required")
		return
	}
	if len(req.Events) > maxIngestBatch {
		abortJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d events per request", maxIngestBatch))
		return
	}

	ctx := c.Request.Context()
	actorType := audit.ActorUser
	if role, _ := auth.Role(ctx); rbac.IsBackOffice(role) {
		actorType = audit.ActorAdmin
	}

	events := make([]audit.Event, 0, len(req.Events))
	for i, ce := range req.Events {
		e, err := ce.toEvent()
		if err != nil {
			abortJSON(c, http.StatusBadRequest, fmt.Sprintf("events[%d]: %v", i, err))
			return
		}
		e.ActorType = actorType
		events = append(events, e)
	}

	accepted := 0
	for _, e := range events {
		if err := h.Batcher.EnqueueEvent(ctx, e); err != nil {
			break
		}
		accepted++
	}
	if accepted < len(events) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"accepted": accepted, "rejected": len(events) - accepted, "error": audit.ErrQueueFull.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

func (h Handlers) ListAuditEvents(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()

	events, err := h.Audit.GetAuditTrail(ctx, f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	total, err := h.Audit.CountAuditTrail(ctx, f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": total, "limit": f.Limit, "offset": f.Offset})
}

func (h Handlers) AuditSummary(c *gin.Context) {
	start, err := parseTimeParam(c, "start_date")
	if err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTimeParam(c, "end_date")
	if err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.Audit.GetAuditSummary(c.Request.Context(), start, end)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": rows})
}

// parseFilter maps query parameters onto audit.Filter. Unknown enum values
// are rejected instead of silently matching nothing.
func parseFilter(c *gin.Context) (audit.Filter, error) {
	f := audit.Filter{
		EventType:   audit.EventType(c.Query("event_type")),
		ActorType:   audit.ActorType(c.Query("actor_type")),
		ActorID:     c.Query("actor_id"),
		TargetType:  c.Query("target_type"),
		TargetID:    c.Query("target_id"),
		Severity:    audit.Severity(c.Query("severity")),
		Status:      audit.Status(c.Query("status")),
		CountryCode: strings.ToUpper(c.Query("country_code")),
		Limit:       defaultTrailLimit,
	}
	if f.EventType != "" && !f.EventType.Valid() {
		return f, fmt.Errorf("unknown event_type %q", f.EventType)
	}
	if f.ActorType != "" && !f.ActorType.Valid() {
		return f, fmt.Errorf("unknown actor_type %q", f.ActorType)
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return f, fmt.Errorf("unknown severity %q", f.Severity)
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}

	var err error
	if f.StartDate, err = parseTimeParam(c, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = parseTimeParam(c, "end_date"); err != nil {
		return f, err
	}
	if f.RiskScoreMin, err = parseIntParam(c, "risk_score_min"); err != nil {
		return f, err
	}
	if f.RiskScoreMax, err = parseIntParam(c, "risk_score_max"); err != nil {
		return f, err
	}
	if n, err := parseIntParam(c, "limit"); err != nil {
		return f, err
	} else if n != nil {
		f.Limit = min(max(*n, 1), maxTrailLimit)
	}
	if n, err := parseIntParam(c, "offset"); err != nil {
		return f, err
	} else if n != nil {
		f.Offset = max(*n, 0)
	}
	return f, nil
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTimeParam(c *gin.Context, name string) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD, got %q", name, v)
}

func parseIntParam(c *gin.Context, name string) (*int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	return &n, nil
}
