package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"casino-platform/internal/auth"
	"casino-platform/internal/clientinfo"
	"casino-platform/internal/metrics"
	"casino-platform/pkg/logger"
)

var ErrInvalidEvent = errors.New("invalid audit event")

// Reserved metadata keys; they overwrite caller-supplied values.
const (
	MetaClientInfo = "client_info"
	MetaTimestamp  = "timestamp"
)

// InfoCollector resolves best-effort client context. clientinfo.Collector satisfies it.
type InfoCollector interface {
	Collect(ctx context.Context, env clientinfo.Env) clientinfo.Info
}

// ExpiryResolver decides when an event of a given type expires. A nil time
// means it is kept indefinitely.
type ExpiryResolver interface {
	ExpiresAt(ctx context.Context, eventType EventType, occurredAt time.Time) (*time.Time, error)
}

// EventLogger is what producers need to write an event.
type EventLogger interface {
	LogEvent(ctx context.Context, e Event) (string, error)
}

// Logger enriches and persists audit events.
type Logger struct {
	repo      Repository
	collector InfoCollector
	expiry    ExpiryResolver
	errs      *ErrorState
	clock     func() time.Time
}

func NewLogger(repo Repository, collector InfoCollector, errs *ErrorState) *Logger {
	return &Logger{
		repo:      repo,
		collector: collector,
		errs:      errs,
		clock:     time.Now,
	}
}

// SetExpiryResolver wires retention policies into write-time expiry stamping.
func (l *Logger) SetExpiryResolver(r ExpiryResolver) {
	l.expiry = r
}

// LogEvent fills defaults and client context, then stores e. It returns the
// stored id. Failures are recorded in the error state and must be treated
// as non-fatal by callers.
func (l *Logger) LogEvent(ctx context.Context, e Event) (string, error) {
	e, err := l.prepare(ctx, e)
	if err != nil {
		return "", l.fail(ctx, e, err)
	}

	id, err := l.repo.Insert(ctx, e)
	if err != nil {
		return "", l.fail(ctx, e, err)
	}
	metrics.AuditEventsLogged.WithLabelValues("ok").Inc()
	return id, nil
}

func (l *Logger) fail(ctx context.Context, e Event, err error) error {
	metrics.AuditEventsLogged.WithLabelValues("error").Inc()
	l.errs.Record("audit.log_event", err)
	logger.From(ctx).Error("audit event not stored",
		slog.String("event_type", string(e.EventType)),
		slog.String("action", e.Action),
		slog.Any("err", err),
	)
	return fmt.Errorf("log audit event: %w", err)
}

func (l *Logger) prepare(ctx context.Context, e Event) (Event, error) {
	if !e.EventType.Valid() {
		return e, fmt.Errorf("%w: unknown event_type %q", ErrInvalidEvent, e.EventType)
	}
	if e.Action == "" {
		return e, fmt.Errorf("%w: action is required", ErrInvalidEvent)
	}
	if e.ActorType != "" && !e.ActorType.Valid() {
		return e, fmt.Errorf("%w: unknown actor_type %q", ErrInvalidEvent, e.ActorType)
	}
	if e.Severity != "" && !e.Severity.Valid() {
		return e, fmt.Errorf("%w: unknown severity %q", ErrInvalidEvent, e.Severity)
	}
	if e.Status != "" && !e.Status.Valid() {
		return e, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
	}

	now := l.clock().UTC()

	if p, err := auth.PrincipalFrom(ctx); err == nil {
		if e.ActorID == "" {
			e.ActorID = p.UserID
		}
		if e.ActorEmail == "" {
			e.ActorEmail = p.Email
		}
		if e.ActorType == "" {
			e.ActorType = ActorUser
		}
	}
	if e.ActorType == "" {
		e.ActorType = ActorSystem
	}

	var info clientinfo.Info
	if l.collector != nil {
		env, _ := clientinfo.EnvFrom(ctx)
		info = l.collector.Collect(ctx, env)
		e.ActorIPAddress = firstSet(e.ActorIPAddress, info.IPAddress)
		e.ActorUserAgent = firstSet(e.ActorUserAgent, info.UserAgent)
		e.ActorDeviceFingerprint = firstSet(e.ActorDeviceFingerprint, info.DeviceFingerprint)
		e.ActorSessionID = firstSet(e.ActorSessionID, info.SessionID)
		e.Timezone = firstSet(e.Timezone, info.Timezone)
		e.CountryCode = firstSet(e.CountryCode, info.CountryCode)
	}

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	if e.Severity == "" {
		e.Severity = SeverityMedium
	}
	if e.Status == "" {
		e.Status = StatusCompleted
	}
	e.RiskScore = Score(clampRisk(e.Risk()))
	if e.ComplianceFlags == nil {
		e.ComplianceFlags = []string{}
	}
	if e.SecurityFlags == nil {
		e.SecurityFlags = []string{}
	}

	meta := make(map[string]any, len(e.Metadata)+2)
	maps.Copy(meta, e.Metadata)
	meta[MetaClientInfo] = info
	meta[MetaTimestamp] = now.UnixMilli()
	e.Metadata = meta

	if e.ExpiresAt == nil && l.expiry != nil {
		exp, err := l.expiry.ExpiresAt(ctx, e.EventType, e.OccurredAt)
		if err != nil {
			// Stored without expiry.
			logger.From(ctx).Warn("retention lookup failed", slog.String("event_type", string(e.EventType)), slog.Any("err", err))
		} else {
			e.ExpiresAt = exp
		}
	}
	return e, nil
}

func clampRisk(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

func firstSet(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
