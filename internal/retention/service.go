package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"casino-platform/internal/audit"
	"casino-platform/internal/metrics"
	"casino-platform/pkg/logger"
)

const (
	MaxRetentionDays = 36500

	cleanupLockName = "retention:cleanup"
	policyCacheTTL  = time.Minute
)

var (
	ErrCleanupRunning = errors.New("retention cleanup already running")
	ErrNoArchiver     = errors.New("archiving requested but no archiver is configured")
)

type Options struct {
	// Archiver is required for archive-before-delete cleanups.
	Archiver Archiver
	// Locker guards the global sweep; nil runs unguarded.
	Locker  Locker
	LockTTL time.Duration
	// Audit receives a retention_cleanup event after each cleanup that did work.
	Audit audit.EventLogger
}

// Service manages retention policies and deletes audit events that are past
// their retention. Like the audit read side it fails soft: errors come back
// with the empty value and are kept for the admin banner.
type Service struct {
	policies PolicyRepository
	events   audit.Purger
	opts     Options
	errs     *audit.ErrorState
	validate *validator.Validate
	clock    func() time.Time

	cacheMu sync.Mutex
	cache   map[audit.EventType]cachedPolicy
}

type cachedPolicy struct {
	policy  Policy
	found   bool
	fetched time.Time
}

func NewService(policies PolicyRepository, events audit.Purger, errs *audit.ErrorState, opts Options) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Service{
		policies: policies,
		events:   events,
		opts:     opts,
		errs:     errs,
		validate: newValidator(),
		clock:    time.Now,
		cache:    map[audit.EventType]cachedPolicy{},
	}
}

// UpdatePolicy creates or replaces the policy for in.EventType and enables it.
func (s *Service) UpdatePolicy(ctx context.Context, in PolicyInput) (bool, error) {
	if err := s.validate.Struct(in); err != nil {
		err = validationError(err)
		s.record(ctx, "retention.update_policy", err)
		return false, err
	}

	now := s.clock().UTC()
	_, err := s.policies.Upsert(ctx, Policy{
		EventType:           audit.EventType(in.EventType),
		RetentionDays:       in.RetentionDays,
		AutoDelete:          in.AutoDelete,
		ArchiveBeforeDelete: in.ArchiveBeforeDelete,
		IsEnabled:           true,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		s.record(ctx, "retention.update_policy", err)
		return false, err
	}
	s.invalidate(audit.EventType(in.EventType))
	return true, nil
}

func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	out, err := s.policies.List(ctx)
	if err != nil {
		s.record(ctx, "retention.list_policies", err)
		return []Policy{}, err
	}
	if out == nil {
		out = []Policy{}
	}
	return out, nil
}

func (s *Service) GetPolicy(ctx context.Context, eventType audit.EventType) (Policy, error) {
	p, err := s.policies.Get(ctx, eventType)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.record(ctx, "retention.get_policy", err)
		}
		return Policy{}, err
	}
	return p, nil
}

func (s *Service) SetPolicyEnabled(ctx context.Context, eventType audit.EventType, enabled bool) (bool, error) {
	if _, err := s.policies.SetEnabled(ctx, eventType, enabled, s.clock().UTC()); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.record(ctx, "retention.set_policy_enabled", err)
		}
		return false, err
	}
	s.invalidate(eventType)
	return true, nil
}

// ExpiresAt resolves the expiry of an event written now. Only policies the
// global sweep may enforce stamp an expiry; events under archiving or
// non-deleting policies are left to the scheduled policy pass.
func (s *Service) ExpiresAt(ctx context.Context, eventType audit.EventType, occurredAt time.Time) (*time.Time, error) {
	p, found, err := s.cachedPolicy(ctx, eventType)
	if err != nil {
		return nil, err
	}
	if !found || !p.sweepable() {
		return nil, nil
	}
	t := occurredAt.AddDate(0, 0, p.RetentionDays)
	return &t, nil
}

func (s *Service) cachedPolicy(ctx context.Context, eventType audit.EventType) (Policy, bool, error) {
	now := s.clock()
	s.cacheMu.Lock()
	c, ok := s.cache[eventType]
	s.cacheMu.Unlock()
	if ok && now.Sub(c.fetched) < policyCacheTTL {
		return c.policy, c.found, nil
	}

	p, err := s.policies.Get(ctx, eventType)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Policy{}, false, err
	}

	s.cacheMu.Lock()
	s.cache[eventType] = cachedPolicy{policy: p, found: found, fetched: now}
	s.cacheMu.Unlock()
	return p, found, nil
}

func (s *Service) invalidate(eventType audit.EventType) {
	s.cacheMu.Lock()
	delete(s.cache, eventType)
	s.cacheMu.Unlock()
}

// PerformCleanup deletes every event whose expires_at has passed, except
// types whose current policy is disabled, keeps data, or archives first.
// Running it again right away deletes nothing. When another replica holds the cleanup
// lock it returns ErrCleanupRunning without deleting.
func (s *Service) PerformCleanup(ctx context.Context) (bool, error) {
	if s.opts.Locker != nil {
		release, ok, err := s.opts.Locker.TryLock(ctx, cleanupLockName, s.opts.LockTTL)
		if err != nil {
			s.record(ctx, "retention.perform_cleanup", err)
			return false, err
		}
		if !ok {
			logger.From(ctx).Info("retention cleanup skipped, lock held elsewhere")
			return false, ErrCleanupRunning
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.From(ctx).Warn("retention cleanup lock release failed", slog.Any("err", err))
			}
		}()
	}

	policies, err := s.policies.List(ctx)
	if err != nil {
		s.record(ctx, "retention.perform_cleanup", err)
		return false, err
	}
	// Rows stamped before a policy changed must not bypass its current flags.
	var skip []audit.EventType
	for _, p := range policies {
		if !p.sweepable() {
			skip = append(skip, p.EventType)
		}
	}

	now := s.clock().UTC()
	n, err := s.events.DeleteExpired(ctx, now, skip)
	if err != nil {
		s.record(ctx, "retention.perform_cleanup", err)
		return false, err
	}
	metrics.RetentionDeleted.WithLabelValues("expiry").Add(float64(n))
	logger.From(ctx).Info("retention sweep finished", slog.Int64("deleted", n))

	if n > 0 {
		s.logCleanup(ctx, CleanupResult{Deleted: "success", Count: n, Cutoff: now}, "expiry")
	}
	return true, nil
}

// ManualCleanup deletes events of eventType older than daysToKeep days,
// regardless of policy flags. With archiveFirst the same events are archived
// first and a failed archive leaves everything in place.
func (s *Service) ManualCleanup(ctx context.Context, eventType audit.EventType, daysToKeep int, archiveFirst bool) (*CleanupResult, error) {
	res, err := s.cleanupBefore(ctx, eventType, daysToKeep, archiveFirst, "manual")
	if err != nil {
		s.record(ctx, "retention.manual_cleanup", err)
		return nil, err
	}
	return res, nil
}

// applyPolicy enforces one auto-delete policy. Called by the scheduler.
func (s *Service) applyPolicy(ctx context.Context, p Policy) (*CleanupResult, error) {
	res, err := s.cleanupBefore(ctx, p.EventType, p.RetentionDays, p.ArchiveBeforeDelete, "policy")
	if err != nil {
		s.record(ctx, "retention.policy_cleanup", err)
		return nil, err
	}
	return res, nil
}

func (s *Service) cleanupBefore(ctx context.Context, eventType audit.EventType, days int, archive bool, mode string) (*CleanupResult, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: unknown event_type %q", ErrInvalidPolicy, eventType)
	}
	if days < 1 || days > MaxRetentionDays {
		return nil, fmt.Errorf("%w: days to keep must be between 1 and %d", ErrInvalidPolicy, MaxRetentionDays)
	}

	cutoff := s.clock().UTC().AddDate(0, 0, -days)
	res := &CleanupResult{Deleted: "success", EventType: eventType, Cutoff: cutoff}

	var (
		n   int64
		err error
	)
	if archive {
		if s.opts.Archiver == nil {
			return nil, ErrNoArchiver
		}
		// Only rows the archiver accepted are deleted; anything written while
		// the archive ran waits for the next pass.
		var archived []string
		stream := func(fn func(audit.Event) error) error {
			return s.events.ForEachOlderThan(ctx, eventType, cutoff, func(e audit.Event) error {
				if err := fn(e); err != nil {
					return err
				}
				archived = append(archived, e.ID)
				return nil
			})
		}
		res.Archived, err = s.opts.Archiver.Archive(ctx, ArchiveKey{EventType: eventType, Cutoff: cutoff}, stream)
		if err != nil {
			return nil, fmt.Errorf("archive %s before %s: %w", eventType, cutoff.Format(time.RFC3339), err)
		}
		metrics.RetentionArchived.Add(float64(res.Archived))
		n, err = s.events.DeleteByIDs(ctx, archived)
	} else {
		n, err = s.events.DeleteOlderThan(ctx, eventType, cutoff)
	}
	if err != nil {
		return nil, err
	}
	res.Count = n
	metrics.RetentionDeleted.WithLabelValues(mode).Add(float64(n))

	logger.From(ctx).Info("retention cleanup finished",
		slog.String("mode", mode),
		slog.String("event_type", string(eventType)),
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", n),
		slog.Int64("archived", res.Archived),
	)
	if mode == "manual" || n > 0 {
		s.logCleanup(ctx, *res, mode)
	}
	return res, nil
}

func (s *Service) logCleanup(ctx context.Context, res CleanupResult, mode string) {
	if s.opts.Audit == nil {
		return
	}
	_, _ = s.opts.Audit.LogEvent(ctx, audit.Event{
		EventType:       audit.EventRetentionCleanup,
		Action:          "DELETE",
		Description:     fmt.Sprintf("Retention cleanup (%s) removed %d events", mode, res.Count),
		TargetType:      "audit_events",
		TargetName:      string(res.EventType),
		Severity:        audit.SeverityMedium,
		ComplianceFlags: []string{"data_retention"},
		Metadata: map[string]any{
			"mode":     mode,
			"deleted":  res.Count,
			"archived": res.Archived,
			"cutoff":   res.Cutoff.Format(time.RFC3339),
		},
	})
}

// GetComplianceRequirements returns the static regulatory table.
func (s *Service) GetComplianceRequirements() map[string]ComplianceRequirement {
	return ComplianceRequirements()
}

// ValidateCompliance checks, per regime, that at least one event exists
// within its retention window.
func (s *Service) ValidateCompliance(ctx context.Context) (map[string]ComplianceResult, error) {
	now := s.clock().UTC()
	reqs := ComplianceRequirements()
	out := make(map[string]ComplianceResult, len(reqs))
	for std, req := range reqs {
		since := now.AddDate(0, 0, -req.RetentionPeriodDays)
		n, err := s.events.CountSince(ctx, since)
		if err != nil {
			s.record(ctx, "retention.validate_compliance", err)
			return map[string]ComplianceResult{}, err
		}
		out[std] = ComplianceResult{
			Compliant:    n > 0,
			RecordsFound: n,
			Requirement:  req,
			WindowStart:  since,
		}
	}
	return out, nil
}

func (s *Service) LastError() (audit.ErrorRecord, bool) { return s.errs.Last() }

func (s *Service) ClearError() { s.errs.Clear() }

func (s *Service) record(ctx context.Context, source string, err error) {
	s.errs.Record(source, err)
	logger.From(ctx).Error("retention operation failed", slog.String("op", source), slog.Any("err", err))
}
