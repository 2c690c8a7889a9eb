package retention

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"casino-platform/pkg/logger"
)

// Scheduler runs retention on a cron schedule: the global expiry sweep, then
// every enabled policy that has auto_delete set.
type Scheduler struct {
	svc     *Service
	cron    *cron.Cron
	log     *slog.Logger
	timeout time.Duration
	base    context.Context
}

func NewScheduler(svc *Service, spec string, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Discard()
	}
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	s := &Scheduler{
		svc:     svc,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		log:     log,
		timeout: 30 * time.Minute,
		base:    context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return nil, errors.Join(errors.New("invalid RETENTION_SCHEDULE"), err)
	}
	return s, nil
}

// Start begins firing on schedule. Runs use ctx's values; ctx cancellation
// aborts a run in progress.
func (s *Scheduler) Start(ctx context.Context) {
	s.base = ctx
	s.cron.Start()
	s.log.Info("retention scheduler started")
}

// Stop prevents new runs and waits for a running one, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(logger.With(s.base, s.log), s.timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("scheduled retention run failed", slog.Any("err", err))
	}
}

// RunOnce performs one full retention pass. Policy failures do not stop the
// remaining policies; all errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error

	if _, err := s.svc.PerformCleanup(ctx); err != nil && !errors.Is(err, ErrCleanupRunning) {
		errs = append(errs, err)
	}

	policies, err := s.svc.ListPolicies(ctx)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, p := range policies {
		if !p.IsEnabled || !p.AutoDelete {
			continue
		}
		if _, err := s.svc.applyPolicy(ctx, p); err != nil {
			s.log.Warn("retention policy cleanup failed", slog.String("event_type", string(p.EventType)), slog.Any("err", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
