package audit

import (
	"context"
	"log/slog"
	"time"

	"casino-platform/pkg/logger"
)

// DefaultSummaryWindow is used when a summary request gives no start date.
const DefaultSummaryWindow = 24 * time.Hour

// Service is the read side of the audit trail. Reads fail soft: on a store
// error the documented empty value comes back together with the error, and
// the error is kept for the admin banner.
type Service struct {
	repo  Repository
	errs  *ErrorState
	clock func() time.Time
}

func NewService(repo Repository, errs *ErrorState) *Service {
	return &Service{repo: repo, errs: errs, clock: time.Now}
}

// GetAuditTrail returns matching events, newest first.
func (s *Service) GetAuditTrail(ctx context.Context, f Filter) ([]Event, error) {
	events, err := s.repo.Query(ctx, f)
	if err != nil {
		s.record(ctx, "audit.get_trail", err)
		return []Event{}, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// CountAuditTrail counts matching events, ignoring Limit and Offset.
func (s *Service) CountAuditTrail(ctx context.Context, f Filter) (int64, error) {
	f.Limit, f.Offset = 0, 0
	n, err := s.repo.Count(ctx, f)
	if err != nil {
		s.record(ctx, "audit.count_trail", err)
		return 0, err
	}
	return n, nil
}

// GetAuditSummary aggregates events per type over [start, end]. A nil end
// means now; a nil start means DefaultSummaryWindow before end.
func (s *Service) GetAuditSummary(ctx context.Context, start, end *time.Time) ([]SummaryRow, error) {
	to := s.clock().UTC()
	if end != nil {
		to = *end
	}
	from := to.Add(-DefaultSummaryWindow)
	if start != nil {
		from = *start
	}

	rows, err := s.repo.Summary(ctx, from, to)
	if err != nil {
		s.record(ctx, "audit.get_summary", err)
		return []SummaryRow{}, err
	}
	if rows == nil {
		rows = []SummaryRow{}
	}
	return rows, nil
}

func (s *Service) LastError() (ErrorRecord, bool) { return s.errs.Last() }

func (s *Service) ClearError() { s.errs.Clear() }

func (s *Service) record(ctx context.Context, source string, err error) {
	s.errs.Record(source, err)
	logger.From(ctx).Error("audit read failed", slog.String("op", source), slog.Any("err", err))
}
