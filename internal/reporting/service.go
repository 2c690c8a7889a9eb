package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"casino-platform/internal/audit"
	"casino-platform/internal/auth"
	"casino-platform/internal/metrics"
	"casino-platform/pkg/logger"
)

var (
	ErrInvalidRequest    = errors.New("reporting: invalid request")
	ErrInvalidTransition = errors.New("reporting: invalid status transition")
)

// Service tracks report requests through pending → generating → completed|failed.
// The generating job itself runs elsewhere and reports back through the Mark* calls.
type Service struct {
	repo     Repository
	audit    audit.EventLogger
	errs     *audit.ErrorState
	validate *validator.Validate
	clock    func() time.Time
}

// NewService wires the report store. events may be nil; when set, completed
// reports are recorded as report_generated audit events.
func NewService(repo Repository, events audit.EventLogger, errs *audit.ErrorState) *Service {
	return &Service{
		repo:     repo,
		audit:    events,
		errs:     errs,
		validate: validator.New(),
		clock:    time.Now,
	}
}

func (s *Service) CreateReport(ctx context.Context, req CreateRequest) (Report, error) {
	req.ReportName = strings.TrimSpace(req.ReportName)
	if err := s.validate.Struct(req); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		s.record(ctx, "reporting.create", err)
		return Report{}, err
	}

	requestedBy := "system"
	if p, err := auth.PrincipalFrom(ctx); err == nil {
		requestedBy = p.UserID
	}
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}

	now := s.clock().UTC()
	r, err := s.repo.Create(ctx, Report{
		ReportName:  req.ReportName,
		ReportType:  ReportType(req.ReportType),
		Parameters:  params,
		Status:      StatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.record(ctx, "reporting.create", err)
		return Report{}, err
	}
	metrics.ReportsRequested.WithLabelValues(string(r.ReportType)).Inc()
	return r, nil
}

func (s *Service) ListReports(ctx context.Context, f ListFilter) ([]Report, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		s.record(ctx, "reporting.list", err)
		return []Report{}, err
	}
	if out == nil {
		out = []Report{}
	}
	return out, nil
}

func (s *Service) GetReport(ctx context.Context, id string) (Report, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.record(ctx, "reporting.get", err)
		}
		return Report{}, err
	}
	return r, nil
}

// DeleteReport removes a report in any state.
func (s *Service) DeleteReport(ctx context.Context, id string) (bool, error) {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.record(ctx, "reporting.delete", err)
		}
		return false, err
	}
	return true, nil
}

func (s *Service) MarkGenerating(ctx context.Context, id string) (Report, error) {
	return s.transition(ctx, id, StatusGenerating, func(*Report) {})
}

// MarkCompleted records where the produced file lives.
func (s *Service) MarkCompleted(ctx context.Context, id, fileURL string) (Report, error) {
	if strings.TrimSpace(fileURL) == "" {
		return Report{}, fmt.Errorf("%w: file_url is required", ErrInvalidRequest)
	}
	r, err := s.transition(ctx, id, StatusCompleted, func(r *Report) {
		at := s.clock().UTC()
		r.FileURL = fileURL
		r.GeneratedAt = &at
	})
	if err != nil {
		return Report{}, err
	}
	if s.audit != nil {
		_, _ = s.audit.LogEvent(ctx, audit.Event{
			EventType:   audit.EventReportGenerated,
			Action:      "GENERATE",
			Description: "Report generated: " + r.ReportName,
			TargetType:  "report",
			TargetID:    r.ID,
			TargetName:  r.ReportName,
			Severity:    audit.SeverityLow,
			Metadata:    map[string]any{"report_type": string(r.ReportType), "requested_by": r.RequestedBy},
		})
	}
	return r, nil
}

func (s *Service) MarkFailed(ctx context.Context, id, reason string) (Report, error) {
	return s.transition(ctx, id, StatusFailed, func(r *Report) {
		r.Error = reason
	})
}

func (s *Service) transition(ctx context.Context, id string, next Status, apply func(*Report)) (Report, error) {
	cur, err := s.GetReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !cur.Status.CanMoveTo(next) {
		return Report{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next)
	}

	upd := cur
	upd.Status = next
	upd.UpdatedAt = s.clock().UTC()
	apply(&upd)

	out, err := s.repo.Update(ctx, upd, cur.Status)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrNotFound) {
			s.record(ctx, "reporting.transition", err)
		}
		return Report{}, err
	}
	logger.From(ctx).Info("report status changed",
		slog.String("report_id", id),
		slog.String("from", string(cur.Status)),
		slog.String("to", string(next)),
	)
	return out, nil
}

func (s *Service) LastError() (audit.ErrorRecord, bool) { return s.errs.Last() }

func (s *Service) ClearError() { s.errs.Clear() }

func (s *Service) record(ctx context.Context, source string, err error) {
	s.errs.Record(source, err)
	logger.From(ctx).Error("reporting operation failed", slog.String("op", source), slog.Any("err", err))
}
