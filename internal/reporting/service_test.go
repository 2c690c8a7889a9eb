package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"casino-platform/internal/audit"
	"casino-platform/internal/auth"
)

func newTestService() (*Service, *audit.MemoryRepo) {
	events := audit.NewMemoryRepo()
	svc := NewService(NewMemoryRepo(), audit.NewLogger(events, nil, nil), audit.NewErrorState())
	svc.clock = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc, events
}

func TestCreateReport_Pending(t *testing.T) {
	svc, _ := newTestService()
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{UserID: "admin-1", Role: "admin"})

	r, err := svc.CreateReport(ctx, CreateRequest{ReportName: " Weekly risk ", ReportType: "risk_assessment"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID == "" || r.Status != StatusPending || r.RequestedBy != "admin-1" || r.ReportName != "Weekly risk" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Parameters == nil {
		t.Fatalf("expected empty parameters map")
	}
}

func TestCreateReport_Validates(t *testing.T) {
	svc, _ := newTestService()
	for _, req := range []CreateRequest{
		{ReportName: "", ReportType: "risk_assessment"},
		{ReportName: "x", ReportType: "weekly_fun"},
	} {
		if _, err := svc.CreateReport(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", req, err)
		}
	}
	if rec, ok := svc.LastError(); !ok || !strings.Contains(rec.Message, "invalid request") {
		t.Fatalf("expected recorded validation error, got %+v", rec)
	}
}

func TestReportLifecycle(t *testing.T) {
	svc, events := newTestService()
	ctx := context.Background()
	r, _ := svc.CreateReport(ctx, CreateRequest{ReportName: "SOX", ReportType: "compliance_audit"})

	if _, err := svc.MarkCompleted(ctx, r.ID, "s3://reports/sox.pdf"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected pending -> completed rejected, got %v", err)
	}
	if _, err := svc.MarkGenerating(ctx, r.ID); err != nil {
		t.Fatalf("generating: %v", err)
	}
	done, err := svc.MarkCompleted(ctx, r.ID, "s3://reports/sox.pdf")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if done.Status != StatusCompleted || done.FileURL != "s3://reports/sox.pdf" || done.GeneratedAt == nil {
		t.Fatalf("unexpected completed report: %+v", done)
	}
	if _, err := svc.MarkFailed(ctx, r.ID, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completed to be terminal, got %v", err)
	}

	n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventReportGenerated, TargetID: r.ID})
	if n != 1 {
		t.Fatalf("expected one report_generated event, got %d", n)
	}
}

func TestMarkFailed_FromPending(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r, _ := svc.CreateReport(ctx, CreateRequest{ReportName: "x", ReportType: "user_activity"})

	failed, err := svc.MarkFailed(ctx, r.ID, "no data source")
	if err != nil || failed.Status != StatusFailed || failed.Error != "no data source" {
		t.Fatalf("unexpected failed report %+v %v", failed, err)
	}
}

func TestMarkCompleted_RequiresFileURL(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	r, _ := svc.CreateReport(ctx, CreateRequest{ReportName: "x", ReportType: "user_activity"})
	_, _ = svc.MarkGenerating(ctx, r.ID)

	if _, err := svc.MarkCompleted(ctx, r.ID, " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.CreateReport(ctx, CreateRequest{ReportName: "a", ReportType: "security_summary"})
	_, _ = svc.CreateReport(ctx, CreateRequest{ReportName: "b", ReportType: "financial_transactions"})
	_, _ = svc.MarkGenerating(ctx, a.ID)

	gen, _ := svc.ListReports(ctx, ListFilter{Status: StatusGenerating})
	if len(gen) != 1 || gen[0].ID != a.ID {
		t.Fatalf("unexpected filtered list: %+v", gen)
	}
	if ok, err := svc.DeleteReport(ctx, a.ID); !ok || err != nil {
		t.Fatalf("delete generating report: %v %v", ok, err)
	}
	if _, err := svc.GetReport(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if ok, err := svc.DeleteReport(ctx, a.ID); ok || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v %v", ok, err)
	}
	all, _ := svc.ListReports(ctx, ListFilter{})
	if len(all) != 1 {
		t.Fatalf("expected 1 report left, got %d", len(all))
	}
}

func TestBuildListQuery(t *testing.T) {
	q, args := buildListQuery(ListFilter{Status: StatusPending, RequestedBy: "u1", Limit: 20})
	want := "SELECT " + reportColumns + " FROM audit_reports WHERE status = $1 AND requested_by = $2 ORDER BY created_at DESC, id LIMIT $3"
	if q != want || len(args) != 3 {
		t.Fatalf("unexpected list query %q %v", q, args)
	}
}
