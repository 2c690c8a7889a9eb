package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"casino-platform/internal/audit"
)

var fixedNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestService(events *audit.MemoryRepo, opts Options) (*Service, *MemoryRepo) {
	policies := NewMemoryRepo()
	svc := NewService(policies, events, audit.NewErrorState(), opts)
	svc.clock = func() time.Time { return fixedNow }
	return svc, policies
}

func plant(t *testing.T, repo *audit.MemoryRepo, e audit.Event) string {
	t.Helper()
	id, err := repo.Insert(context.Background(), e)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestUpdatePolicy_Validates(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	ctx := context.Background()

	cases := []PolicyInput{
		{EventType: "", RetentionDays: 30},
		{EventType: "not_a_type", RetentionDays: 30},
		{EventType: "deposit", RetentionDays: 0},
		{EventType: "deposit", RetentionDays: 36501},
	}
	for _, in := range cases {
		ok, err := svc.UpdatePolicy(ctx, in)
		if ok || !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("expected ErrInvalidPolicy for %+v, got %v %v", in, ok, err)
		}
	}
	if _, ok := svc.LastError(); !ok {
		t.Fatalf("expected validation failure in error state")
	}
}

func TestUpdatePolicy_UpsertsByEventType(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	ctx := context.Background()

	if ok, err := svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 365, AutoDelete: true}); !ok || err != nil {
		t.Fatalf("first update: %v %v", ok, err)
	}
	first, _ := svc.GetPolicy(ctx, audit.EventDeposit)

	if ok, err := svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 2555, ArchiveBeforeDelete: true}); !ok || err != nil {
		t.Fatalf("second update: %v %v", ok, err)
	}
	second, _ := svc.GetPolicy(ctx, audit.EventDeposit)
	if second.ID != first.ID || second.RetentionDays != 2555 || second.AutoDelete || !second.ArchiveBeforeDelete || !second.IsEnabled {
		t.Fatalf("unexpected policy after upsert: %+v", second)
	}
	all, _ := svc.ListPolicies(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one policy per event type, got %d", len(all))
	}
}

func TestExpiresAt_FollowsEnabledPolicy(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	ctx := context.Background()

	exp, err := svc.ExpiresAt(ctx, audit.EventDeposit, fixedNow)
	if err != nil || exp != nil {
		t.Fatalf("expected no expiry without policy, got %v %v", exp, err)
	}

	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 90, AutoDelete: true})
	exp, _ = svc.ExpiresAt(ctx, audit.EventDeposit, fixedNow)
	if exp == nil || !exp.Equal(fixedNow.AddDate(0, 0, 90)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	if ok, err := svc.SetPolicyEnabled(ctx, audit.EventDeposit, false); !ok || err != nil {
		t.Fatalf("disable: %v %v", ok, err)
	}
	exp, _ = svc.ExpiresAt(ctx, audit.EventDeposit, fixedNow)
	if exp != nil {
		t.Fatalf("expected no expiry for disabled policy, got %v", exp)
	}

	if _, err := svc.SetPolicyEnabled(ctx, audit.EventWithdrawal, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiresAt_OnlyForSweepablePolicies(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	ctx := context.Background()

	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 30})
	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "withdrawal", RetentionDays: 30, AutoDelete: true, ArchiveBeforeDelete: true})

	for _, et := range []audit.EventType{audit.EventDeposit, audit.EventWithdrawal} {
		if exp, err := svc.ExpiresAt(ctx, et, fixedNow); err != nil || exp != nil {
			t.Fatalf("expected no expiry for %s, got %v %v", et, exp, err)
		}
	}
}

func TestPerformCleanup_HonoursCurrentPolicyFlags(t *testing.T) {
	events := audit.NewMemoryRepo()
	svc, _ := newTestService(events, Options{})
	ctx := context.Background()

	// Stamped while the policy still auto-deleted.
	past := fixedNow.Add(-time.Hour)
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: past, ExpiresAt: &past})
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: past, ExpiresAt: &past})
	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 30, AutoDelete: true, ArchiveBeforeDelete: true})

	if ok, err := svc.PerformCleanup(ctx); !ok || err != nil {
		t.Fatalf("cleanup: %v %v", ok, err)
	}
	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventDeposit}); n != 1 {
		t.Fatalf("expected deposit left for the archiving policy pass")
	}
	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventBetPlaced}); n != 0 {
		t.Fatalf("expected expired bet deleted")
	}
}

func TestManualCleanup_StrictCutoff(t *testing.T) {
	events := audit.NewMemoryRepo()
	svc, _ := newTestService(events, Options{})
	ctx := context.Background()

	boundary := fixedNow.AddDate(0, 0, -30)
	before := plant(t, events, audit.Event{EventType: audit.EventUserLogin, OccurredAt: boundary.Add(-time.Second)})
	exact := plant(t, events, audit.Event{EventType: audit.EventUserLogin, OccurredAt: boundary})
	after := plant(t, events, audit.Event{EventType: audit.EventUserLogin, OccurredAt: boundary.Add(time.Second)})
	otherType := plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: boundary.Add(-time.Hour)})

	res, err := svc.ManualCleanup(ctx, audit.EventUserLogin, 30, false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.Deleted != "success" || res.Count != 1 || !res.Cutoff.Equal(boundary) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := events.Get(ctx, before); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("expected event before cutoff deleted")
	}
	for _, id := range []string{exact, after, otherType} {
		if _, err := events.Get(ctx, id); err != nil {
			t.Fatalf("expected %s kept: %v", id, err)
		}
	}
}

func TestManualCleanup_RejectsBadInput(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	if res, err := svc.ManualCleanup(context.Background(), audit.EventUserLogin, 0, false); res != nil || !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v %v", res, err)
	}
	if _, err := svc.ManualCleanup(context.Background(), audit.EventUserLogin, 10, true); !errors.Is(err, ErrNoArchiver) {
		t.Fatalf("expected ErrNoArchiver, got %v", err)
	}
}

type recordingArchiver struct {
	archived []audit.Event
	err      error
}

func (a *recordingArchiver) Archive(_ context.Context, _ ArchiveKey, events EventStream) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	var n int64
	err := events(func(e audit.Event) error {
		a.archived = append(a.archived, e)
		n++
		return nil
	})
	return n, err
}

func TestManualCleanup_ArchivesFirst(t *testing.T) {
	events := audit.NewMemoryRepo()
	arch := &recordingArchiver{}
	svc, _ := newTestService(events, Options{Archiver: arch})
	old := fixedNow.AddDate(0, 0, -100)
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: old})
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: old.Add(time.Hour)})

	res, err := svc.ManualCleanup(context.Background(), audit.EventDeposit, 30, true)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.Archived != 2 || res.Count != 2 || len(arch.archived) != 2 {
		t.Fatalf("unexpected archive result %+v (archived %d)", res, len(arch.archived))
	}
	if !arch.archived[0].OccurredAt.Before(arch.archived[1].OccurredAt) {
		t.Fatalf("expected oldest first")
	}
}

// insertingArchiver writes a matching event into the store mid-archive.
type insertingArchiver struct {
	recordingArchiver
	events *audit.MemoryRepo
	late   audit.Event
	lateID string
}

func (a *insertingArchiver) Archive(ctx context.Context, key ArchiveKey, events EventStream) (int64, error) {
	var n int64
	err := events(func(e audit.Event) error {
		if a.lateID == "" {
			id, err := a.events.Insert(ctx, a.late)
			if err != nil {
				return err
			}
			a.lateID = id
		}
		a.archived = append(a.archived, e)
		n++
		return nil
	})
	return n, err
}

func TestManualCleanup_DeletesOnlyArchivedEvents(t *testing.T) {
	events := audit.NewMemoryRepo()
	old := fixedNow.AddDate(0, 0, -100)
	arch := &insertingArchiver{events: events, late: audit.Event{EventType: audit.EventDeposit, OccurredAt: old.Add(-time.Hour)}}
	svc, _ := newTestService(events, Options{Archiver: arch})
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: old})
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: old.Add(time.Hour)})

	res, err := svc.ManualCleanup(context.Background(), audit.EventDeposit, 30, true)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.Archived != 2 || res.Count != 2 {
		t.Fatalf("expected deleted count to match archived, got %+v", res)
	}
	if _, err := events.Get(context.Background(), arch.lateID); err != nil {
		t.Fatalf("expected event written during archive kept: %v", err)
	}
}

func TestManualCleanup_ArchiveFailureKeepsEvents(t *testing.T) {
	events := audit.NewMemoryRepo()
	svc, _ := newTestService(events, Options{Archiver: &recordingArchiver{err: errors.New("s3 unavailable")}})
	id := plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: fixedNow.AddDate(0, 0, -100)})

	if _, err := svc.ManualCleanup(context.Background(), audit.EventDeposit, 30, true); err == nil {
		t.Fatalf("expected archive error")
	}
	if _, err := events.Get(context.Background(), id); err != nil {
		t.Fatalf("expected event kept after failed archive: %v", err)
	}
}

func TestPerformCleanup_Idempotent(t *testing.T) {
	events := audit.NewMemoryRepo()
	logged := audit.NewMemoryRepo()
	svc, _ := newTestService(events, Options{Audit: audit.NewLogger(logged, nil, nil)})
	ctx := context.Background()

	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: fixedNow.AddDate(0, 0, -10), ExpiresAt: &past})
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: fixedNow.AddDate(0, 0, -10), ExpiresAt: &fixedNow})
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: fixedNow, ExpiresAt: &future})
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: fixedNow.AddDate(-10, 0, 0)})

	if ok, err := svc.PerformCleanup(ctx); !ok || err != nil {
		t.Fatalf("first cleanup: %v %v", ok, err)
	}
	left, _ := events.Count(ctx, audit.Filter{})
	if left != 2 {
		t.Fatalf("expected 2 events left, got %d", left)
	}
	if ok, err := svc.PerformCleanup(ctx); !ok || err != nil {
		t.Fatalf("second cleanup: %v %v", ok, err)
	}
	again, _ := events.Count(ctx, audit.Filter{})
	if again != left {
		t.Fatalf("second cleanup deleted rows: %d -> %d", left, again)
	}
	n, _ := logged.Count(ctx, audit.Filter{EventType: audit.EventRetentionCleanup})
	if n != 1 {
		t.Fatalf("expected one retention_cleanup event, got %d", n)
	}
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	return nil, false, nil
}

func TestPerformCleanup_SkipsWhenLocked(t *testing.T) {
	events := audit.NewMemoryRepo()
	svc, _ := newTestService(events, Options{Locker: busyLocker{}})
	past := fixedNow.Add(-time.Hour)
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: past, ExpiresAt: &past})

	if ok, err := svc.PerformCleanup(context.Background()); ok || !errors.Is(err, ErrCleanupRunning) {
		t.Fatalf("expected ErrCleanupRunning, got %v %v", ok, err)
	}
	if n, _ := events.Count(context.Background(), audit.Filter{}); n != 1 {
		t.Fatalf("expected nothing deleted, got %d left", n)
	}
}

func TestValidateCompliance_PresenceOnly(t *testing.T) {
	events := audit.NewMemoryRepo()
	svc, _ := newTestService(events, Options{})
	pciStart := fixedNow.AddDate(0, 0, -365)
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: pciStart})

	res, err := svc.ValidateCompliance(context.Background())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 standards, got %d", len(res))
	}
	for _, std := range []string{StandardSOX, StandardGDPR, StandardPCIDSS} {
		r := res[std]
		if !r.Compliant || r.RecordsFound != 1 || r.Requirement.RetentionPeriodDays == 0 {
			t.Fatalf("expected %s compliant with one record, got %+v", std, r)
		}
	}
	if !res[StandardPCIDSS].WindowStart.Equal(pciStart) {
		t.Fatalf("unexpected PCI window start %v", res[StandardPCIDSS].WindowStart)
	}
}

func TestValidateCompliance_EmptyStore(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	res, _ := svc.ValidateCompliance(context.Background())
	if res[StandardSOX].Compliant {
		t.Fatalf("expected non-compliant without records")
	}
}

func TestComplianceRequirements(t *testing.T) {
	reqs := ComplianceRequirements()
	if reqs[StandardSOX].RetentionPeriodDays != 2555 || reqs[StandardGDPR].RetentionPeriodDays != 2190 || reqs[StandardPCIDSS].RetentionPeriodDays != 365 {
		t.Fatalf("unexpected retention periods: %+v", reqs)
	}
	reqs[StandardSOX].Requirements[0] = "mutated"
	if ComplianceRequirements()[StandardSOX].Requirements[0] == "mutated" {
		t.Fatalf("requirements table must not be shared")
	}
}
