package retention

import (
	"context"
	"testing"
	"time"

	"casino-platform/internal/audit"
)

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	if _, err := NewScheduler(svc, "every tuesday", nil); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
	if _, err := NewScheduler(svc, "@daily", nil); err != nil {
		t.Fatalf("descriptor schedule: %v", err)
	}
}

func TestScheduler_RunOnceHonoursAutoDelete(t *testing.T) {
	events := audit.NewMemoryRepo()
	arch := &recordingArchiver{}
	svc, _ := newTestService(events, Options{Archiver: arch})
	ctx := context.Background()

	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "bet_placed", RetentionDays: 30, AutoDelete: true, ArchiveBeforeDelete: true})
	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 30, AutoDelete: false})
	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "user_login", RetentionDays: 30, AutoDelete: true})
	_, _ = svc.SetPolicyEnabled(ctx, audit.EventUserLogin, false)

	old := fixedNow.AddDate(0, 0, -60)
	plant(t, events, audit.Event{EventType: audit.EventBetPlaced, OccurredAt: old})
	plant(t, events, audit.Event{EventType: audit.EventDeposit, OccurredAt: old})
	plant(t, events, audit.Event{EventType: audit.EventUserLogin, OccurredAt: old})

	s, err := NewScheduler(svc, "@hourly", nil)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventBetPlaced}); n != 0 {
		t.Fatalf("expected auto-delete policy applied, %d bets left", n)
	}
	if len(arch.archived) != 1 {
		t.Fatalf("expected archive before delete, got %d archived", len(arch.archived))
	}
	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventDeposit}); n != 1 {
		t.Fatalf("expected deposit kept without auto_delete")
	}
	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventUserLogin}); n != 1 {
		t.Fatalf("expected login kept for disabled policy")
	}
}

func TestScheduler_RunOnceWithLoggedEvents(t *testing.T) {
	events := audit.NewMemoryRepo()
	arch := &recordingArchiver{}
	svc, _ := newTestService(events, Options{Archiver: arch})
	ctx := context.Background()

	lg := audit.NewLogger(events, nil, nil)
	lg.SetExpiryResolver(svc)

	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "deposit", RetentionDays: 30, ArchiveBeforeDelete: true})
	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "withdrawal", RetentionDays: 30, AutoDelete: true, ArchiveBeforeDelete: true})
	_, _ = svc.UpdatePolicy(ctx, PolicyInput{EventType: "bet_placed", RetentionDays: 30, AutoDelete: true})

	old := fixedNow.AddDate(0, 0, -60)
	for _, et := range []audit.EventType{audit.EventDeposit, audit.EventWithdrawal, audit.EventBetPlaced} {
		if _, err := lg.LogEvent(ctx, audit.Event{EventType: et, Action: "CREATE", OccurredAt: old}); err != nil {
			t.Fatalf("log %s: %v", et, err)
		}
	}

	s, err := NewScheduler(svc, "@hourly", nil)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventDeposit}); n != 1 {
		t.Fatalf("expected deposit kept without auto_delete, %d left", n)
	}
	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventWithdrawal}); n != 0 {
		t.Fatalf("expected withdrawal removed by policy pass, %d left", n)
	}
	if len(arch.archived) != 1 || arch.archived[0].EventType != audit.EventWithdrawal {
		t.Fatalf("expected only the withdrawal archived, got %+v", arch.archived)
	}
	if n, _ := events.Count(ctx, audit.Filter{EventType: audit.EventBetPlaced}); n != 0 {
		t.Fatalf("expected expired bet swept, %d left", n)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	svc, _ := newTestService(audit.NewMemoryRepo(), Options{})
	s, err := NewScheduler(svc, "@every 1h", nil)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	s.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
