package audit

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// MemoryRepo is an in-process store used by tests and local runs.
type MemoryRepo struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Insert(_ context.Context, e Event) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.events = append(r.events, cloneEvent(e))
	return e.ID, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if e.ID == id {
			return cloneEvent(e), nil
		}
	}
	return Event{}, ErrNotFound
}

func (r *MemoryRepo) Query(_ context.Context, f Filter) ([]Event, error) {
	out := r.matching(f)
	return page(out, f.Offset, f.Limit), nil
}

func (r *MemoryRepo) Count(_ context.Context, f Filter) (int64, error) {
	return int64(len(r.matching(f))), nil
}

// matching returns events satisfying f, newest first. Ties keep the most
// recently inserted first.
func (r *MemoryRepo) matching(f Filter) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		if f.Matches(r.events[i]) {
			out = append(out, cloneEvent(r.events[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

func (r *MemoryRepo) Summary(_ context.Context, start, end time.Time) ([]SummaryRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type acc struct {
		row     SummaryRow
		actors  map[string]struct{}
		riskSum int64
	}
	byType := map[EventType]*acc{}
	for _, e := range r.events {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		a := byType[e.EventType]
		if a == nil {
			a = &acc{row: SummaryRow{EventType: e.EventType}, actors: map[string]struct{}{}}
			byType[e.EventType] = a
		}
		a.row.TotalCount++
		if e.ActorID != "" {
			a.actors[e.ActorID] = struct{}{}
		}
		if e.Risk() >= HighRiskThreshold {
			a.row.HighRiskCount++
		}
		if e.Severity == SeverityCritical {
			a.row.CriticalCount++
		}
		a.riskSum += int64(e.Risk())
	}

	out := make([]SummaryRow, 0, len(byType))
	for _, a := range byType {
		a.row.UniqueActors = int64(len(a.actors))
		a.row.AvgRiskScore = float64(a.riskSum) / float64(a.row.TotalCount)
		out = append(out, a.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCount != out[j].TotalCount {
			return out[i].TotalCount > out[j].TotalCount
		}
		return out[i].EventType < out[j].EventType
	})
	return out, nil
}

func (r *MemoryRepo) DeleteExpired(_ context.Context, now time.Time, skip []EventType) (int64, error) {
	return r.deleteWhere(func(e Event) bool {
		return e.ExpiresAt != nil && !e.ExpiresAt.After(now) && !slices.Contains(skip, e.EventType)
	}), nil
}

func (r *MemoryRepo) DeleteOlderThan(_ context.Context, eventType EventType, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(e Event) bool {
		return e.EventType == eventType && e.OccurredAt.Before(cutoff)
	}), nil
}

func (r *MemoryRepo) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return r.deleteWhere(func(e Event) bool {
		_, ok := set[e.ID]
		return ok
	}), nil
}

func (r *MemoryRepo) ForEachOlderThan(ctx context.Context, eventType EventType, cutoff time.Time, fn func(Event) error) error {
	r.mu.RLock()
	matched := make([]Event, 0)
	for _, e := range r.events {
		if e.EventType == eventType && e.OccurredAt.Before(cutoff) {
			matched = append(matched, cloneEvent(e))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	for _, e := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.events {
		if !e.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) deleteWhere(pred func(Event) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.events)
	r.events = slices.DeleteFunc(r.events, pred)
	return int64(before - len(r.events))
}

func cloneEvent(e Event) Event {
	e.OldValues = maps.Clone(e.OldValues)
	e.NewValues = maps.Clone(e.NewValues)
	e.Metadata = maps.Clone(e.Metadata)
	e.ComplianceFlags = slices.Clone(e.ComplianceFlags)
	e.SecurityFlags = slices.Clone(e.SecurityFlags)
	if e.RiskScore != nil {
		e.RiskScore = Score(*e.RiskScore)
	}
	return e
}
