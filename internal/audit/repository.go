package audit

import (
	"context"
	"time"
)

// Repository persists audit events. Implementations assign Event.ID.
type Repository interface {
	Insert(ctx context.Context, e Event) (string, error)
	Query(ctx context.Context, f Filter) ([]Event, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Summary(ctx context.Context, start, end time.Time) ([]SummaryRow, error)
}

// Purger is the retention side of the event store. Deletion is the only
// mutation audit events ever see.
type Purger interface {
	// DeleteExpired removes events whose expires_at is set and <= now,
	// leaving events of the skipped types in place.
	DeleteExpired(ctx context.Context, now time.Time, skip []EventType) (int64, error)
	// DeleteOlderThan removes events of eventType with occurred_at strictly before cutoff.
	DeleteOlderThan(ctx context.Context, eventType EventType, cutoff time.Time) (int64, error)
	// DeleteByIDs removes exactly the listed events. Unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	// ForEachOlderThan streams the events DeleteOlderThan would remove, oldest first.
	ForEachOlderThan(ctx context.Context, eventType EventType, cutoff time.Time, fn func(Event) error) error
	// CountSince counts events with occurred_at >= since.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
