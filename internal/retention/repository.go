package retention

import (
	"context"
	"errors"
	"time"

	"casino-platform/internal/audit"
)

var ErrNotFound = errors.New("retention policy not found")

type PolicyRepository interface {
	// Upsert inserts or replaces the policy for p.EventType, keeping the
	// original id and created_at.
	Upsert(ctx context.Context, p Policy) (Policy, error)
	Get(ctx context.Context, eventType audit.EventType) (Policy, error)
	List(ctx context.Context) ([]Policy, error)
	SetEnabled(ctx context.Context, eventType audit.EventType, enabled bool, at time.Time) (Policy, error)
}

// Locker serialises cleanup sweeps across replicas. utils.RedisLocker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// EventStream feeds events to fn in order, stopping at the first error.
type EventStream func(fn func(audit.Event) error) error

// Archiver copies events somewhere durable before they are deleted.
type Archiver interface {
	Archive(ctx context.Context, key ArchiveKey, events EventStream) (int64, error)
}
