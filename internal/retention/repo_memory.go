package retention

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"casino-platform/internal/audit"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	policies map[audit.EventType]Policy
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{policies: map[audit.EventType]Policy{}}
}

func (r *MemoryRepo) Upsert(_ context.Context, p Policy) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.policies[p.EventType]; ok {
		p.ID = cur.ID
		p.CreatedAt = cur.CreatedAt
	} else {
		p.ID = uuid.NewString()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = p.UpdatedAt
		}
	}
	r.policies[p.EventType] = p
	return p, nil
}

func (r *MemoryRepo) Get(_ context.Context, eventType audit.EventType) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[eventType]
	if !ok {
		return Policy{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventType < out[j].EventType })
	return out, nil
}

func (r *MemoryRepo) SetEnabled(_ context.Context, eventType audit.EventType, enabled bool, at time.Time) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.policies[eventType]
	if !ok {
		return Policy{}, ErrNotFound
	}
	p.IsEnabled = enabled
	p.UpdatedAt = at
	r.policies[eventType] = p
	return p, nil
}
