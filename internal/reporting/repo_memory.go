package reporting

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	reports map[string]Report
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{reports: map[string]Report{}}
}

func (m *MemoryRepo) Create(_ context.Context, r Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Parameters = maps.Clone(r.Parameters)
	m.reports[r.ID] = r
	return r, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) List(_ context.Context, f ListFilter) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Report, 0, len(m.reports))
	for _, r := range m.reports {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Report{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, r Report, from Status) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.reports[r.ID]
	if !ok {
		return Report{}, ErrNotFound
	}
	if cur.Status != from {
		return Report{}, ErrInvalidTransition
	}
	cur.Status = r.Status
	cur.FileURL = r.FileURL
	cur.Error = r.Error
	cur.GeneratedAt = r.GeneratedAt
	cur.UpdatedAt = r.UpdatedAt
	m.reports[r.ID] = cur
	return cur, nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}
