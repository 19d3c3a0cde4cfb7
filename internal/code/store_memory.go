package code

import (
	"context"
	"slices"
	"sync"
	"time"

	"askgate/pkg/platform/sentinel"
)

// InMemoryStore keeps codes in maps behind one mutex. The mutex makes Consume
// naturally atomic; the expectedUses check is still honored so the store
// exercises the same contract as PostgreSQL.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Code
	byValue map[string]string // code value -> id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]Code),
		byValue: make(map[string]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c Code) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byValue[c.Value]; ok {
		return Code{}, sentinel.ErrConflict
	}
	s.byID[c.ID] = c
	s.byValue[c.Value] = c.ID
	return c, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.byID[id]; ok {
		return cloneCode(c), nil
	}
	return Code{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByValue(_ context.Context, value string) (Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byValue[value]; ok {
		return cloneCode(s.byID[id]), nil
	}
	return Code{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Code
	for _, c := range s.byID {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && c.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, cloneCode(c))
	}
	slices.SortFunc(out, func(a, b Code) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Consume(_ context.Context, id string, expectedUses int, usedBy string, at time.Time) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return Code{}, sentinel.ErrNotFound
	}
	if c.Status != StatusActive || c.CurrentUses != expectedUses {
		return Code{}, sentinel.ErrConflict
	}

	c.CurrentUses++
	c.UsedBy = append(c.UsedBy, usedBy)
	c.UpdatedAt = at
	if c.Exhausted() {
		c.Status = StatusUsed
	}
	s.byID[id] = c
	return cloneCode(c), nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id string, status Status) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return Code{}, sentinel.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	s.byID[id] = c
	return cloneCode(c), nil
}

func (s *InMemoryStore) ActiveValueExists(_ context.Context, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byValue[value]
	if !ok {
		return false, nil
	}
	return s.byID[id].Status == StatusActive, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, c := range s.byID {
		stats.Total++
		stats.Redemptions += c.CurrentUses
		switch c.Status {
		case StatusActive:
			stats.Active++
		case StatusUsed:
			stats.Used++
		case StatusExpired:
			stats.Expired++
		case StatusDisabled:
			stats.Disabled++
		}
	}
	return stats, nil
}

func cloneCode(c Code) Code {
	c.MatchFields = slices.Clone(c.MatchFields)
	c.UsedBy = slices.Clone(c.UsedBy)
	return c
}
