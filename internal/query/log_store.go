package query

import (
	"context"
	"slices"
	"sync"
	"time"
)

// LogStore is the append-only query log. CountSince feeds the daily quota
// checker, so its clock semantics must match the append timestamps.
type LogStore interface {
	Append(ctx context.Context, rec Record) error
	CountSince(ctx context.Context, principalID string, since time.Time) (int, error)
	ListByPrincipal(ctx context.Context, principalID string, limit int) ([]Record, error)
}

// InMemoryLogStore keeps the query log in a slice.
type InMemoryLogStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryLogStore() *InMemoryLogStore {
	return &InMemoryLogStore{}
}

func (s *InMemoryLogStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryLogStore) CountSince(_ context.Context, principalID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, rec := range s.records {
		if rec.PrincipalID == principalID && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryLogStore) ListByPrincipal(_ context.Context, principalID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.PrincipalID == principalID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
