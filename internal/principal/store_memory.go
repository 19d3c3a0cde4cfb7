package principal

import (
	"context"
	"sync"
	"time"

	"askgate/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles keyed by external id.
type InMemoryStore struct {
	mu         sync.RWMutex
	byExternal map[string]Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byExternal: make(map[string]Profile)}
}

func (s *InMemoryStore) Create(_ context.Context, p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byExternal[p.ExternalID]; ok {
		return Profile{}, sentinel.ErrConflict
	}
	s.byExternal[p.ExternalID] = p
	return p, nil
}

func (s *InMemoryStore) FindByExternalID(_ context.Context, externalID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.byExternal[externalID]; ok {
		return p, nil
	}
	return Profile{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, externalID string, patch UpdateInput) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byExternal[externalID]
	if !ok {
		return Profile{}, sentinel.ErrNotFound
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.Tier != nil {
		p.Tier = *patch.Tier
	}
	if patch.Department != nil {
		p.Department = *patch.Department
	}
	p.UpdatedAt = time.Now()
	s.byExternal[externalID] = p
	return p, nil
}

func (s *InMemoryStore) SetNamespace(_ context.Context, externalID, namespace string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byExternal[externalID]
	if !ok {
		return Profile{}, sentinel.ErrNotFound
	}
	p.Namespace = namespace
	p.UpdatedAt = time.Now()
	s.byExternal[externalID] = p
	return p, nil
}

func (s *InMemoryStore) TouchContact(_ context.Context, externalID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byExternal[externalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.LastContactAt = at
	s.byExternal[externalID] = p
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		ByRole: make(map[string]int),
		ByTier: make(map[string]int),
	}
	for _, p := range s.byExternal {
		stats.Total++
		stats.ByRole[p.Role.String()]++
		stats.ByTier[p.Tier.String()]++
	}
	return stats, nil
}
