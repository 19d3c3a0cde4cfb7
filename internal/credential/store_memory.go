package credential

import (
	"context"
	"strings"
	"sync"
	"time"

	"askgate/pkg/platform/sentinel"
)

// InMemoryStore keeps the credential book in maps. It intentionally favors
// clarity over performance and mirrors the PostgreSQL store's semantics.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Credential
	byEmp map[string]string // employee id -> record id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[string]Credential),
		byEmp: make(map[string]string),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, cred Credential) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byEmp[cred.EmployeeID]; ok {
		existing := s.byID[existingID]
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
		cred.UpdatedAt = time.Now()
		s.byID[existingID] = cred
		return cred, nil
	}

	s.byID[cred.ID] = cred
	s.byEmp[cred.EmployeeID] = cred.ID
	return cred, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cred, ok := s.byID[id]; ok {
		return cred, nil
	}
	return Credential{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, cred := range s.byID {
		if strings.ToLower(cred.Email) == needle {
			return cred, nil
		}
	}
	return Credential{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByEmployeeID(_ context.Context, employeeID string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byEmp[employeeID]; ok {
		return s.byID[id], nil
	}
	return Credential{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, id string, patch UpdateInput) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byID[id]
	if !ok {
		return Credential{}, sentinel.ErrNotFound
	}

	applyPatch(&cred, patch)
	cred.UpdatedAt = time.Now()
	if patch.Status != nil && *patch.Status == StatusVerified && cred.VerifiedAt == nil {
		now := time.Now()
		cred.VerifiedAt = &now
	}
	s.byID[id] = cred
	return cred, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, cred := range s.byID {
		stats.Total++
		switch cred.Status {
		case StatusPending:
			stats.Pending++
		case StatusVerified:
			stats.Verified++
		case StatusSuspended:
			stats.Suspended++
		case StatusInactive:
			stats.Inactive++
		}
	}
	return stats, nil
}

func applyPatch(cred *Credential, patch UpdateInput) {
	if patch.FullName != nil {
		cred.FullName = *patch.FullName
	}
	if patch.Email != nil {
		cred.Email = *patch.Email
	}
	if patch.Phone != nil {
		cred.Phone = *patch.Phone
	}
	if patch.Department != nil {
		cred.Department = *patch.Department
	}
	if patch.Team != nil {
		cred.Team = *patch.Team
	}
	if patch.Position != nil {
		cred.Position = *patch.Position
	}
	if patch.Location != nil {
		cred.Location = *patch.Location
	}
	if patch.Status != nil {
		cred.Status = *patch.Status
	}
	if patch.Metadata != nil {
		cred.Metadata = patch.Metadata
	}
}
