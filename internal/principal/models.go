// Package principal owns the chat-identity profile: the binding between an
// external conversational identity and its access grant. A profile exists only
// after a successful code redemption.
package principal

import (
	"time"

	"askgate/internal/access"
)

// Profile binds an external chat identity to its role, tier and namespace.
// Namespace is immutable through normal flows; only the administrative repair
// operation may rewrite it.
type Profile struct {
	ID             string
	ExternalID     string
	DisplayName    string
	Role           access.Role
	Tier           access.Tier
	Department     string
	Namespace      string
	CredentialID   string
	FirstContactAt time.Time
	LastContactAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccessProfile projects the grant fields the access engine consumes.
func (p Profile) AccessProfile() access.Profile {
	return access.Profile{
		Role:       p.Role,
		Tier:       p.Tier,
		Department: p.Department,
	}
}

// CreateInput describes a profile to create at onboarding time.
type CreateInput struct {
	ExternalID   string
	DisplayName  string
	Role         access.Role
	Tier         access.Tier
	Department   string
	Namespace    string
	CredentialID string
}

// UpdateInput is a partial administrative update. Namespace is deliberately
// absent; namespace repair is its own audited operation.
type UpdateInput struct {
	DisplayName *string
	Role        *access.Role
	Tier        *access.Tier
	Department  *string
}

// Stats summarizes the principal population by role and tier.
type Stats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
	ByTier map[string]int `json:"by_tier"`
}
