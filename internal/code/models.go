// Package code implements the verification code lifecycle: issuance,
// redemption and administrative control. A code carries the role, tier and
// namespace grant that redemption stamps onto a principal.
package code

import (
	"time"

	"askgate/internal/access"
	dErrors "askgate/pkg/domain-errors"
)

// Status is the code lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusUsed     Status = "used"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired, StatusDisabled:
		return true
	}
	return false
}

// Match fields a code may require the redeemer to present.
const (
	MatchFullName   = "full_name"
	MatchEmployeeID = "employee_id"
	MatchEmail      = "email"
	MatchPrivateID  = "private_id"
)

// Code is a redeemable verification code. Value is the human-entered string;
// the grant fields (Role, Tier, Department, Namespace) are copied to the
// principal on redemption.
type Code struct {
	ID           string
	Value        string
	Status       Status
	MaxUses      int
	CurrentUses  int
	ExpiresAt    *time.Time
	Role         access.Role
	Tier         access.Tier
	Department   string
	Namespace    string
	CredentialID string
	RequireMatch bool
	MatchFields  []string
	UsedBy       []string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Exhausted reports whether the code has no redemptions left.
func (c Code) Exhausted() bool {
	return c.MaxUses > 0 && c.CurrentUses >= c.MaxUses
}

// ExpiredAt reports whether the code's validity window has passed at t.
func (c Code) ExpiredAt(t time.Time) bool {
	return c.ExpiresAt != nil && t.After(*c.ExpiresAt)
}

// IssueInput describes a code to mint.
type IssueInput struct {
	Role         access.Role
	Tier         access.Tier
	Department   string
	Namespace    string
	MaxUses      int
	ExpiresAt    *time.Time
	CredentialID string
	RequireMatch bool
	MatchFields  []string
	// Credential, when set, imports a credential record inline and binds the
	// minted code to it.
	Credential *InlineCredential
	CreatedBy  string
}

// InlineCredential is the minimal credential payload accepted at issuance so
// operators can mint a bound code in one call.
type InlineCredential struct {
	EmployeeID string
	FullName   string
	Email      string
	Department string
	Position   string
	PrivateID  string
}

// Validate enforces the issuance contract.
func (in IssueInput) Validate() error {
	if !in.Role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "role is required")
	}
	if !in.Tier.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "tier is required")
	}
	if in.MaxUses < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max_uses must be positive")
	}
	if in.CredentialID != "" && in.Credential != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "credential_id and credential are mutually exclusive")
	}
	for _, field := range in.MatchFields {
		switch field {
		case MatchFullName, MatchEmployeeID, MatchEmail, MatchPrivateID:
		default:
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown match field %q", field)
		}
	}
	return nil
}

// RedeemInput is a redemption attempt. Identity carries the redeemer's
// answers to the code's match fields.
type RedeemInput struct {
	Value      string
	ExternalID string
	Identity   map[string]string
}

// Grant is what a successful redemption confers on the principal.
type Grant struct {
	Role         access.Role
	Tier         access.Tier
	Department   string
	Namespace    string
	CredentialID string
}

// RedeemResult reports a successful redemption.
type RedeemResult struct {
	CodeID   string
	Grant    Grant
	UsesLeft int // -1 when unlimited
}

// ListFilter narrows administrative code listings.
type ListFilter struct {
	Status    Status
	CreatedBy string
	Limit     int
}

// Stats summarizes the code population.
type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Used        int `json:"used"`
	Expired     int `json:"expired"`
	Disabled    int `json:"disabled"`
	Redemptions int `json:"redemptions"`
}
