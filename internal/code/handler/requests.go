package handler

import (
	"strings"
	"time"

	"askgate/internal/access"
	"askgate/internal/code"
	"askgate/internal/platform/config"
	dErrors "askgate/pkg/domain-errors"
)

// IssueRequest is the HTTP request body for POST /admin/codes. Role and tier
// may be omitted; the handler fills them from configured policy defaults.
type IssueRequest struct {
	Role         string                   `json:"role"`
	Tier         string                   `json:"tier"`
	Department   string                   `json:"department"`
	Namespace    string                   `json:"namespace"`
	MaxUses      int                      `json:"max_uses"`
	ExpiresAt    *time.Time               `json:"expires_at"`
	CredentialID string                   `json:"credential_id"`
	RequireMatch bool                     `json:"require_match"`
	MatchFields  []string                 `json:"match_fields"`
	Credential   *InlineCredentialRequest `json:"credential"`

	parsedRole access.Role
	parsedTier access.Tier
	hasRole    bool
	hasTier    bool
}

// InlineCredentialRequest is the optional credential payload bound at issuance.
type InlineCredentialRequest struct {
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Position   string `json:"position"`
	PrivateID  string `json:"private_id"`
}

// Validate parses the role and tier grants when present.
func (r *IssueRequest) Validate() error {
	if role := strings.TrimSpace(r.Role); role != "" {
		parsed, err := access.ParseRole(role)
		if err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", r.Role)
		}
		r.parsedRole, r.hasRole = parsed, true
	}
	if tier := strings.TrimSpace(r.Tier); tier != "" {
		parsed, err := access.ParseTier(tier)
		if err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown tier %q", r.Tier)
		}
		r.parsedTier, r.hasTier = parsed, true
	}
	if r.MaxUses < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max_uses must be positive")
	}
	return nil
}

// ToInput converts the validated request to a service input, filling omitted
// grant fields from the configured defaults.
func (r *IssueRequest) ToInput(createdBy string, defaults config.Defaults) code.IssueInput {
	role, tier := defaults.Role, defaults.Tier
	if r.hasRole {
		role = r.parsedRole
	}
	if r.hasTier {
		tier = r.parsedTier
	}
	in := code.IssueInput{
		Role:         role,
		Tier:         tier,
		Department:   r.Department,
		Namespace:    r.Namespace,
		MaxUses:      r.MaxUses,
		ExpiresAt:    r.ExpiresAt,
		CredentialID: r.CredentialID,
		RequireMatch: r.RequireMatch,
		MatchFields:  r.MatchFields,
		CreatedBy:    createdBy,
	}
	if r.Credential != nil {
		in.Credential = &code.InlineCredential{
			EmployeeID: r.Credential.EmployeeID,
			FullName:   r.Credential.FullName,
			Email:      r.Credential.Email,
			Department: r.Credential.Department,
			Position:   r.Credential.Position,
			PrivateID:  r.Credential.PrivateID,
		}
	}
	return in
}

// BulkIssueRequest is the HTTP request body for POST /admin/codes/bulk.
type BulkIssueRequest struct {
	Codes []IssueRequest `json:"codes"`
}

// Validate requires a non-empty batch. The batch ceiling is configured policy
// and enforced by the handler.
func (r *BulkIssueRequest) Validate() error {
	if len(r.Codes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "codes is required")
	}
	return nil
}
