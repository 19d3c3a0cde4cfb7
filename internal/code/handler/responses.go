package handler

import (
	"time"

	"askgate/internal/code"
	"askgate/internal/credential"
)

// CodeResponse is the HTTP shape of a verification code.
type CodeResponse struct {
	ID           string     `json:"id"`
	Value        string     `json:"value"`
	Status       string     `json:"status"`
	MaxUses      int        `json:"max_uses"`
	CurrentUses  int        `json:"current_uses"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Role         string     `json:"role"`
	Tier         string     `json:"tier"`
	Department   string     `json:"department,omitempty"`
	Namespace    string     `json:"namespace,omitempty"`
	CredentialID string     `json:"credential_id,omitempty"`
	RequireMatch bool       `json:"require_match"`
	MatchFields  []string   `json:"match_fields,omitempty"`
	UsedBy       []string   `json:"used_by,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FromCode converts a domain code to its HTTP shape.
func FromCode(c code.Code) CodeResponse {
	return CodeResponse{
		ID:           c.ID,
		Value:        c.Value,
		Status:       string(c.Status),
		MaxUses:      c.MaxUses,
		CurrentUses:  c.CurrentUses,
		ExpiresAt:    c.ExpiresAt,
		Role:         c.Role.String(),
		Tier:         c.Tier.String(),
		Department:   c.Department,
		Namespace:    c.Namespace,
		CredentialID: c.CredentialID,
		RequireMatch: c.RequireMatch,
		MatchFields:  c.MatchFields,
		UsedBy:       c.UsedBy,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
	}
}

// ListResponse wraps a code listing.
type ListResponse struct {
	Codes []CodeResponse `json:"codes"`
}

// BulkIssueResponse reports the outcome of a bulk issuance.
type BulkIssueResponse struct {
	Created []CodeResponse         `json:"created"`
	Errors  []credential.BulkError `json:"errors"`
}

// FromBulkResult converts a bulk issuance result to its HTTP shape.
func FromBulkResult(result code.BulkIssueResult) BulkIssueResponse {
	resp := BulkIssueResponse{
		Created: []CodeResponse{},
		Errors:  result.Errors,
	}
	for _, c := range result.Created {
		resp.Created = append(resp.Created, FromCode(c))
	}
	if resp.Errors == nil {
		resp.Errors = []credential.BulkError{}
	}
	return resp
}
