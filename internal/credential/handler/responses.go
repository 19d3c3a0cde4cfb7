package handler

import (
	"time"

	"askgate/internal/credential"
)

// CredentialResponse is the HTTP shape of a credential record. The private id
// hash is deliberately absent.
type CredentialResponse struct {
	ID         string            `json:"id"`
	EmployeeID string            `json:"employee_id"`
	FullName   string            `json:"full_name"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Department string            `json:"department,omitempty"`
	Team       string            `json:"team,omitempty"`
	Position   string            `json:"position,omitempty"`
	HireDate   string            `json:"hire_date,omitempty"`
	Location   string            `json:"location,omitempty"`
	Status     string            `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	VerifiedAt *time.Time        `json:"verified_at,omitempty"`
}

// FromCredential converts a domain credential to its HTTP shape.
func FromCredential(cred credential.Credential) CredentialResponse {
	resp := CredentialResponse{
		ID:         cred.ID,
		EmployeeID: cred.EmployeeID,
		FullName:   cred.FullName,
		Email:      cred.Email,
		Phone:      cred.Phone,
		Department: cred.Department,
		Team:       cred.Team,
		Position:   cred.Position,
		Location:   cred.Location,
		Status:     string(cred.Status),
		Metadata:   cred.Metadata,
		CreatedAt:  cred.CreatedAt,
		UpdatedAt:  cred.UpdatedAt,
		VerifiedAt: cred.VerifiedAt,
	}
	if cred.HireDate != nil {
		resp.HireDate = cred.HireDate.Format("2006-01-02")
	}
	return resp
}

// BulkCreateResponse reports the outcome of a bulk import.
type BulkCreateResponse struct {
	Created []CredentialResponse   `json:"created"`
	Errors  []credential.BulkError `json:"errors"`
}

// FromBulkResult converts a bulk import result to its HTTP shape.
func FromBulkResult(result credential.BulkResult) BulkCreateResponse {
	resp := BulkCreateResponse{Errors: result.Errors}
	for _, cred := range result.Created {
		resp.Created = append(resp.Created, FromCredential(cred))
	}
	if resp.Errors == nil {
		resp.Errors = []credential.BulkError{}
	}
	if resp.Created == nil {
		resp.Created = []CredentialResponse{}
	}
	return resp
}
