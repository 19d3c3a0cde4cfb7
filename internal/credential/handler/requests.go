package handler

import (
	"strings"
	"time"

	"askgate/internal/credential"
	dErrors "askgate/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /admin/credentials.
type CreateRequest struct {
	EmployeeID string            `json:"employee_id"`
	FullName   string            `json:"full_name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Department string            `json:"department"`
	Team       string            `json:"team"`
	Position   string            `json:"position"`
	HireDate   string            `json:"hire_date"`
	Location   string            `json:"location"`
	PrivateID  string            `json:"private_id"`
	Metadata   map[string]string `json:"metadata"`

	parsedHireDate *time.Time
}

// Validate normalizes and checks the import row.
func (r *CreateRequest) Validate() error {
	r.EmployeeID = strings.TrimSpace(r.EmployeeID)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	if r.EmployeeID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "employee_id is required")
	}
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "full_name is required")
	}
	if r.HireDate != "" {
		parsed, err := time.Parse("2006-01-02", r.HireDate)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "hire_date must be YYYY-MM-DD")
		}
		r.parsedHireDate = &parsed
	}
	return nil
}

// ToInput converts the validated row to a service input.
func (r *CreateRequest) ToInput(createdBy string) credential.CreateInput {
	return credential.CreateInput{
		EmployeeID: r.EmployeeID,
		FullName:   r.FullName,
		Email:      r.Email,
		Phone:      r.Phone,
		Department: r.Department,
		Team:       r.Team,
		Position:   r.Position,
		HireDate:   r.parsedHireDate,
		Location:   r.Location,
		PrivateID:  r.PrivateID,
		Metadata:   r.Metadata,
		CreatedBy:  createdBy,
	}
}

// BulkCreateRequest is the HTTP request body for POST /admin/credentials/bulk.
type BulkCreateRequest struct {
	Credentials []CreateRequest `json:"credentials"`
}

// Validate requires a non-empty batch. The batch ceiling is configured policy
// and enforced by the handler; per-row validation happens during import so one
// bad row does not reject the batch.
func (r *BulkCreateRequest) Validate() error {
	if len(r.Credentials) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credentials is required")
	}
	return nil
}

// UpdateRequest is the HTTP request body for PATCH /admin/credentials/{id}.
type UpdateRequest struct {
	FullName   *string           `json:"full_name"`
	Email      *string           `json:"email"`
	Phone      *string           `json:"phone"`
	Department *string           `json:"department"`
	Team       *string           `json:"team"`
	Position   *string           `json:"position"`
	Location   *string           `json:"location"`
	Status     *string           `json:"status"`
	Metadata   map[string]string `json:"metadata"`

	parsedStatus *credential.Status
}

// Validate checks the patch for unknown status values.
func (r *UpdateRequest) Validate() error {
	if r.Status != nil {
		status := credential.Status(strings.ToLower(strings.TrimSpace(*r.Status)))
		if !status.IsValid() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", *r.Status)
		}
		r.parsedStatus = &status
	}
	return nil
}

// ToInput converts the validated patch to a service input.
func (r *UpdateRequest) ToInput() credential.UpdateInput {
	return credential.UpdateInput{
		FullName:   r.FullName,
		Email:      r.Email,
		Phone:      r.Phone,
		Department: r.Department,
		Team:       r.Team,
		Position:   r.Position,
		Location:   r.Location,
		Status:     r.parsedStatus,
		Metadata:   r.Metadata,
	}
}
