// Package credential owns the durable record of a real-world principal,
// independent of any verification code. Records are created by administrative
// import and mutated by administrative update or by the verification flow.
package credential

import (
	"time"

	dErrors "askgate/pkg/domain-errors"
)

// Status is the credential lifecycle state. Records are never hard-deleted;
// "deleted" is represented as StatusInactive.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Credential is the durable real-world-person record a principal may be bound
// to. PrivateIDHash holds a bcrypt hash of the national/private identifier;
// the cleartext is never stored.
type Credential struct {
	ID            string
	EmployeeID    string
	FullName      string
	Email         string
	Phone         string
	Department    string
	Team          string
	Position      string
	HireDate      *time.Time
	Location      string
	Status        Status
	PrivateIDHash string
	Metadata      map[string]string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	VerifiedAt    *time.Time
}

// CreateInput is an administrative import row. EmployeeID keys idempotency:
// re-importing the same employee id updates the existing record.
type CreateInput struct {
	EmployeeID string
	FullName   string
	Email      string
	Phone      string
	Department string
	Team       string
	Position   string
	HireDate   *time.Time
	Location   string
	PrivateID  string // hashed before storage, never persisted as-is
	Metadata   map[string]string
	CreatedBy  string
}

// Validate enforces the minimal import contract.
func (in CreateInput) Validate() error {
	if in.EmployeeID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "employee_id is required")
	}
	if in.FullName == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "full_name is required")
	}
	return nil
}

// UpdateInput is a partial administrative update. Nil fields are untouched.
type UpdateInput struct {
	FullName   *string
	Email      *string
	Phone      *string
	Department *string
	Team       *string
	Position   *string
	Location   *string
	Status     *Status
	Metadata   map[string]string
}

// BulkError reports one failed row of a bulk import.
type BulkError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BulkResult carries the created records and the per-row errors. A bulk import
// never fails as a whole because one row is bad.
type BulkResult struct {
	Created []Credential
	Errors  []BulkError
}

// Stats summarizes the credential population by lifecycle state.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Verified  int `json:"verified"`
	Suspended int `json:"suspended"`
	Inactive  int `json:"inactive"`
}
