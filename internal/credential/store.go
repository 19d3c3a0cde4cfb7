package credential

import "context"

// Store is interface-driven to keep the domain logic testable and to allow
// swapping in-memory and PostgreSQL persistence without rewiring services.
type Store interface {
	// Upsert inserts or, when a record with the same employee id exists,
	// updates it in place. Idempotency is keyed on EmployeeID.
	Upsert(ctx context.Context, cred Credential) (Credential, error)
	FindByID(ctx context.Context, id string) (Credential, error)
	FindByEmail(ctx context.Context, email string) (Credential, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (Credential, error)
	Update(ctx context.Context, id string, patch UpdateInput) (Credential, error)
	Stats(ctx context.Context) (Stats, error)
}
