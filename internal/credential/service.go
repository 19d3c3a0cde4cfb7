package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"askgate/internal/audit"
	"askgate/internal/platform/metrics"
	dErrors "askgate/pkg/domain-errors"
	"askgate/pkg/platform/sentinel"
)

// Service implements administrative credential management: imports, lookups,
// partial updates and lifecycle transitions.
type Service struct {
	store   Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs the credential service. The store is mandatory.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("credential: store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create imports a single credential record. Re-importing an employee id
// updates the existing record in place instead of failing.
func (s *Service) Create(ctx context.Context, in CreateInput) (Credential, error) {
	if err := in.Validate(); err != nil {
		return Credential{}, err
	}

	cred := Credential{
		ID:         uuid.NewString(),
		EmployeeID: in.EmployeeID,
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.Phone,
		Department: in.Department,
		Team:       in.Team,
		Position:   in.Position,
		HireDate:   in.HireDate,
		Location:   in.Location,
		Status:     StatusPending,
		Metadata:   in.Metadata,
		CreatedBy:  in.CreatedBy,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if in.PrivateID != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.PrivateID), bcrypt.DefaultCost)
		if err != nil {
			return Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash private id")
		}
		cred.PrivateIDHash = string(hash)
	}

	saved, err := s.store.Upsert(ctx, cred)
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "store credential")
	}

	s.logger.InfoContext(ctx, "credential imported",
		"credential_id", saved.ID,
		"employee_id", saved.EmployeeID,
	)
	return saved, nil
}

// CreateBulk imports up to the caller-enforced batch of rows. Bad rows are
// reported per index; good rows are still created.
func (s *Service) CreateBulk(ctx context.Context, inputs []CreateInput) (BulkResult, error) {
	if len(inputs) == 0 {
		return BulkResult{}, dErrors.New(dErrors.CodeInvalidInput, "empty import batch")
	}

	var result BulkResult
	for i, in := range inputs {
		cred, err := s.Create(ctx, in)
		if err != nil {
			result.Errors = append(result.Errors, BulkError{
				Index:   i,
				Message: dErrors.MessageOf(err),
			})
			continue
		}
		result.Created = append(result.Created, cred)
	}

	s.logger.InfoContext(ctx, "bulk credential import finished",
		"requested", len(inputs),
		"created", len(result.Created),
		"failed", len(result.Errors),
	)
	return result, nil
}

// Find resolves a credential by id.
func (s *Service) Find(ctx context.Context, id string) (Credential, error) {
	cred, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Credential{}, mapLookupErr(err, "credential")
	}
	return cred, nil
}

// FindByEmail resolves a credential by (case-insensitive) email.
func (s *Service) FindByEmail(ctx context.Context, email string) (Credential, error) {
	if email == "" {
		return Credential{}, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Credential{}, mapLookupErr(err, "credential")
	}
	return cred, nil
}

// FindByEmployeeID resolves a credential by its employee id.
func (s *Service) FindByEmployeeID(ctx context.Context, employeeID string) (Credential, error) {
	if employeeID == "" {
		return Credential{}, dErrors.New(dErrors.CodeInvalidInput, "employee_id is required")
	}
	cred, err := s.store.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		return Credential{}, mapLookupErr(err, "credential")
	}
	return cred, nil
}

// Update applies a partial administrative update.
func (s *Service) Update(ctx context.Context, id string, patch UpdateInput) (Credential, error) {
	if patch.Status != nil && !patch.Status.IsValid() {
		return Credential{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", *patch.Status)
	}

	cred, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return Credential{}, mapLookupErr(err, "credential")
	}

	s.logger.InfoContext(ctx, "credential updated", "credential_id", cred.ID)
	return cred, nil
}

// MarkVerified transitions a credential to verified after a successful code
// redemption. It is called by the verification flow, not by operators.
func (s *Service) MarkVerified(ctx context.Context, id string) (Credential, error) {
	status := StatusVerified
	cred, err := s.store.Update(ctx, id, UpdateInput{Status: &status})
	if err != nil {
		return Credential{}, mapLookupErr(err, "credential")
	}
	return cred, nil
}

// SoftDelete retires a credential without removing the row.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	status := StatusInactive
	if _, err := s.store.Update(ctx, id, UpdateInput{Status: &status}); err != nil {
		return mapLookupErr(err, "credential")
	}
	s.logger.InfoContext(ctx, "credential deactivated", "credential_id", id)
	return nil
}

// Stats reports the credential population by lifecycle state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "credential stats")
	}
	return stats, nil
}

func mapLookupErr(err error, entity string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s not found", entity))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "credential store")
}
