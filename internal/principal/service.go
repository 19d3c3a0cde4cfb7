package principal

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"askgate/internal/access"
	"askgate/internal/audit"
	"askgate/internal/platform/metrics"
	dErrors "askgate/pkg/domain-errors"
	"askgate/pkg/platform/sentinel"
)

// Service implements profile lifecycle operations.
type Service struct {
	store   Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the principal service. The store is mandatory.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("principal: store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create binds an external identity to the grant a code redemption produced.
// An already-bound identity is a conflict; the caller decides whether that
// ends the flow or is reported back to the user.
func (s *Service) Create(ctx context.Context, in CreateInput) (Profile, error) {
	if in.ExternalID == "" {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "external id is required")
	}
	if !in.Role.IsValid() || !in.Tier.IsValid() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "role and tier are required")
	}

	now := s.now()
	p := Profile{
		ID:             uuid.NewString(),
		ExternalID:     in.ExternalID,
		DisplayName:    in.DisplayName,
		Role:           in.Role,
		Tier:           in.Tier,
		Department:     in.Department,
		Namespace:      in.Namespace,
		CredentialID:   in.CredentialID,
		FirstContactAt: now,
		LastContactAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.store.Create(ctx, p)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Profile{}, dErrors.New(dErrors.CodeConflict, "identity is already verified")
		}
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "store principal")
	}

	if s.metrics != nil {
		s.metrics.PrincipalsCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		Kind:        audit.KindPrincipalCreated,
		ExternalID:  created.ExternalID,
		PrincipalID: created.ID,
		Result:      "ok",
		Detail: map[string]string{
			"role": created.Role.String(),
			"tier": created.Tier.String(),
		},
	})
	s.logger.InfoContext(ctx, "principal created",
		"principal_id", created.ID,
		"external_id", created.ExternalID,
		"role", created.Role.String(),
		"tier", created.Tier.String(),
	)
	return created, nil
}

// Find resolves a profile by external identity.
func (s *Service) Find(ctx context.Context, externalID string) (Profile, error) {
	p, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Profile{}, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "load principal")
	}
	return p, nil
}

// Update applies an administrative grant change.
func (s *Service) Update(ctx context.Context, externalID string, patch UpdateInput) (Profile, error) {
	if patch.Role != nil && !patch.Role.IsValid() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	if patch.Tier != nil && !patch.Tier.IsValid() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "unknown tier")
	}

	p, err := s.store.Update(ctx, externalID, patch)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Profile{}, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "update principal")
	}

	s.emit(ctx, audit.Event{
		Kind:        audit.KindPrincipalUpdated,
		ExternalID:  p.ExternalID,
		PrincipalID: p.ID,
		Result:      "ok",
	})
	s.logger.InfoContext(ctx, "principal updated", "external_id", externalID)
	return p, nil
}

// RepairNamespace rewrites a profile's namespace. This is the only path that
// mutates the namespace and it is always audited with the before/after pair.
func (s *Service) RepairNamespace(ctx context.Context, externalID, namespace, operatorID string) (Profile, error) {
	if namespace == "" {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "namespace is required")
	}

	before, err := s.Find(ctx, externalID)
	if err != nil {
		return Profile{}, err
	}

	p, err := s.store.SetNamespace(ctx, externalID, namespace)
	if err != nil {
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "set namespace")
	}

	s.emit(ctx, audit.Event{
		Kind:        audit.KindNamespaceRepaired,
		ExternalID:  externalID,
		PrincipalID: p.ID,
		Result:      "ok",
		Detail: map[string]string{
			"operator": operatorID,
			"from":     before.Namespace,
			"to":       namespace,
		},
	})
	s.logger.InfoContext(ctx, "principal namespace repaired",
		"external_id", externalID,
		"operator_id", operatorID,
		"from", before.Namespace,
		"to", namespace,
	)
	return p, nil
}

// Touch advances the last-contact stamp; missing profiles are ignored because
// anonymous users also talk to the webhook.
func (s *Service) Touch(ctx context.Context, externalID string) {
	if err := s.store.TouchContact(ctx, externalID, s.now()); err != nil &&
		!errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "principal contact touch failed",
			"external_id", externalID, "error", err)
	}
}

// Namespaces lists the retrieval namespaces the profile may search.
func (s *Service) Namespaces(p Profile) []string {
	namespaces := access.Namespaces(p.AccessProfile())
	if p.Namespace != "" && !slices.Contains(namespaces, p.Namespace) {
		namespaces = append(namespaces, p.Namespace)
	}
	return namespaces
}

// Stats reports the principal population.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "principal stats")
	}
	return stats, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}
