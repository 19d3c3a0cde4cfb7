package code

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"askgate/internal/audit"
	"askgate/internal/credential"
	"askgate/internal/platform/metrics"
	dErrors "askgate/pkg/domain-errors"
	"askgate/pkg/platform/sentinel"
	"askgate/pkg/requestcontext"
)

// Redemption outcome labels for metrics and audit.
const (
	outcomeSuccess   = "success"
	outcomeNotFound  = "not_found"
	outcomeDisabled  = "disabled"
	outcomeExhausted = "exhausted"
	outcomeExpired   = "expired"
	outcomeMismatch  = "identity_mismatch"
	outcomeConflict  = "conflict"
)

// Defaults applied to issuance when the operator leaves fields unset.
type Defaults struct {
	MaxUses  int
	Expiry   time.Duration
	RetryMax int
}

// CredentialReader is the slice of the credential service redemption needs.
type CredentialReader interface {
	Find(ctx context.Context, id string) (credential.Credential, error)
	Create(ctx context.Context, in credential.CreateInput) (credential.Credential, error)
	MarkVerified(ctx context.Context, id string) (credential.Credential, error)
}

// Service implements code issuance and redemption.
type Service struct {
	store       Store
	credentials CredentialReader
	defaults    Defaults
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
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

// WithClock overrides the service clock. Tests use it to cross expiry
// boundaries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the code service. Store and credential reader are
// mandatory; defaults fill unset issuance fields.
func NewService(store Store, credentials CredentialReader, defaults Defaults, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("code: store is required")
	}
	if credentials == nil {
		return nil, errors.New("code: credential reader is required")
	}
	if defaults.MaxUses <= 0 {
		defaults.MaxUses = 1
	}
	if defaults.RetryMax <= 0 {
		defaults.RetryMax = 5
	}
	s := &Service{
		store:       store,
		credentials: credentials,
		defaults:    defaults,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints one code. Unset MaxUses and ExpiresAt fall back to the
// configured defaults; an inline credential is imported and bound first.
func (s *Service) Issue(ctx context.Context, in IssueInput) (Code, error) {
	if err := in.Validate(); err != nil {
		return Code{}, err
	}

	if in.Credential != nil {
		cred, err := s.credentials.Create(ctx, credential.CreateInput{
			EmployeeID: in.Credential.EmployeeID,
			FullName:   in.Credential.FullName,
			Email:      in.Credential.Email,
			Department: in.Credential.Department,
			Position:   in.Credential.Position,
			PrivateID:  in.Credential.PrivateID,
			CreatedBy:  in.CreatedBy,
		})
		if err != nil {
			return Code{}, err
		}
		in.CredentialID = cred.ID
	}

	maxUses := in.MaxUses
	if maxUses == 0 {
		maxUses = s.defaults.MaxUses
	}
	expiresAt := in.ExpiresAt
	if expiresAt == nil && s.defaults.Expiry > 0 {
		t := s.now().Add(s.defaults.Expiry)
		expiresAt = &t
	}

	now := s.now()
	c := Code{
		ID:           uuid.NewString(),
		Status:       StatusActive,
		MaxUses:      maxUses,
		ExpiresAt:    expiresAt,
		Role:         in.Role,
		Tier:         in.Tier,
		Department:   in.Department,
		Namespace:    in.Namespace,
		CredentialID: in.CredentialID,
		RequireMatch: in.RequireMatch,
		MatchFields:  in.MatchFields,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.createUnique(ctx, c)
	if err != nil {
		return Code{}, err
	}

	if s.metrics != nil {
		s.metrics.CodesIssued.Inc()
	}
	s.emit(ctx, audit.Event{
		Kind:   audit.KindCodeIssued,
		Result: "ok",
		Detail: map[string]string{
			"code_id": created.ID,
			"role":    created.Role.String(),
			"tier":    created.Tier.String(),
		},
	})
	s.logger.InfoContext(ctx, "verification code issued",
		"code_id", created.ID,
		"role", created.Role.String(),
		"tier", created.Tier.String(),
		"max_uses", created.MaxUses,
	)
	return created, nil
}

// createUnique retries value generation on collision with an existing active
// code. Collisions are astronomically rare; the bound keeps a store outage
// from looping forever.
func (s *Service) createUnique(ctx context.Context, c Code) (Code, error) {
	for attempt := 0; attempt < s.defaults.RetryMax; attempt++ {
		value, err := generateValue()
		if err != nil {
			return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate code value")
		}

		exists, err := s.store.ActiveValueExists(ctx, value)
		if err != nil {
			return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "check code value")
		}
		if exists {
			continue
		}

		c.Value = value
		created, err := s.store.Create(ctx, c)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "store code")
		}
		return created, nil
	}
	return Code{}, dErrors.New(dErrors.CodeInternal, "could not generate a unique code value")
}

// IssueBulk mints up to the batch ceiling of codes, tolerating per-row
// failures the same way credential import does.
type BulkIssueResult struct {
	Created []Code
	Errors  []credential.BulkError
}

func (s *Service) IssueBulk(ctx context.Context, inputs []IssueInput) (BulkIssueResult, error) {
	if len(inputs) == 0 {
		return BulkIssueResult{}, dErrors.New(dErrors.CodeInvalidInput, "empty issue batch")
	}

	var result BulkIssueResult
	for i, in := range inputs {
		c, err := s.Issue(ctx, in)
		if err != nil {
			result.Errors = append(result.Errors, credential.BulkError{
				Index:   i,
				Message: dErrors.MessageOf(err),
			})
			continue
		}
		result.Created = append(result.Created, c)
	}
	return result, nil
}

// Redeem consumes one use of a code for the given external identity. The
// checks run in a fixed order so callers can surface precise failure reasons:
// existence, lifecycle status, remaining uses, expiry, then identity match.
func (s *Service) Redeem(ctx context.Context, in RedeemInput) (RedeemResult, error) {
	value := NormalizeValue(in.Value)
	if value == "" || in.ExternalID == "" {
		return RedeemResult{}, dErrors.New(dErrors.CodeInvalidInput, "code and external id are required")
	}

	for attempt := 0; attempt < s.defaults.RetryMax; attempt++ {
		c, err := s.store.FindByValue(ctx, value)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return RedeemResult{}, s.fail(ctx, in, outcomeNotFound,
					dErrors.New(dErrors.CodeNotFound, "verification code not found"))
			}
			return RedeemResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load code")
		}

		if err := s.checkRedeemable(ctx, c); err != nil {
			return RedeemResult{}, s.fail(ctx, in, failOutcome(err), err)
		}

		if err := s.checkIdentity(ctx, c, in.Identity); err != nil {
			return RedeemResult{}, s.fail(ctx, in, outcomeMismatch, err)
		}

		consumed, err := s.store.Consume(ctx, c.ID, c.CurrentUses, in.ExternalID, s.now())
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race; re-read and re-evaluate from the top.
			continue
		}
		if err != nil {
			return RedeemResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "consume code")
		}

		if consumed.CredentialID != "" {
			if _, err := s.credentials.MarkVerified(ctx, consumed.CredentialID); err != nil {
				// The redemption already happened; log and move on.
				s.logger.WarnContext(ctx, "credential verification stamp failed",
					"credential_id", consumed.CredentialID, "error", err)
			}
		}

		s.observe(outcomeSuccess)
		s.emit(ctx, audit.Event{
			Kind:       audit.KindVerificationSuccess,
			ExternalID: in.ExternalID,
			Result:     "ok",
			Detail:     map[string]string{"code_id": consumed.ID},
		})
		s.logger.InfoContext(ctx, "verification code redeemed",
			"request_id", requestcontext.RequestID(ctx),
			"code_id", consumed.ID,
			"external_id", in.ExternalID,
		)

		usesLeft := -1
		if consumed.MaxUses > 0 {
			usesLeft = consumed.MaxUses - consumed.CurrentUses
		}
		return RedeemResult{
			CodeID: consumed.ID,
			Grant: Grant{
				Role:         consumed.Role,
				Tier:         consumed.Tier,
				Department:   consumed.Department,
				Namespace:    consumed.Namespace,
				CredentialID: consumed.CredentialID,
			},
			UsesLeft: usesLeft,
		}, nil
	}

	return RedeemResult{}, s.fail(ctx, in, outcomeConflict,
		dErrors.New(dErrors.CodeConflict, "code redemption contention, try again"))
}

// checkRedeemable applies the lifecycle checks in their fixed order.
func (s *Service) checkRedeemable(ctx context.Context, c Code) error {
	switch c.Status {
	case StatusDisabled:
		return dErrors.New(dErrors.CodeDisabled, "verification code has been disabled")
	case StatusUsed:
		return dErrors.New(dErrors.CodeExhausted, "verification code has already been used")
	case StatusExpired:
		return dErrors.New(dErrors.CodeExpired, "verification code has expired")
	}
	if c.Exhausted() {
		return dErrors.New(dErrors.CodeExhausted, "verification code has already been used")
	}
	if c.ExpiredAt(s.now()) {
		// Lazy expiry: stamp the status so listings and stats stay truthful.
		if _, err := s.store.UpdateStatus(ctx, c.ID, StatusExpired); err != nil {
			s.logger.WarnContext(ctx, "expiry stamp failed", "code_id", c.ID, "error", err)
		}
		return dErrors.New(dErrors.CodeExpired, "verification code has expired")
	}
	return nil
}

// checkIdentity verifies the redeemer's answers against the bound credential.
func (s *Service) checkIdentity(ctx context.Context, c Code, identity map[string]string) error {
	fields := c.RequiredFields()
	if len(fields) == 0 {
		return nil
	}

	cred, err := s.credentials.Find(ctx, c.CredentialID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load bound credential")
	}
	for _, field := range fields {
		given := strings.TrimSpace(identity[field])
		if given == "" {
			return dErrors.Newf(dErrors.CodeForbidden, "%s is required for this code", field)
		}
		var ok bool
		switch field {
		case MatchFullName:
			ok = strings.EqualFold(given, cred.FullName)
		case MatchEmployeeID:
			ok = given == cred.EmployeeID
		case MatchEmail:
			ok = strings.EqualFold(given, cred.Email)
		case MatchPrivateID:
			ok = bcrypt.CompareHashAndPassword([]byte(cred.PrivateIDHash), []byte(given)) == nil
		}
		if !ok {
			return dErrors.New(dErrors.CodeForbidden, "identity verification failed")
		}
	}
	return nil
}

// Preview loads a code by value and runs the lifecycle checks without
// consuming a use or checking identity. The conversational flow uses it to
// learn which identity fields to collect before redeeming.
func (s *Service) Preview(ctx context.Context, value string) (Code, error) {
	c, err := s.store.FindByValue(ctx, NormalizeValue(value))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Code{}, dErrors.New(dErrors.CodeNotFound, "verification code not found")
		}
		return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "load code")
	}
	if err := s.checkRedeemable(ctx, c); err != nil {
		return Code{}, err
	}
	return c, nil
}

// RequiredFields lists the identity fields a code demands at redemption.
func (c Code) RequiredFields() []string {
	if !c.RequireMatch || c.CredentialID == "" {
		return nil
	}
	if len(c.MatchFields) == 0 {
		return []string{MatchFullName}
	}
	return c.MatchFields
}

// Disable takes a code out of circulation.
func (s *Service) Disable(ctx context.Context, id string) (Code, error) {
	c, err := s.store.UpdateStatus(ctx, id, StatusDisabled)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Code{}, dErrors.New(dErrors.CodeNotFound, "code not found")
		}
		return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "disable code")
	}

	s.emit(ctx, audit.Event{
		Kind:   audit.KindCodeDisabled,
		Result: "ok",
		Detail: map[string]string{"code_id": id},
	})
	s.logger.InfoContext(ctx, "verification code disabled", "code_id", id)
	return c, nil
}

// Find resolves a code by id.
func (s *Service) Find(ctx context.Context, id string) (Code, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Code{}, dErrors.New(dErrors.CodeNotFound, "code not found")
		}
		return Code{}, dErrors.Wrap(err, dErrors.CodeInternal, "load code")
	}
	return c, nil
}

// List returns codes matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Code, error) {
	codes, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list codes")
	}
	return codes, nil
}

// Stats reports the code population.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "code stats")
	}
	return stats, nil
}

func (s *Service) fail(ctx context.Context, in RedeemInput, outcome string, err error) error {
	s.observe(outcome)
	s.emit(ctx, audit.Event{
		Kind:       audit.KindVerificationAttempt,
		ExternalID: in.ExternalID,
		Result:     "failed",
		Reason:     outcome,
	})
	s.logger.InfoContext(ctx, "verification attempt rejected",
		"request_id", requestcontext.RequestID(ctx),
		"external_id", in.ExternalID,
		"outcome", outcome,
	)
	return err
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.Redemptions.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}

func failOutcome(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeDisabled):
		return outcomeDisabled
	case dErrors.HasCode(err, dErrors.CodeExhausted):
		return outcomeExhausted
	case dErrors.HasCode(err, dErrors.CodeExpired):
		return outcomeExpired
	default:
		return outcomeConflict
	}
}
