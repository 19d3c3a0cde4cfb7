package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"askgate/internal/access"
	"askgate/internal/audit"
	"askgate/internal/code"
	"askgate/internal/principal"
	"askgate/internal/query"
	"askgate/internal/ratelimit"
	dErrors "askgate/pkg/domain-errors"
)

// pendingVerification tracks a sender who presented a code that demands
// identity answers. Answers are collected one field per message.
type pendingVerification struct {
	value   string
	fields  []string
	answers map[string]string
}

// Service is the conversational front door. Every path returns a Reply;
// errors escape only when the transport itself should fail.
type Service struct {
	principals *principal.Service
	codes      *code.Service
	limiter    *ratelimit.Checker
	queries    *query.Service
	auditor    *audit.Publisher
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingVerification
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

// NewService constructs the onboarding service. All four collaborators are
// mandatory.
func NewService(principals *principal.Service, codes *code.Service, limiter *ratelimit.Checker, queries *query.Service, opts ...Option) (*Service, error) {
	if principals == nil || codes == nil || limiter == nil || queries == nil {
		return nil, errors.New("onboarding: principals, codes, limiter and queries are required")
	}
	s := &Service{
		principals: principals,
		codes:      codes,
		limiter:    limiter,
		queries:    queries,
		logger:     slog.Default(),
		pending:    make(map[string]*pendingVerification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleMessage routes one chat message through the state machine.
func (s *Service) HandleMessage(ctx context.Context, msg Message) Reply {
	if msg.ExternalID == "" || strings.TrimSpace(msg.Utterance) == "" {
		return Reply{Text: promptVerify}
	}

	p, err := s.principals.Find(ctx, msg.ExternalID)
	switch {
	case err == nil:
		return s.handleAuthorized(ctx, p, msg)
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return s.handleAnonymous(ctx, msg)
	default:
		s.logger.ErrorContext(ctx, "principal lookup failed",
			"external_id", msg.ExternalID, "error", err)
		return Reply{Text: replyUnavailable}
	}
}

// handleAuthorized serves a verified principal: retries, quota, then the
// actual question.
func (s *Service) handleAuthorized(ctx context.Context, p principal.Profile, msg Message) Reply {
	s.principals.Touch(ctx, p.ExternalID)

	utterance := strings.TrimSpace(msg.Utterance)

	// A verified user pasting another code gets told, not re-verified. Their
	// code stays unconsumed.
	if _, ok := code.ExtractValue(utterance); ok {
		return Reply{Text: replyAlreadyVerified}
	}

	if strings.EqualFold(utterance, RetryLabel) {
		if text, ok := s.queries.PendingAnswer(p.ExternalID); ok {
			return Reply{Text: text}
		}
		return Reply{Text: replyNotReady, QuickReplies: []string{RetryLabel}}
	}

	quota, err := s.limiter.Check(ctx, p.ID, p.Tier)
	if err == nil && !quota.Allowed {
		return Reply{Text: replyQuotaExceeded}
	}

	result, err := s.queries.Answer(ctx, query.Request{
		PrincipalID:      p.ID,
		ExternalID:       p.ExternalID,
		Question:         utterance,
		Namespaces:       s.principals.Namespaces(p),
		PrivateNamespace: p.Namespace,
	})
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeForbidden):
			return Reply{Text: dErrors.MessageOf(err)}
		case dErrors.HasCode(err, dErrors.CodeInvalidInput):
			return Reply{Text: dErrors.MessageOf(err)}
		default:
			return Reply{Text: replyUnavailable}
		}
	}
	if result.Deferred {
		return Reply{Text: replyStillThinking, QuickReplies: []string{RetryLabel}}
	}
	return Reply{Text: result.Text}
}

// handleAnonymous walks an unverified sender through code entry and, when the
// code demands it, identity questions.
func (s *Service) handleAnonymous(ctx context.Context, msg Message) Reply {
	if pv := s.takePending(msg.ExternalID); pv != nil {
		return s.collectIdentity(ctx, msg, pv)
	}

	value, ok := code.ExtractValue(msg.Utterance)
	if !ok {
		return Reply{Text: promptVerify}
	}

	c, err := s.codes.Preview(ctx, value)
	if err != nil {
		return Reply{Text: redemptionReply(err)}
	}

	if fields := c.RequiredFields(); len(fields) > 0 {
		s.setPending(msg.ExternalID, &pendingVerification{
			value:   value,
			fields:  fields,
			answers: make(map[string]string),
		})
		return Reply{Text: identityPrompt(fields[0])}
	}

	return s.redeemAndWelcome(ctx, msg, value, nil)
}

// collectIdentity records one answer and either asks the next question or
// attempts redemption.
func (s *Service) collectIdentity(ctx context.Context, msg Message, pv *pendingVerification) Reply {
	answer := strings.TrimSpace(msg.Utterance)
	pv.answers[pv.fields[len(pv.answers)]] = answer

	if len(pv.answers) < len(pv.fields) {
		s.setPending(msg.ExternalID, pv)
		return Reply{Text: identityPrompt(pv.fields[len(pv.answers)])}
	}

	return s.redeemAndWelcome(ctx, msg, pv.value, pv.answers)
}

// redeemAndWelcome consumes the code, creates the profile and composes the
// welcome reply with the sender's new access summary.
func (s *Service) redeemAndWelcome(ctx context.Context, msg Message, value string, identity map[string]string) Reply {
	result, err := s.codes.Redeem(ctx, code.RedeemInput{
		Value:      value,
		ExternalID: msg.ExternalID,
		Identity:   identity,
	})
	if err != nil {
		return Reply{Text: redemptionReply(err)}
	}

	namespace := result.Grant.Namespace
	if namespace == "" && result.Grant.Department != "" {
		namespace = access.DepartmentNamespace(result.Grant.Department)
	}

	p, err := s.principals.Create(ctx, principal.CreateInput{
		ExternalID:   msg.ExternalID,
		DisplayName:  msg.DisplayName,
		Role:         result.Grant.Role,
		Tier:         result.Grant.Tier,
		Department:   result.Grant.Department,
		Namespace:    namespace,
		CredentialID: result.Grant.CredentialID,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return Reply{Text: replyAlreadyVerified}
		}
		s.logger.ErrorContext(ctx, "profile creation failed after redemption",
			"external_id", msg.ExternalID, "error", err)
		return Reply{Text: replyUnavailable}
	}

	return Reply{Text: welcomeText(p)}
}

func (s *Service) takePending(externalID string) *pendingVerification {
	s.mu.Lock()
	defer s.mu.Unlock()
	pv := s.pending[externalID]
	delete(s.pending, externalID)
	return pv
}

func (s *Service) setPending(externalID string, pv *pendingVerification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[externalID] = pv
}

// welcomeText composes the post-verification greeting with what the new
// principal can reach.
func welcomeText(p principal.Profile) string {
	summary := access.Summarize(p.AccessProfile())

	var b strings.Builder
	if p.DisplayName != "" {
		fmt.Fprintf(&b, "Welcome, %s! You're verified.\n", p.DisplayName)
	} else {
		b.WriteString("Welcome! You're verified.\n")
	}
	fmt.Fprintf(&b, "Role: %s / Plan: %s\n", p.Role.String(), p.Tier.String())
	fmt.Fprintf(&b, "You can access content up to the %s level.", summary.MaxLevel.String())
	if p.Namespace != "" {
		fmt.Fprintf(&b, "\nStart a question with \"/\" to search only your team's space (%s).", p.Namespace)
	}
	b.WriteString("\nJust type your question to get started.")
	return b.String()
}

func identityPrompt(field string) string {
	switch field {
	case code.MatchEmployeeID:
		return promptIdentityEmployeeID
	case code.MatchEmail:
		return promptIdentityEmail
	case code.MatchPrivateID:
		return promptIdentityPrivateID
	default:
		return promptIdentityFullName
	}
}

// redemptionReply maps a redemption failure onto user-facing text.
func redemptionReply(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return replyCodeNotFound
	case dErrors.HasCode(err, dErrors.CodeExhausted):
		return replyCodeExhausted
	case dErrors.HasCode(err, dErrors.CodeExpired):
		return replyCodeExpired
	case dErrors.HasCode(err, dErrors.CodeDisabled):
		return replyCodeDisabled
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return replyIdentityFailed
	default:
		return replyUnavailable
	}
}
