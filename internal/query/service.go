package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"askgate/internal/audit"
	"askgate/internal/platform/metrics"
	dErrors "askgate/pkg/domain-errors"
)

const defaultTopK = 5

// Service answers questions. It never exceeds the configured answer deadline:
// slow completions are deferred, kept warm, and served on the user's retry.
type Service struct {
	retriever Retriever
	completer Completer
	log       LogStore
	timeout   time.Duration
	topK      int
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]string // external id -> finished deferred answer
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

func WithTopK(topK int) Option {
	return func(s *Service) {
		if topK > 0 {
			s.topK = topK
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the query service. Retriever, completer and log are
// mandatory; timeout bounds the synchronous answer window.
func NewService(retriever Retriever, completer Completer, log LogStore, timeout time.Duration, opts ...Option) (*Service, error) {
	if retriever == nil {
		return nil, errors.New("query: retriever is required")
	}
	if completer == nil {
		return nil, errors.New("query: completer is required")
	}
	if log == nil {
		return nil, errors.New("query: log store is required")
	}
	if timeout <= 0 {
		return nil, errors.New("query: timeout must be positive")
	}
	s := &Service{
		retriever: retriever,
		completer: completer,
		log:       log,
		timeout:   timeout,
		topK:      defaultTopK,
		logger:    slog.Default(),
		now:       time.Now,
		pending:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Answer resolves the question within the deadline or defers it. A "/" prefix
// addresses the principal's private namespace exclusively.
func (s *Service) Answer(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "question is required")
	}

	namespaces := req.Namespaces
	if strings.HasPrefix(question, "/") {
		if req.PrivateNamespace == "" {
			s.denied(ctx, req, "no_private_namespace")
			return Result{}, dErrors.New(dErrors.CodeForbidden, "no private namespace is assigned")
		}
		namespaces = []string{req.PrivateNamespace}
		question = strings.TrimSpace(strings.TrimPrefix(question, "/"))
		if question == "" {
			return Result{}, dErrors.New(dErrors.CodeInvalidInput, "question is required")
		}
	}
	if len(namespaces) == 0 {
		s.denied(ctx, req, "no_namespace")
		return Result{}, dErrors.New(dErrors.CodeForbidden, "no namespaces are accessible")
	}

	start := s.now()
	type outcome struct {
		text    string
		sources []Document
		err     error
	}
	done := make(chan outcome, 1)

	// The work keeps running past the deadline so a deferred answer is ready
	// when the user retries.
	bg := context.WithoutCancel(ctx)
	go func() {
		docs, err := s.retriever.Search(bg, question, namespaces, s.topK)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		text, err := s.completer.Complete(bg, question, docs)
		done <- outcome{text: text, sources: docs, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		latency := time.Since(start).Milliseconds()
		if out.err != nil {
			s.logAsync(bg, req, namespaces, "", StatusFailed, latency)
			s.logger.ErrorContext(ctx, "query failed",
				"external_id", req.ExternalID, "error", out.err)
			return Result{}, dErrors.Wrap(out.err, dErrors.CodeUnavailable, "answering failed")
		}

		s.logAsync(bg, req, namespaces, out.text, StatusAnswered, latency)
		s.emit(ctx, audit.Event{
			Kind:        audit.KindQueryAnswered,
			ExternalID:  req.ExternalID,
			PrincipalID: req.PrincipalID,
			Result:      "ok",
		})
		return Result{Text: out.text, Namespaces: namespaces, Sources: out.sources}, nil

	case <-timer.C:
		if s.metrics != nil {
			s.metrics.DeferredReplies.Inc()
		}
		s.emit(ctx, audit.Event{
			Kind:        audit.KindQueryDeferred,
			ExternalID:  req.ExternalID,
			PrincipalID: req.PrincipalID,
			Result:      "deferred",
		})
		s.logger.InfoContext(ctx, "answer deferred",
			"external_id", req.ExternalID,
			"timeout_ms", s.timeout.Milliseconds(),
		)
		s.logAsync(bg, req, namespaces, "", StatusDeferred, s.timeout.Milliseconds())

		// Park the eventual answer for the retry.
		go func() {
			out := <-done
			if out.err != nil {
				s.logger.ErrorContext(bg, "deferred answer failed",
					"external_id", req.ExternalID, "error", out.err)
				return
			}
			s.mu.Lock()
			s.pending[req.ExternalID] = out.text
			s.mu.Unlock()
		}()

		return Result{Deferred: true, Namespaces: namespaces}, nil
	}
}

// PendingAnswer pops the finished deferred answer for an external identity.
func (s *Service) PendingAnswer(externalID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.pending[externalID]
	if ok {
		delete(s.pending, externalID)
	}
	return text, ok
}

// History lists a principal's recent queries, newest first.
func (s *Service) History(ctx context.Context, principalID string, limit int) ([]Record, error) {
	records, err := s.log.ListByPrincipal(ctx, principalID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list query history")
	}
	return records, nil
}

// logAsync appends to the query log off the hot path. The webhook reply never
// waits for the log write.
func (s *Service) logAsync(ctx context.Context, req Request, namespaces []string, answer, status string, latencyMS int64) {
	rec := Record{
		ID:          uuid.NewString(),
		PrincipalID: req.PrincipalID,
		ExternalID:  req.ExternalID,
		Question:    req.Question,
		Namespaces:  namespaces,
		Answer:      answer,
		Status:      status,
		LatencyMS:   latencyMS,
		CreatedAt:   s.now(),
	}
	go func() {
		if err := s.log.Append(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "query log append failed",
				"principal_id", rec.PrincipalID, "error", err)
		}
	}()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}

// denied records a refused query: the denial counter plus an audit event.
func (s *Service) denied(ctx context.Context, req Request, reason string) {
	if s.metrics != nil {
		s.metrics.AccessDenials.WithLabelValues(reason).Inc()
	}
	s.emit(ctx, audit.Event{
		Kind:        audit.KindAccessDenied,
		ExternalID:  req.ExternalID,
		PrincipalID: req.PrincipalID,
		Result:      "denied",
		Reason:      reason,
	})
}
