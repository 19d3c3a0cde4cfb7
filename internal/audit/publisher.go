package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store is the append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByExternalID(ctx context.Context, externalID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and
// best-effort: a failing sink is logged and swallowed so the audit path can
// never abort the user-facing response.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records an event. Returns nothing: audit failures are internal-only.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = NewEventID(event.Timestamp)
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"kind", event.Kind,
			"external_id", event.ExternalID,
			"error", err,
		)
	}
}

// List returns the events recorded for an external identity, newest last.
func (p *Publisher) List(ctx context.Context, externalID string) ([]Event, error) {
	return p.store.ListByExternalID(ctx, externalID)
}
