package code

import (
	"context"
	"time"
)

// Store persists verification codes. Consume is the single concurrency-safe
// mutation: implementations must guarantee that for a code with N uses left,
// at most N concurrent Consume calls succeed.
type Store interface {
	Create(ctx context.Context, c Code) (Code, error)
	FindByID(ctx context.Context, id string) (Code, error)
	FindByValue(ctx context.Context, value string) (Code, error)
	List(ctx context.Context, filter ListFilter) ([]Code, error)
	// Consume atomically increments the use count if and only if the code is
	// still active and its current use count equals expectedUses. A lost race
	// returns sentinel.ErrConflict; callers re-read and re-evaluate.
	Consume(ctx context.Context, id string, expectedUses int, usedBy string, at time.Time) (Code, error)
	// UpdateStatus transitions the code lifecycle state.
	UpdateStatus(ctx context.Context, id string, status Status) (Code, error)
	// ActiveValueExists reports whether an active code already carries value.
	ActiveValueExists(ctx context.Context, value string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}
