package principal

import (
	"context"
	"time"
)

// Store persists principal profiles. ExternalID is the unique key used by the
// conversational flow; ID is the internal surrogate.
type Store interface {
	Create(ctx context.Context, p Profile) (Profile, error)
	FindByExternalID(ctx context.Context, externalID string) (Profile, error)
	Update(ctx context.Context, externalID string, patch UpdateInput) (Profile, error)
	// SetNamespace rewrites the namespace. Reserved for administrative repair.
	SetNamespace(ctx context.Context, externalID, namespace string) (Profile, error)
	// TouchContact advances the last-contact stamp.
	TouchContact(ctx context.Context, externalID string, at time.Time) error
	Stats(ctx context.Context) (Stats, error)
}
