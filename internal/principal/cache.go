package principal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"askgate/internal/access"
	platformredis "askgate/internal/platform/redis"
)

const (
	cacheKeyPrefix     = "askgate:principal:"
	fallbackProfileTTL = 5 * time.Minute
)

// CachedStore layers a Redis read-through cache over a durable store. Cache
// failures degrade to the durable store; they never fail a lookup. Writes
// invalidate so the webhook path reads its own writes. Contact touches are
// the exception: they fire on every message, and a stale LastContactAt is
// harmless, so they do not evict.
type CachedStore struct {
	Store
	cache  *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps store with a cache holding entries for ttl. A nil cache
// client returns the store unchanged, so callers need no cache-off branch; a
// non-positive ttl falls back to a conservative default.
func NewCachedStore(store Store, cache *platformredis.Client, ttl time.Duration, logger *slog.Logger) Store {
	if cache == nil {
		return store
	}
	if ttl <= 0 {
		ttl = fallbackProfileTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: cache, ttl: ttl, logger: logger}
}

// cachedProfile is the wire form stored in Redis.
type cachedProfile struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"external_id"`
	DisplayName    string    `json:"display_name"`
	Role           string    `json:"role"`
	Tier           string    `json:"tier"`
	Department     string    `json:"department"`
	Namespace      string    `json:"namespace"`
	CredentialID   string    `json:"credential_id"`
	FirstContactAt time.Time `json:"first_contact_at"`
	LastContactAt  time.Time `json:"last_contact_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *CachedStore) FindByExternalID(ctx context.Context, externalID string) (Profile, error) {
	key := cacheKeyPrefix + externalID
	if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
		if p, ok := s.decode(ctx, raw); ok {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "principal cache read failed", "external_id", externalID, "error", err)
	}

	p, err := s.Store.FindByExternalID(ctx, externalID)
	if err != nil {
		return Profile{}, err
	}
	s.fill(ctx, key, p)
	return p, nil
}

func (s *CachedStore) Update(ctx context.Context, externalID string, patch UpdateInput) (Profile, error) {
	p, err := s.Store.Update(ctx, externalID, patch)
	if err != nil {
		return Profile{}, err
	}
	s.invalidate(ctx, externalID)
	return p, nil
}

func (s *CachedStore) SetNamespace(ctx context.Context, externalID, namespace string) (Profile, error) {
	p, err := s.Store.SetNamespace(ctx, externalID, namespace)
	if err != nil {
		return Profile{}, err
	}
	s.invalidate(ctx, externalID)
	return p, nil
}

func (s *CachedStore) decode(ctx context.Context, raw string) (Profile, bool) {
	var cp cachedProfile
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		s.logger.WarnContext(ctx, "principal cache entry corrupt", "error", err)
		return Profile{}, false
	}
	p, err := cp.toProfile()
	if err != nil {
		s.logger.WarnContext(ctx, "principal cache entry corrupt", "error", err)
		return Profile{}, false
	}
	return p, true
}

func (s *CachedStore) fill(ctx context.Context, key string, p Profile) {
	raw, err := json.Marshal(fromProfile(p))
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "principal cache fill failed", "external_id", p.ExternalID, "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, externalID string) {
	if err := s.cache.Del(ctx, cacheKeyPrefix+externalID).Err(); err != nil {
		s.logger.WarnContext(ctx, "principal cache invalidation failed", "external_id", externalID, "error", err)
	}
}

func fromProfile(p Profile) cachedProfile {
	return cachedProfile{
		ID:             p.ID,
		ExternalID:     p.ExternalID,
		DisplayName:    p.DisplayName,
		Role:           p.Role.String(),
		Tier:           p.Tier.String(),
		Department:     p.Department,
		Namespace:      p.Namespace,
		CredentialID:   p.CredentialID,
		FirstContactAt: p.FirstContactAt,
		LastContactAt:  p.LastContactAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (cp cachedProfile) toProfile() (Profile, error) {
	role, err := access.ParseRole(cp.Role)
	if err != nil {
		return Profile{}, err
	}
	tier, err := access.ParseTier(cp.Tier)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:             cp.ID,
		ExternalID:     cp.ExternalID,
		DisplayName:    cp.DisplayName,
		Role:           role,
		Tier:           tier,
		Department:     cp.Department,
		Namespace:      cp.Namespace,
		CredentialID:   cp.CredentialID,
		FirstContactAt: cp.FirstContactAt,
		LastContactAt:  cp.LastContactAt,
		CreatedAt:      cp.CreatedAt,
		UpdatedAt:      cp.UpdatedAt,
	}, nil
}
