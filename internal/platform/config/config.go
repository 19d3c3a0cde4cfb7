// Package config centralizes runtime configuration. Every default that used to
// be a literal at a call site (role, tier, quota, expiry horizon) lives here and
// is injected, so there is exactly one place to change a policy default.
package config

import (
	"os"
	"strconv"
	"time"

	"askgate/internal/access"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	DatabaseURL   string
	KnowledgeURL  string
	Redis         Redis

	// AnswerTimeout bounds the downstream retrieval/completion call. It must
	// stay below the messaging platform's own response ceiling so the webhook
	// can still return a deferred reply in time.
	AnswerTimeout time.Duration

	// WebhookRate throttles the webhook surface (requests/second with burst).
	WebhookRate  float64
	WebhookBurst int

	Defaults Defaults
	Quotas   Quotas
}

// Redis holds cache connection settings. An empty URL disables the cache.
type Redis struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ProfileTTL   time.Duration
}

// Defaults are the policy defaults applied when a request leaves a field unset.
type Defaults struct {
	Role         access.Role
	Tier         access.Tier
	CodeMaxUses  int
	CodeExpiry   time.Duration
	BatchCeiling int
	CodeRetryMax int
}

// Quotas maps a subscription tier to its daily query allowance.
type Quotas struct {
	Daily map[access.Tier]int
}

// UnlimitedQuota is the sentinel for tiers with no daily ceiling.
const UnlimitedQuota = -1

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := envOr("ASKGATE_ADDR", ":8080")

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		KnowledgeURL:  envOr("KNOWLEDGE_URL", "http://localhost:9090"),
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			ProfileTTL:   10 * time.Minute,
		},
		AnswerTimeout: envDurationOr("ANSWER_TIMEOUT", 4500*time.Millisecond),
		WebhookRate:   envFloatOr("WEBHOOK_RATE", 50),
		WebhookBurst:  envIntOr("WEBHOOK_BURST", 100),
		Defaults:      DefaultPolicy(),
		Quotas:        DefaultQuotas(),
	}
}

// DefaultPolicy returns the policy defaults shared by code issuance and
// onboarding when a request does not override them.
func DefaultPolicy() Defaults {
	return Defaults{
		Role:         access.RoleUser,
		Tier:         access.TierFree,
		CodeMaxUses:  1,
		CodeExpiry:   30 * 24 * time.Hour,
		BatchCeiling: 100,
		CodeRetryMax: 5,
	}
}

// DefaultQuotas returns the per-tier daily query allowances.
func DefaultQuotas() Quotas {
	return Quotas{
		Daily: map[access.Tier]int{
			access.TierFree:       10,
			access.TierBasic:      100,
			access.TierPro:        1000,
			access.TierEnterprise: UnlimitedQuota,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
