// Package ratelimit enforces per-tier daily query quotas. The counter source
// is the durable query log, so restarts cannot reset anyone's budget.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"askgate/internal/access"
	"askgate/internal/platform/metrics"
)

// Unlimited marks a tier with no daily ceiling.
const Unlimited = -1

// UsageCounter reports how many queries a principal has logged since a point
// in time. The query log implements it.
type UsageCounter interface {
	CountSince(ctx context.Context, principalID string, since time.Time) (int, error)
}

// Result is the outcome of a quota check.
type Result struct {
	Allowed   bool
	Limit     int // Unlimited when the tier has no ceiling
	Used      int
	Remaining int
	ResetAt   time.Time
}

// Checker evaluates daily quotas. Quotas map tiers to their daily ceiling;
// missing tiers are treated as unlimited.
type Checker struct {
	counter UsageCounter
	quotas  map[access.Tier]int
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional checker collaborators.
type Option func(*Checker)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChecker constructs a quota checker.
func NewChecker(counter UsageCounter, quotas map[access.Tier]int, opts ...Option) (*Checker, error) {
	if counter == nil {
		return nil, errors.New("ratelimit: usage counter is required")
	}
	c := &Checker{
		counter: counter,
		quotas:  quotas,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Check evaluates the principal's remaining budget for the current UTC day.
// A failing counter store allows the request through: losing one day of
// quota enforcement is cheaper than refusing every paying user.
func (c *Checker) Check(ctx context.Context, principalID string, tier access.Tier) (Result, error) {
	limit, ok := c.quotas[tier]
	if !ok || limit == Unlimited {
		c.observe("unlimited")
		return Result{Allowed: true, Limit: Unlimited, Remaining: Unlimited}, nil
	}

	dayStart, resetAt := utcDayBounds(c.now())
	used, err := c.counter.CountSince(ctx, principalID, dayStart)
	if err != nil {
		c.logger.ErrorContext(ctx, "quota counter unavailable, failing open",
			"principal_id", principalID,
			"tier", tier.String(),
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RateLimitFailOpen.Inc()
		}
		c.observe("fail_open")
		return Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}, nil
	}

	result := Result{
		Allowed:   used < limit,
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
		ResetAt:   resetAt,
	}
	if result.Allowed {
		c.observe("allowed")
	} else {
		c.observe("denied")
		c.logger.InfoContext(ctx, "daily quota exhausted",
			"principal_id", principalID,
			"tier", tier.String(),
			"limit", limit,
		)
	}
	return result, nil
}

func (c *Checker) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.RateLimitChecks.WithLabelValues(outcome).Inc()
	}
}

// utcDayBounds returns the start of the current UTC calendar day and the
// moment the quota resets.
func utcDayBounds(now time.Time) (start, reset time.Time) {
	utc := now.UTC()
	start = time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
