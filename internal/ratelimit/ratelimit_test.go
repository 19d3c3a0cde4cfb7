package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askgate/internal/access"
)

// fakeCounter records query timestamps per principal.
type fakeCounter struct {
	mu      sync.Mutex
	queries map[string][]time.Time
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{queries: make(map[string][]time.Time)}
}

func (f *fakeCounter) add(principalID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[principalID] = append(f.queries[principalID], at)
}

func (f *fakeCounter) CountSince(_ context.Context, principalID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int
	for _, at := range f.queries[principalID] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

var testQuotas = map[access.Tier]int{
	access.TierFree:       10,
	access.TierBasic:      100,
	access.TierPro:        1000,
	access.TierEnterprise: Unlimited,
}

func newTestChecker(t *testing.T, counter UsageCounter, opts ...Option) *Checker {
	t.Helper()
	checker, err := NewChecker(counter, testQuotas, opts...)
	require.NoError(t, err)
	return checker
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("free tier allows the tenth and denies the eleventh", func(t *testing.T) {
		counter := newFakeCounter()
		now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
		checker := newTestChecker(t, counter, WithClock(func() time.Time { return now }))

		for i := 0; i < 9; i++ {
			counter.add("p1", now)
		}

		result, err := checker.Check(ctx, "p1", access.TierFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 1, result.Remaining)

		counter.add("p1", now)
		result, err = checker.Check(ctx, "p1", access.TierFree)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
		assert.Equal(t, 10, result.Used)
	})

	t.Run("quota resets at the UTC day boundary", func(t *testing.T) {
		counter := newFakeCounter()
		now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
		checker := newTestChecker(t, counter, WithClock(func() time.Time { return now }))

		for i := 0; i < 10; i++ {
			counter.add("p2", now)
		}
		result, err := checker.Check(ctx, "p2", access.TierFree)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), result.ResetAt)

		// Same counter state, next day.
		now = now.Add(time.Hour)
		result, err = checker.Check(ctx, "p2", access.TierFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 0, result.Used)
	})

	t.Run("enterprise tier short-circuits the counter", func(t *testing.T) {
		counter := newFakeCounter()
		counter.err = errors.New("store down")
		checker := newTestChecker(t, counter)

		result, err := checker.Check(ctx, "p3", access.TierEnterprise)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, Unlimited, result.Limit)
	})

	t.Run("counter failure fails open", func(t *testing.T) {
		counter := newFakeCounter()
		counter.err = errors.New("store down")
		checker := newTestChecker(t, counter)

		result, err := checker.Check(ctx, "p4", access.TierFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 10, result.Limit)
	})

	t.Run("yesterday's queries do not count", func(t *testing.T) {
		counter := newFakeCounter()
		now := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
		checker := newTestChecker(t, counter, WithClock(func() time.Time { return now }))

		counter.add("p5", now.Add(-2*time.Hour)) // 23:00 the day before
		counter.add("p5", now.Add(-30*time.Minute))

		result, err := checker.Check(ctx, "p5", access.TierFree)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Used)
	})
}
