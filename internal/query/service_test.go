package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askgate/internal/platform/metrics"
	dErrors "askgate/pkg/domain-errors"
)

// fakeRetriever returns canned documents and records the namespaces it saw.
type fakeRetriever struct {
	mu         sync.Mutex
	namespaces [][]string
	docs       []Document
	err        error
}

func (f *fakeRetriever) Search(_ context.Context, _ string, namespaces []string, _ int) ([]Document, error) {
	f.mu.Lock()
	f.namespaces = append(f.namespaces, namespaces)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeRetriever) seen() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.namespaces
}

// fakeCompleter answers after an optional delay.
type fakeCompleter struct {
	answer string
	delay  time.Duration
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, _ string, _ []Document) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.answer, f.err
}

func newTestService(t *testing.T, retriever *fakeRetriever, completer *fakeCompleter, timeout time.Duration) (*Service, *InMemoryLogStore) {
	t.Helper()
	log := NewInMemoryLogStore()
	svc, err := NewService(retriever, completer, log, timeout)
	require.NoError(t, err)
	return svc, log
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("answers within the deadline", func(t *testing.T) {
		retriever := &fakeRetriever{docs: []Document{{ID: "d1", Namespace: "public"}}}
		completer := &fakeCompleter{answer: "42"}
		svc, log := newTestService(t, retriever, completer, time.Second)

		result, err := svc.Answer(ctx, Request{
			PrincipalID: "p1",
			ExternalID:  "chat-1",
			Question:    "what is the answer?",
			Namespaces:  []string{"public", "basic"},
		})
		require.NoError(t, err)
		assert.False(t, result.Deferred)
		assert.Equal(t, "42", result.Text)
		assert.Len(t, result.Sources, 1)

		require.Eventually(t, func() bool {
			n, err := log.CountSince(ctx, "p1", time.Time{})
			return err == nil && n == 1
		}, time.Second, 10*time.Millisecond, "answer must be logged")
	})

	t.Run("passes exactly the allowed namespaces to retrieval", func(t *testing.T) {
		retriever := &fakeRetriever{}
		svc, _ := newTestService(t, retriever, &fakeCompleter{answer: "ok"}, time.Second)

		_, err := svc.Answer(ctx, Request{
			PrincipalID: "p2",
			ExternalID:  "chat-2",
			Question:    "q",
			Namespaces:  []string{"public", "dept_finance"},
		})
		require.NoError(t, err)

		seen := retriever.seen()
		require.Len(t, seen, 1)
		assert.Equal(t, []string{"public", "dept_finance"}, seen[0])
	})

	t.Run("slash prefix restricts to the private namespace", func(t *testing.T) {
		retriever := &fakeRetriever{}
		svc, _ := newTestService(t, retriever, &fakeCompleter{answer: "ok"}, time.Second)

		_, err := svc.Answer(ctx, Request{
			PrincipalID:      "p3",
			ExternalID:       "chat-3",
			Question:         "/what did my team decide?",
			Namespaces:       []string{"public", "basic"},
			PrivateNamespace: "dept_engineering",
		})
		require.NoError(t, err)

		seen := retriever.seen()
		require.Len(t, seen, 1)
		assert.Equal(t, []string{"dept_engineering"}, seen[0])
	})

	t.Run("slash prefix without a private namespace is forbidden", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeRetriever{}, &fakeCompleter{answer: "ok"}, time.Second)

		_, err := svc.Answer(ctx, Request{
			PrincipalID: "p4",
			ExternalID:  "chat-4",
			Question:    "/secret",
			Namespaces:  []string{"public"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("no namespaces is forbidden", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeRetriever{}, &fakeCompleter{answer: "ok"}, time.Second)

		_, err := svc.Answer(ctx, Request{PrincipalID: "p5", ExternalID: "c", Question: "q"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("refused queries increment the denial counter by reason", func(t *testing.T) {
		m := metrics.New()
		log := NewInMemoryLogStore()
		svc, err := NewService(&fakeRetriever{}, &fakeCompleter{answer: "ok"}, log, time.Second, WithMetrics(m))
		require.NoError(t, err)

		_, err = svc.Answer(ctx, Request{PrincipalID: "p8", ExternalID: "c", Question: "q"})
		require.Error(t, err)
		_, err = svc.Answer(ctx, Request{
			PrincipalID: "p8", ExternalID: "c", Question: "/secret",
			Namespaces: []string{"public"},
		})
		require.Error(t, err)

		assert.Equal(t, 1.0, promtestutil.ToFloat64(m.AccessDenials.WithLabelValues("no_namespace")))
		assert.Equal(t, 1.0, promtestutil.ToFloat64(m.AccessDenials.WithLabelValues("no_private_namespace")))
	})

	t.Run("retrieval failure is unavailable", func(t *testing.T) {
		retriever := &fakeRetriever{err: errors.New("index down")}
		svc, _ := newTestService(t, retriever, &fakeCompleter{answer: "ok"}, time.Second)

		_, err := svc.Answer(ctx, Request{
			PrincipalID: "p6", ExternalID: "c", Question: "q",
			Namespaces: []string{"public"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestAnswerDeferred(t *testing.T) {
	ctx := context.Background()
	retriever := &fakeRetriever{}
	completer := &fakeCompleter{answer: "slow truth", delay: 150 * time.Millisecond}
	svc, log := newTestService(t, retriever, completer, 30*time.Millisecond)

	result, err := svc.Answer(ctx, Request{
		PrincipalID: "p7",
		ExternalID:  "chat-7",
		Question:    "q",
		Namespaces:  []string{"public"},
	})
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Empty(t, result.Text)

	// The deferred attempt still consumed quota.
	require.Eventually(t, func() bool {
		n, err := log.CountSince(ctx, "p7", time.Time{})
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	// The answer finishes in the background and is served on retry.
	require.Eventually(t, func() bool {
		_, ok := svc.pendingPeek("chat-7")
		return ok
	}, time.Second, 10*time.Millisecond)

	text, ok := svc.PendingAnswer("chat-7")
	require.True(t, ok)
	assert.Equal(t, "slow truth", text)

	// Popped once, gone after.
	_, ok = svc.PendingAnswer("chat-7")
	assert.False(t, ok)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	svc, log := newTestService(t, &fakeRetriever{}, &fakeCompleter{answer: "ok"}, time.Second)

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, Record{
			ID:          fmt.Sprintf("r%d", i),
			PrincipalID: "p1",
			Question:    fmt.Sprintf("q%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, log.Append(ctx, Record{ID: "other", PrincipalID: "p2", CreatedAt: base}))

	records, err := svc.History(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q2", records[0].Question)
	assert.Equal(t, "q1", records[1].Question)
}

// pendingPeek inspects the parked answers without consuming them.
func (s *Service) pendingPeek(externalID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.pending[externalID]
	return text, ok
}
