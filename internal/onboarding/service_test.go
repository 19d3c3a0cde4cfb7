package onboarding

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askgate/internal/access"
	"askgate/internal/code"
	"askgate/internal/credential"
	"askgate/internal/principal"
	"askgate/internal/query"
	"askgate/internal/ratelimit"
)

type fixture struct {
	svc        *Service
	codes      *code.Service
	principals *principal.Service
	queryLog   *query.InMemoryLogStore
}

type stubRetriever struct{}

func (stubRetriever) Search(_ context.Context, _ string, namespaces []string, _ int) ([]query.Document, error) {
	return []query.Document{{ID: "doc", Namespace: namespaces[0]}}, nil
}

type stubCompleter struct {
	delay time.Duration
}

func (c stubCompleter) Complete(context.Context, string, []query.Document) (string, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return "the answer", nil
}

func newFixture(t *testing.T, opts ...func(*fixtureConfig)) *fixture {
	t.Helper()
	cfg := &fixtureConfig{
		freeQuota: 10,
		timeout:   time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	creds, err := credential.NewService(credential.NewInMemoryStore())
	require.NoError(t, err)
	codes, err := code.NewService(code.NewInMemoryStore(), creds, code.Defaults{MaxUses: 1, RetryMax: 5})
	require.NoError(t, err)
	principals, err := principal.NewService(principal.NewInMemoryStore())
	require.NoError(t, err)

	queryLog := query.NewInMemoryLogStore()
	queries, err := query.NewService(stubRetriever{}, stubCompleter{delay: cfg.completerDelay}, queryLog, cfg.timeout)
	require.NoError(t, err)

	limiter, err := ratelimit.NewChecker(queryLog, map[access.Tier]int{
		access.TierFree:       cfg.freeQuota,
		access.TierBasic:      100,
		access.TierPro:        1000,
		access.TierEnterprise: ratelimit.Unlimited,
	})
	require.NoError(t, err)

	svc, err := NewService(principals, codes, limiter, queries)
	require.NoError(t, err)

	return &fixture{svc: svc, codes: codes, principals: principals, queryLog: queryLog}
}

type fixtureConfig struct {
	freeQuota      int
	timeout        time.Duration
	completerDelay time.Duration
}

func TestAnonymousFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("greets unknown senders with instructions", func(t *testing.T) {
		f := newFixture(t)
		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u1", Utterance: "hello"})
		assert.Equal(t, promptVerify, reply.Text)
	})

	t.Run("redeeming a code creates a matching profile", func(t *testing.T) {
		f := newFixture(t)
		c, err := f.codes.Issue(ctx, code.IssueInput{
			Role:       access.RoleSenior,
			Tier:       access.TierPro,
			Department: "Engineering",
		})
		require.NoError(t, err)

		reply := f.svc.HandleMessage(ctx, Message{
			ExternalID:  "u2",
			DisplayName: "Jiwoo",
			Utterance:   "my code is " + c.Value,
		})
		assert.Contains(t, reply.Text, "Welcome, Jiwoo")
		assert.Contains(t, reply.Text, "senior")
		assert.Contains(t, reply.Text, "pro")

		p, err := f.principals.Find(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, access.RoleSenior, p.Role)
		assert.Equal(t, access.TierPro, p.Tier)
		assert.Equal(t, "dept_engineering", p.Namespace)

		consumed, err := f.codes.Find(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, code.StatusUsed, consumed.Status)
	})

	t.Run("bad code keeps the sender anonymous", func(t *testing.T) {
		f := newFixture(t)
		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u3", Utterance: "AAA-AAA-AAA-AAA"})
		assert.Equal(t, replyCodeNotFound, reply.Text)

		_, err := f.principals.Find(ctx, "u3")
		require.Error(t, err)
	})
}

func TestIdentityCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.codes.Issue(ctx, code.IssueInput{
		Role: access.RoleManager,
		Tier: access.TierPro,
		Credential: &code.InlineCredential{
			EmployeeID: "EMP-500",
			FullName:   "Park Soyeon",
		},
		RequireMatch: true,
		MatchFields:  []string{code.MatchFullName, code.MatchEmployeeID},
	})
	require.NoError(t, err)

	reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u4", Utterance: c.Value})
	assert.Equal(t, promptIdentityFullName, reply.Text)

	reply = f.svc.HandleMessage(ctx, Message{ExternalID: "u4", Utterance: "Park Soyeon"})
	assert.Equal(t, promptIdentityEmployeeID, reply.Text)

	reply = f.svc.HandleMessage(ctx, Message{ExternalID: "u4", Utterance: "EMP-500"})
	assert.Contains(t, reply.Text, "You're verified")

	p, err := f.principals.Find(ctx, "u4")
	require.NoError(t, err)
	assert.Equal(t, access.RoleManager, p.Role)

	t.Run("wrong answer fails verification and clears state", func(t *testing.T) {
		c2, err := f.codes.Issue(ctx, code.IssueInput{
			Role: access.RoleJunior,
			Tier: access.TierBasic,
			Credential: &code.InlineCredential{
				EmployeeID: "EMP-501",
				FullName:   "Lee Minho",
			},
			RequireMatch: true,
		})
		require.NoError(t, err)

		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u5", Utterance: c2.Value})
		assert.Equal(t, promptIdentityFullName, reply.Text)

		reply = f.svc.HandleMessage(ctx, Message{ExternalID: "u5", Utterance: "Wrong Name"})
		assert.Equal(t, replyIdentityFailed, reply.Text)

		// The code survives the failed attempt.
		unchanged, err := f.codes.Find(ctx, c2.ID)
		require.NoError(t, err)
		assert.Equal(t, code.StatusActive, unchanged.Status)

		// The next message starts over.
		reply = f.svc.HandleMessage(ctx, Message{ExternalID: "u5", Utterance: "hello"})
		assert.Equal(t, promptVerify, reply.Text)
	})
}

func TestAuthorizedFlow(t *testing.T) {
	ctx := context.Background()

	verify := func(t *testing.T, f *fixture, externalID string, tier access.Tier) {
		t.Helper()
		c, err := f.codes.Issue(ctx, code.IssueInput{Role: access.RoleUser, Tier: tier})
		require.NoError(t, err)
		reply := f.svc.HandleMessage(ctx, Message{ExternalID: externalID, Utterance: c.Value})
		require.Contains(t, reply.Text, "verified")
	}

	t.Run("answers questions", func(t *testing.T) {
		f := newFixture(t)
		verify(t, f, "u6", access.TierFree)

		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u6", Utterance: "what is our leave policy?"})
		assert.Equal(t, "the answer", reply.Text)
	})

	t.Run("a second code is refused without being consumed", func(t *testing.T) {
		f := newFixture(t)
		verify(t, f, "u7", access.TierFree)

		c2, err := f.codes.Issue(ctx, code.IssueInput{Role: access.RoleCEO, Tier: access.TierEnterprise})
		require.NoError(t, err)

		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u7", Utterance: c2.Value})
		assert.Equal(t, replyAlreadyVerified, reply.Text)

		unchanged, err := f.codes.Find(ctx, c2.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, unchanged.CurrentUses)
	})

	t.Run("denies the query over quota", func(t *testing.T) {
		f := newFixture(t, func(cfg *fixtureConfig) { cfg.freeQuota = 2 })
		verify(t, f, "u8", access.TierFree)

		for i := 0; i < 2; i++ {
			reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u8", Utterance: "question"})
			require.Equal(t, "the answer", reply.Text)
			waitForLog(t, f, "u8", i+1)
		}

		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u8", Utterance: "one more"})
		assert.Equal(t, replyQuotaExceeded, reply.Text)
	})

	t.Run("slow answers defer with a retry chip", func(t *testing.T) {
		f := newFixture(t, func(cfg *fixtureConfig) {
			cfg.timeout = 20 * time.Millisecond
			cfg.completerDelay = 120 * time.Millisecond
		})
		verify(t, f, "u9", access.TierFree)

		reply := f.svc.HandleMessage(ctx, Message{ExternalID: "u9", Utterance: "hard question"})
		assert.Equal(t, replyStillThinking, reply.Text)
		assert.Equal(t, []string{RetryLabel}, reply.QuickReplies)

		require.Eventually(t, func() bool {
			r := f.svc.HandleMessage(ctx, Message{ExternalID: "u9", Utterance: RetryLabel})
			return r.Text == "the answer"
		}, time.Second, 20*time.Millisecond)
	})
}

func TestRoundTripProperty(t *testing.T) {
	// Every role/tier pair issued must come back verbatim on the profile.
	ctx := context.Background()
	f := newFixture(t)

	for _, role := range access.Roles() {
		for _, tier := range access.Tiers() {
			c, err := f.codes.Issue(ctx, code.IssueInput{Role: role, Tier: tier})
			require.NoError(t, err)

			externalID := "rt-" + role.String() + "-" + tier.String()
			reply := f.svc.HandleMessage(ctx, Message{ExternalID: externalID, Utterance: c.Value})
			require.Containsf(t, reply.Text, "verified", "role=%s tier=%s", role, tier)

			p, err := f.principals.Find(ctx, externalID)
			require.NoError(t, err)
			assert.Equal(t, role, p.Role)
			assert.Equal(t, tier, p.Tier)

			used, err := f.codes.Find(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, code.StatusUsed, used.Status)
		}
	}
}

// waitForLog blocks until the async query log catches up, keeping quota
// assertions deterministic.
func waitForLog(t *testing.T, f *fixture, externalID string, want int) {
	t.Helper()
	p, err := f.principals.Find(context.Background(), externalID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := f.queryLog.CountSince(context.Background(), p.ID, time.Time{})
		return err == nil && n >= want
	}, time.Second, 10*time.Millisecond)
}

func TestWelcomeText(t *testing.T) {
	p := principal.Profile{
		DisplayName: "Hana",
		Role:        access.RoleManager,
		Tier:        access.TierPro,
		Namespace:   "dept_finance",
	}
	text := welcomeText(p)
	assert.True(t, strings.HasPrefix(text, "Welcome, Hana!"))
	assert.Contains(t, text, "manager")
	assert.Contains(t, text, "pro")
	assert.Contains(t, text, "confidential")
	assert.Contains(t, text, "dept_finance")
}
