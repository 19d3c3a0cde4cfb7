package principal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askgate/internal/access"
	dErrors "askgate/pkg/domain-errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewInMemoryStore())
	require.NoError(t, err)
	return svc
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("binds an identity once", func(t *testing.T) {
		svc := newTestService(t)

		p, err := svc.Create(ctx, CreateInput{
			ExternalID: "chat-1",
			Role:       access.RoleSenior,
			Tier:       access.TierPro,
			Department: "Engineering",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.FirstContactAt.IsZero())

		_, err = svc.Create(ctx, CreateInput{
			ExternalID: "chat-1",
			Role:       access.RoleUser,
			Tier:       access.TierFree,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("requires a valid grant", func(t *testing.T) {
		svc := newTestService(t)
		_, err := svc.Create(ctx, CreateInput{ExternalID: "chat-2", Role: access.Role(-1)})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Create(ctx, CreateInput{
		ExternalID: "chat-3",
		Role:       access.RoleUser,
		Tier:       access.TierFree,
	})
	require.NoError(t, err)

	role := access.RoleManager
	tier := access.TierPro
	p, err := svc.Update(ctx, "chat-3", UpdateInput{Role: &role, Tier: &tier})
	require.NoError(t, err)
	assert.Equal(t, access.RoleManager, p.Role)
	assert.Equal(t, access.TierPro, p.Tier)

	t.Run("unknown identity is not found", func(t *testing.T) {
		_, err := svc.Update(ctx, "nobody", UpdateInput{Role: &role})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRepairNamespace(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Create(ctx, CreateInput{
		ExternalID: "chat-4",
		Role:       access.RoleUser,
		Tier:       access.TierFree,
		Namespace:  "dept_engineering",
	})
	require.NoError(t, err)

	p, err := svc.RepairNamespace(ctx, "chat-4", "dept_finance", "op-1")
	require.NoError(t, err)
	assert.Equal(t, "dept_finance", p.Namespace)

	t.Run("empty namespace is rejected", func(t *testing.T) {
		_, err := svc.RepairNamespace(ctx, "chat-4", "", "op-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestNamespaces(t *testing.T) {
	svc := newTestService(t)

	t.Run("includes the profile namespace once", func(t *testing.T) {
		p := Profile{
			Role:      access.RoleUser,
			Tier:      access.TierFree,
			Namespace: "dept_engineering",
		}
		got := svc.Namespaces(p)
		assert.Equal(t, []string{"public", "dept_engineering"}, got)
	})

	t.Run("does not duplicate a derived department namespace", func(t *testing.T) {
		p := Profile{
			Role:       access.RoleUser,
			Tier:       access.TierFree,
			Department: "Engineering",
			Namespace:  "dept_engineering",
		}
		got := svc.Namespaces(p)
		assert.Equal(t, []string{"public", "dept_engineering"}, got)
	})
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.Create(ctx, CreateInput{
		ExternalID: "chat-5",
		Role:       access.RoleUser,
		Tier:       access.TierFree,
	})
	require.NoError(t, err)

	svc.Touch(ctx, "chat-5")
	p, err := svc.Find(ctx, "chat-5")
	require.NoError(t, err)
	assert.False(t, p.LastContactAt.Before(created.LastContactAt))

	// Unknown identities are silently ignored.
	svc.Touch(ctx, "anonymous-visitor")
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, in := range []CreateInput{
		{ExternalID: "a", Role: access.RoleUser, Tier: access.TierFree},
		{ExternalID: "b", Role: access.RoleUser, Tier: access.TierBasic},
		{ExternalID: "c", Role: access.RoleManager, Tier: access.TierPro},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByRole["user"])
	assert.Equal(t, 1, stats.ByTier["pro"])
}
