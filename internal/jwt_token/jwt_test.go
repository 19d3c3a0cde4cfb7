package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askgate/internal/access"
	dErrors "askgate/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-signing-key", "askgate", "askgate-admin")

	token, err := svc.GenerateAccessToken("op-1", access.RoleAdmin, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, access.RoleAdmin, claims.Role)
}

func TestValidateExpiredToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "askgate", "askgate-admin")

	token, err := svc.GenerateAccessToken("op-1", access.RoleAdmin, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateWrongKey(t *testing.T) {
	issuer := NewJWTService("key-a", "askgate", "askgate-admin")
	verifier := NewJWTService("key-b", "askgate", "askgate-admin")

	token, err := issuer.GenerateAccessToken("op-1", access.RoleCEO, time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateGarbage(t *testing.T) {
	svc := NewJWTService("test-signing-key", "askgate", "askgate-admin")
	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
