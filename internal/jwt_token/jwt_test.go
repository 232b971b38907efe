package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fides/pkg/domain-errors"
)

func newTestService() *JWTService {
	return NewJWTService("test-signing-key", "fides", "fides-api")
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	svc := newTestService()
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newTestService()
	token, err := svc.GenerateAccessToken("operator-1", "", "credentials:write", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_ValidToken(t *testing.T) {
	svc := newTestService()
	token, err := svc.GenerateAccessToken("operator-1", "node-9", "credentials:write", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.ActorID)
	assert.Equal(t, "node-9", claims.NodeID)
	assert.Equal(t, "credentials:write", claims.Scope)
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	token, err := newTestService().GenerateAccessToken("operator-1", "", "", time.Hour)
	require.NoError(t, err)

	other := NewJWTService("different-key", "fides", "fides-api")
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}
