package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_RoundTrip(t *testing.T) {
	sm := NewSessionManager("test-secret", time.Hour)

	token, err := sm.GenerateToken("alice", "TGT-1234567890-abc")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := sm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "TGT-1234567890-abc", claims.TGT)
	assert.Equal(t, "alice", claims.Subject)
}

func TestSessionManager_UsesConfiguredTTL(t *testing.T) {
	ttl := 2 * time.Hour
	sm := NewSessionManager("test-secret", ttl)

	start := time.Now()

	token, err := sm.GenerateToken("alice", "TGT-1234567890-abc")
	require.NoError(t, err)

	claims, err := sm.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)

	expectedExpiry := start.Add(ttl)
	assert.WithinDuration(t, expectedExpiry, claims.ExpiresAt.Time, 2*time.Second)
}

func TestSessionManager_RejectsWrongSecret(t *testing.T) {
	sm := NewSessionManager("test-secret", time.Hour)
	other := NewSessionManager("another-secret", time.Hour)

	token, err := sm.GenerateToken("alice", "TGT-1234567890-abc")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestSessionManager_RejectsExpiredToken(t *testing.T) {
	sm := NewSessionManager("test-secret", -time.Minute)

	token, err := sm.GenerateToken("alice", "TGT-1234567890-abc")
	require.NoError(t, err)

	_, err = sm.ValidateToken(token)
	assert.Error(t, err)
}
