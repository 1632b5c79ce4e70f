package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters!!"

func TestJWT_RoundTrip(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour, time.Hour)

	token, err := mgr.GenerateToken(RealmPlayer, "player-1", "p1@example.com")
	require.NoError(t, err)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "player-1", claims.Subject)
	assert.Equal(t, RealmPlayer, claims.Realm)
}

func TestJWT_RealmMismatch(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour, time.Hour)

	token, err := mgr.GenerateToken(RealmPlayer, "player-1", "")
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmGuardian)
	require.Error(t, err)
}

func TestJWT_WrongSecretRejected(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour, time.Hour)
	other := NewJWTManager("another-secret-also-32-characters!!!", time.Hour, time.Hour)

	token, err := mgr.GenerateToken(RealmGuardian, "guardian-1", "")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestGameToken_RoundTripAndScopes(t *testing.T) {
	mgr := NewGameKeyManager(testSecret, time.Hour)

	raw, err := mgr.GenerateGameToken("crash", []string{ScopeSessions, ScopePayouts})
	require.NoError(t, err)

	token, err := mgr.ValidateGameToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "crash", token.Sub)
	assert.True(t, token.HasScope(ScopeSessions))
	assert.False(t, token.HasScope(ScopeRandomness))
}

func TestGameToken_TamperedPayloadRejected(t *testing.T) {
	mgr := NewGameKeyManager(testSecret, time.Hour)

	raw, err := mgr.GenerateGameToken("crash", []string{ScopeSessions})
	require.NoError(t, err)

	tampered := "x" + raw[1:]
	_, err = mgr.ValidateGameToken(tampered)
	require.Error(t, err)
}

func TestGameToken_Expired(t *testing.T) {
	mgr := NewGameKeyManager(testSecret, -time.Minute)

	raw, err := mgr.GenerateGameToken("crash", []string{ScopeSessions})
	require.NoError(t, err)

	_, err = mgr.ValidateGameToken(raw)
	require.Error(t, err)
}
