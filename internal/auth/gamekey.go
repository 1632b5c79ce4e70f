package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameToken is the payload of an HMAC-SHA256 scoped game-module token.
// Sub is the registered game id; every gateway call is authorized against it,
// so a game can never act on a session it did not open.
type GameToken struct {
	Sub    string   `json:"sub"`
	Scopes []string `json:"scopes"`
	Exp    int64    `json:"exp"`
	Iat    int64    `json:"iat"`
	Jti    string   `json:"jti"`
}

// Game-module scopes.
const (
	ScopeSessions   = "sessions"   // open, settle, flag abandoned
	ScopePayouts    = "payouts"    // credit payouts
	ScopeRandomness = "randomness" // beacon commit/reveal, choice ops
)

// HasScope reports whether the token carries the given scope.
func (t *GameToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// GameKeyManager issues and validates HMAC-SHA256 scoped tokens for game
// modules. Format: base64(payload).base64(signature)
type GameKeyManager struct {
	secret []byte
	ttl    time.Duration
}

// DefaultGameTokenTTL bounds how long an issued game token stays valid.
const DefaultGameTokenTTL = 12 * time.Hour

// NewGameKeyManager creates a game key manager.
func NewGameKeyManager(secret string, ttl time.Duration) *GameKeyManager {
	if ttl == 0 {
		ttl = DefaultGameTokenTTL
	}
	return &GameKeyManager{secret: []byte(secret), ttl: ttl}
}

// GenerateGameToken creates a scoped token for a registered game.
func (m *GameKeyManager) GenerateGameToken(gameID string, scopes []string) (string, error) {
	now := time.Now()
	token := GameToken{
		Sub:    gameID,
		Scopes: scopes,
		Exp:    now.Add(m.ttl).Unix(),
		Iat:    now.Unix(),
		Jti:    uuid.New().String(),
	}

	payloadJSON, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal game token: %w", err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)
	sigB64 := base64.RawURLEncoding.EncodeToString(m.sign(payloadB64))

	return payloadB64 + "." + sigB64, nil
}

// ValidateGameToken verifies and decodes a game token.
func (m *GameKeyManager) ValidateGameToken(tokenString string) (*GameToken, error) {
	parts := splitToken(tokenString)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid game token format")
	}
	payloadB64, sigB64 := parts[0], parts[1]

	actualSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if !hmac.Equal(m.sign(payloadB64), actualSig) {
		return nil, fmt.Errorf("invalid signature")
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var token GameToken
	if err := json.Unmarshal(payloadJSON, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}

	if time.Now().Unix() > token.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return &token, nil
}

func (m *GameKeyManager) sign(data string) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func splitToken(s string) []string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}
