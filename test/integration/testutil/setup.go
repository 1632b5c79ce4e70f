//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stakehouse/platform/internal/app"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/infra"
	"github.com/stakehouse/platform/internal/random"
	"github.com/stretchr/testify/require"
)

const (
	TestJWTSecret     = "integration-test-jwt-secret-32-ch!"
	TestGameKeySecret = "integration-test-game-key-secret!!"
	TestGuardian      = "guardian-1"
)

// TestEnv runs both servers against one shared in-memory App.
type TestEnv struct {
	API     *httptest.Server
	Gateway *httptest.Server
	App     *app.App
	t       *testing.T
}

// NewTestEnv builds the full application graph on the in-memory store and
// serves both routers.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	cfg := &infra.Config{
		UseMemoryStore:    true,
		JWTSecret:         TestJWTSecret,
		GameKeySecret:     TestGameKeySecret,
		Guardians:         TestGuardian,
		CommitDelay:       5,
		ChainNativeWindow: 64,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)

	api := httptest.NewServer(a.APIRouter())
	gateway := httptest.NewServer(a.GatewayRouter())
	t.Cleanup(func() {
		api.Close()
		gateway.Close()
		a.Close()
	})

	return &TestEnv{API: api, Gateway: gateway, App: a, t: t}
}

// Chain returns the simulated commitment log backing the beacon.
func (e *TestEnv) Chain() *random.SimulatedLog {
	e.t.Helper()
	log, ok := e.App.Source.(*random.SimulatedLog)
	require.True(e.t, ok, "expected the simulated commitment log")
	return log
}

// GuardianToken issues a guardian-realm JWT.
func (e *TestEnv) GuardianToken() string {
	e.t.Helper()
	token, err := e.App.JWT.GenerateToken(auth.RealmGuardian, TestGuardian, "")
	require.NoError(e.t, err)
	return token
}

// GameToken issues a scoped game token straight from the key manager.
func (e *TestEnv) GameToken(gameID string, scopes ...string) string {
	e.t.Helper()
	if len(scopes) == 0 {
		scopes = []string{auth.ScopeSessions, auth.ScopePayouts, auth.ScopeRandomness}
	}
	token, err := e.App.Keys.GenerateGameToken(gameID, scopes)
	require.NoError(e.t, err)
	return token
}

// Do performs one JSON request against a base URL.
func (e *TestEnv) Do(base, token, method, path string, body interface{}) (*http.Response, []byte) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, base+path, reader)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, data
}

// APICall performs one request against the player/guardian API.
func (e *TestEnv) APICall(token, method, path string, body interface{}) (*http.Response, []byte) {
	return e.Do(e.API.URL, token, method, path, body)
}

// GatewayCall performs one request against the game gateway.
func (e *TestEnv) GatewayCall(token, method, path string, body interface{}) (*http.Response, []byte) {
	return e.Do(e.Gateway.URL, token, method, path, body)
}

// Decode unmarshals a response body, failing the test on bad JSON.
func (e *TestEnv) Decode(data []byte, dst interface{}) {
	e.t.Helper()
	require.NoError(e.t, json.Unmarshal(data, dst), "body: %s", data)
}
