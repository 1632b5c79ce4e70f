//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DuplicateIDRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("crash", domain.EntryConfig{})

	resp, body := env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games", map[string]interface{}{
		"id":    "crash",
		"name":  "crash",
		"entry": domain.EntryConfig{MinWager: 10, MaxWager: 10_000, RakeBps: 500},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestRegistry_PauseBlocksNewSessions(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("crash", domain.EntryConfig{})
	playerID, playerToken := env.CreatePlayer()
	env.Deposit(playerToken, 5_000, "dep-1")

	gameToken := env.GameToken("crash")
	session := env.OpenSession(gameToken, playerID, 1_000)

	resp, body := env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games/crash/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = env.GatewayCall(gameToken, http.MethodPost, "/sessions", map[string]interface{}{
		"player_id": playerID,
		"wager":     100,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "paused game opens no sessions")

	// The open session stays settleable while the game is paused.
	resp, body = env.GatewayCall(gameToken, http.MethodPost,
		fmt.Sprintf("/sessions/%s/settle", session.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games/crash/unpause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	env.OpenSession(gameToken, playerID, 100)
}

func TestRegistry_RemovalLifecycle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("crash", domain.EntryConfig{})
	playerID, playerToken := env.CreatePlayer()
	env.Deposit(playerToken, 5_000, "dep-1")

	gameToken := env.GameToken("crash")
	session := env.OpenSession(gameToken, playerID, 1_000)

	resp, body := env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games/crash/removal", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var pending domain.Game
	env.Decode(body, &pending)
	assert.Equal(t, domain.GamePendingRemoval, pending.State)
	assert.True(t, pending.Paused, "removal request pauses the game")
	require.NotNil(t, pending.RemovalEligibleAt)

	resp, _ = env.GatewayCall(gameToken, http.MethodPost, "/sessions", map[string]interface{}{
		"player_id": playerID,
		"wager":     100,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Existing sessions settle normally through the grace window.
	resp, body = env.GatewayCall(gameToken, http.MethodPost,
		fmt.Sprintf("/sessions/%s/settle", session.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// The grace deadline has not elapsed yet.
	resp, _ = env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games/crash/removal/finalize", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.APICall(env.GuardianToken(), http.MethodDelete, "/admin/games/crash/removal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled domain.Game
	env.Decode(body, &cancelled)
	assert.Equal(t, domain.GameActive, cancelled.State)
	assert.True(t, cancelled.Paused, "cancellation does not reopen the game")
	assert.Nil(t, cancelled.RemovalEligibleAt)

	resp, body = env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games/crash/unpause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	env.OpenSession(gameToken, playerID, 100)
}

func TestRegistry_BurnAtOpenPolicy(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("crash", domain.EntryConfig{})
	playerID, playerToken := env.CreatePlayer()
	env.Deposit(playerToken, 5_000, "dep-1")

	resp, body := env.APICall(env.GuardianToken(), http.MethodPatch, "/admin/games/crash/burn-policy", map[string]string{
		"burn_policy": "at_open",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var game domain.Game
	env.Decode(body, &game)
	assert.Equal(t, domain.BurnAtOpen, game.Entry.BurnPolicy)

	// Wager 1000: rake 50 (500 bps), then burn 19 (200 bps of 950) up front.
	session := env.OpenSession(env.GameToken("crash"), playerID, 1_000)
	assert.Equal(t, int64(931), session.RemainingPool)

	resp, body = env.APICall(env.GuardianToken(), http.MethodGet, "/admin/treasury", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var report struct {
		RakeAccrued int64 `json:"rake_accrued"`
		BurnAccrued int64 `json:"burn_accrued"`
	}
	env.Decode(body, &report)
	assert.Equal(t, int64(50), report.RakeAccrued)
	assert.Equal(t, int64(19), report.BurnAccrued)
}

func TestRegistry_TokenIssuance(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("crash", domain.EntryConfig{})

	resp, body := env.APICall(env.GuardianToken(), http.MethodPost, "/admin/games/crash/token", map[string]interface{}{
		"scopes": []string{"sessions"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var issued struct {
		Token  string   `json:"token"`
		Scopes []string `json:"scopes"`
	}
	env.Decode(body, &issued)
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, []string{"sessions"}, issued.Scopes)

	resp, body = env.APICall(env.GuardianToken(), http.MethodGet, "/admin/games/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}
