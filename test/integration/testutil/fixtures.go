//go:build integration

package testutil

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stretchr/testify/require"
)

// CreatePlayer provisions a player through the admin surface and returns its
// id plus a player-realm token.
func (e *TestEnv) CreatePlayer() (uuid.UUID, string) {
	e.t.Helper()
	resp, body := e.APICall(e.GuardianToken(), http.MethodPost, "/admin/players", map[string]string{
		"currency": "CHIP",
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Player domain.Player `json:"player"`
		Token  string        `json:"token"`
	}
	e.Decode(body, &out)
	return out.Player.ID, out.Token
}

// Deposit credits a player's wagerable balance through the wallet API.
func (e *TestEnv) Deposit(playerToken string, amount int64, ref string) {
	e.t.Helper()
	resp, body := e.APICall(playerToken, http.MethodPost, "/wallet/deposits", map[string]interface{}{
		"amount":       amount,
		"external_ref": ref,
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode, string(body))
}

// RegisterGame registers a game with default entry economics.
func (e *TestEnv) RegisterGame(id string, entry domain.EntryConfig) domain.Game {
	e.t.Helper()
	if entry.MaxWager == 0 {
		entry = domain.EntryConfig{MinWager: 10, MaxWager: 10_000, RakeBps: 500, BurnBps: 200}
	}
	resp, body := e.APICall(e.GuardianToken(), http.MethodPost, "/admin/games", map[string]interface{}{
		"id":    id,
		"name":  id,
		"entry": entry,
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode, string(body))

	var game domain.Game
	e.Decode(body, &game)
	return game
}

// OpenSession opens a session via the gateway and returns it.
func (e *TestEnv) OpenSession(gameToken string, playerID uuid.UUID, wager int64) domain.Session {
	e.t.Helper()
	resp, body := e.GatewayCall(gameToken, http.MethodPost, "/sessions", map[string]interface{}{
		"player_id": playerID,
		"wager":     wager,
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode, string(body))

	var session domain.Session
	e.Decode(body, &session)
	return session
}

// Balance reads a player's balances straight from the ledger via the admin
// surface. The wallet endpoint serves a cached projection, which only catches
// up when the outbox poller runs; tests assert against the source of truth.
func (e *TestEnv) Balance(playerID uuid.UUID) (balance, payout int64) {
	e.t.Helper()
	resp, body := e.APICall(e.GuardianToken(), http.MethodGet, "/admin/players/"+playerID.String(), nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode, string(body))

	var player domain.Player
	e.Decode(body, &player)
	return player.Balance, player.PayoutBalance
}
