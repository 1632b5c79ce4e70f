//go:build integration

package integration

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/random"
	"github.com/stakehouse/platform/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomness_CommitRevealFlow(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("dice", domain.EntryConfig{})
	gameToken := env.GameToken("dice")

	resp, body := env.GatewayCall(gameToken, http.MethodPost, "/randomness/commit", map[string]string{
		"purpose_id": "dice:round-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var committed domain.RandomnessRequest
	env.Decode(body, &committed)
	assert.Equal(t, uint64(5), committed.TargetIndex, "target is current index plus the commit delay")
	assert.Equal(t, domain.RandomnessPending, committed.State)

	// The target record does not exist yet.
	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/randomness/dice:round-1/reveal", nil)
	assert.Equal(t, http.StatusTooEarly, resp.StatusCode, string(body))

	env.Chain().Advance(10)

	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/randomness/dice:round-1/reveal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var revealed domain.RandomnessRequest
	env.Decode(body, &revealed)
	assert.Equal(t, domain.RandomnessRevealed, revealed.State)
	assert.Len(t, revealed.Seed, 32)

	// A repeat reveal returns the same cached seed.
	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/randomness/dice:round-1/reveal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var repeat domain.RandomnessRequest
	env.Decode(body, &repeat)
	assert.Equal(t, revealed.Seed, repeat.Seed)
}

func TestRandomness_ExpiryMakesSessionRefundable(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("dice", domain.EntryConfig{})
	playerID, playerToken := env.CreatePlayer()
	env.Deposit(playerToken, 5_000, "dep-1")

	gameToken := env.GameToken("dice")
	resp, body := env.GatewayCall(gameToken, http.MethodPost, "/randomness/commit", map[string]string{
		"purpose_id": "dice:doomed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/sessions", map[string]interface{}{
		"player_id":     playerID,
		"wager":         1_000,
		"randomness_id": "dice:doomed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var session domain.Session
	env.Decode(body, &session)

	// Push the target record out of the native lookback window.
	env.Chain().Advance(100)

	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/randomness/dice:doomed/reveal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var expired domain.RandomnessRequest
	env.Decode(body, &expired)
	assert.Equal(t, domain.RandomnessExpired, expired.State)
	assert.Empty(t, expired.Seed)

	// Revealing again is a hard failure once the seed is unrecoverable.
	resp, _ = env.GatewayCall(gameToken, http.MethodPost, "/randomness/dice:doomed/reveal", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	// The expired request makes the linked session refund-eligible.
	resp, body = env.APICall(playerToken, http.MethodPost,
		fmt.Sprintf("/sessions/%s/refund", session.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	_, payout := env.Balance(playerID)
	assert.Equal(t, int64(950), payout, "net wager returned to the player")
}

func TestRandomness_RefundRequiresEligibility(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("dice", domain.EntryConfig{})
	playerID, playerToken := env.CreatePlayer()
	env.Deposit(playerToken, 5_000, "dep-1")

	session := env.OpenSession(env.GameToken("dice"), playerID, 1_000)

	// Neither abandoned nor backed by expired randomness.
	resp, body := env.APICall(playerToken, http.MethodPost,
		fmt.Sprintf("/sessions/%s/refund", session.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
}

func TestChoice_CommitRevealForfeit(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterGame("rps", domain.EntryConfig{})
	playerID, playerToken := env.CreatePlayer()
	env.Deposit(playerToken, 5_000, "dep-1")

	gameToken := env.GameToken("rps")
	session := env.OpenSession(gameToken, playerID, 100)

	digest := random.HashChoice("rock", "s3cret", playerID.String())
	resp, body := env.GatewayCall(gameToken, http.MethodPost, "/choices/commit", map[string]string{
		"session_id":  session.ID.String(),
		"player_id":   playerID.String(),
		"commit_hash": hex.EncodeToString(digest),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// A wrong secret is rejected without consuming the commitment.
	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/choices/reveal", map[string]string{
		"session_id": session.ID.String(),
		"player_id":  playerID.String(),
		"choice":     "rock",
		"secret":     "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	// Forfeit is only possible after the reveal deadline.
	resp, _ = env.GatewayCall(gameToken, http.MethodPost, "/choices/forfeit", map[string]string{
		"session_id": session.ID.String(),
		"player_id":  playerID.String(),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.GatewayCall(gameToken, http.MethodPost, "/choices/reveal", map[string]string{
		"session_id": session.ID.String(),
		"player_id":  playerID.String(),
		"choice":     "rock",
		"secret":     "s3cret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var commitment domain.ChoiceCommitment
	env.Decode(body, &commitment)
	assert.Equal(t, domain.ChoiceRevealed, commitment.State)
	assert.Equal(t, "rock", commitment.Choice)
}
