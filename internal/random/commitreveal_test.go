package random

import (
	"context"
	"testing"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChoiceBook(t *testing.T) (*ChoiceBook, *time.Time) {
	t.Helper()
	store := repository.NewMemoryStore()
	cb := NewChoiceBook(store.Commitments(), store.Outbox(), 10*time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return current }
	return cb, &current
}

func TestChoiceBook_CommitOncePerKey(t *testing.T) {
	cb, _ := newTestChoiceBook(t)
	ctx := context.Background()
	hash := HashChoice("heads", "s3cret", "player-1")

	commitment, err := cb.CommitChoice(ctx, nil, "sess-1", "player-1", hash)
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceCommitted, commitment.State)

	_, err = cb.CommitChoice(ctx, nil, "sess-1", "player-1", hash)
	require.Error(t, err)
	assert.Equal(t, "ALREADY_COMMITTED", err.(*domain.AppError).Code)

	// same session, other player is a distinct key
	_, err = cb.CommitChoice(ctx, nil, "sess-1", "player-2", HashChoice("tails", "x", "player-2"))
	require.NoError(t, err)
}

func TestChoiceBook_RevealVerifiesDigest(t *testing.T) {
	cb, _ := newTestChoiceBook(t)
	ctx := context.Background()
	_, err := cb.CommitChoice(ctx, nil, "sess-1", "player-1", HashChoice("heads", "s3cret", "player-1"))
	require.NoError(t, err)

	// mismatch consumes nothing
	_, err = cb.RevealChoice(ctx, nil, "sess-1", "player-1", "heads", "wrong")
	require.Error(t, err)
	assert.Equal(t, "COMMIT_MISMATCH", err.(*domain.AppError).Code)

	revealed, err := cb.RevealChoice(ctx, nil, "sess-1", "player-1", "heads", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceRevealed, revealed.State)
	assert.Equal(t, "heads", revealed.Choice)

	// repeat reveal returns the opened commitment
	again, err := cb.RevealChoice(ctx, nil, "sess-1", "player-1", "heads", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceRevealed, again.State)
}

func TestChoiceBook_DigestBoundToPlayer(t *testing.T) {
	cb, _ := newTestChoiceBook(t)
	ctx := context.Background()

	// a digest copied from another player's commit never verifies
	_, err := cb.CommitChoice(ctx, nil, "sess-1", "player-2", HashChoice("heads", "s3cret", "player-1"))
	require.NoError(t, err)
	_, err = cb.RevealChoice(ctx, nil, "sess-1", "player-2", "heads", "s3cret")
	require.Error(t, err)
	assert.Equal(t, "COMMIT_MISMATCH", err.(*domain.AppError).Code)
}

func TestChoiceBook_ForfeitAfterDeadline(t *testing.T) {
	cb, current := newTestChoiceBook(t)
	ctx := context.Background()
	_, err := cb.CommitChoice(ctx, nil, "sess-1", "player-1", HashChoice("heads", "s3cret", "player-1"))
	require.NoError(t, err)

	_, err = cb.Forfeit(ctx, nil, "sess-1", "player-1")
	require.Error(t, err, "forfeit before the deadline is rejected")

	*current = current.Add(11 * time.Minute)
	forfeited, err := cb.Forfeit(ctx, nil, "sess-1", "player-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceForfeited, forfeited.State)

	// terminal both ways
	again, err := cb.Forfeit(ctx, nil, "sess-1", "player-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceForfeited, again.State)
	_, err = cb.RevealChoice(ctx, nil, "sess-1", "player-1", "heads", "s3cret")
	require.Error(t, err)
}

func TestChoiceBook_ForfeitRejectedAfterReveal(t *testing.T) {
	cb, current := newTestChoiceBook(t)
	ctx := context.Background()
	_, err := cb.CommitChoice(ctx, nil, "sess-1", "player-1", HashChoice("heads", "s3cret", "player-1"))
	require.NoError(t, err)
	_, err = cb.RevealChoice(ctx, nil, "sess-1", "player-1", "heads", "s3cret")
	require.NoError(t, err)

	*current = current.Add(time.Hour)
	_, err = cb.Forfeit(ctx, nil, "sess-1", "player-1")
	require.Error(t, err)
}
