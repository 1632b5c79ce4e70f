package projection

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.Error(t, err)
}

func TestInMemoryStore_TTL(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err := store.Get(ctx, "k")
	require.Error(t, err)
}

func TestBalanceProjection_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, UpdateBalance(ctx, store, BalanceProjection{
		PlayerID: "player-1", Balance: 900, PayoutBalance: 60,
	}))

	p, err := GetBalance(ctx, store, "player-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), p.Balance)
	assert.Equal(t, int64(60), p.PayoutBalance)
	assert.NotEmpty(t, p.UpdatedAt)
}

func TestUpdater_WalletEventRefreshesProjection(t *testing.T) {
	store := NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	updater := NewUpdater(store, logger)
	ctx := context.Background()

	playerID := uuid.New()
	entry := &domain.LedgerEntry{
		ID: uuid.New(), PlayerID: playerID, Type: domain.EntryDeposit,
		Amount: 500, BalanceAfter: 500, PayoutBalanceAfter: 0,
	}
	row := domain.OutboxRow{OutboxDraft: domain.NewWalletEvent(domain.EventDepositPosted, entry)}
	updater.HandleEvent(ctx, row)

	p, err := GetBalance(ctx, store, playerID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.Balance)
}

func TestUpdater_PayoutCreditInvalidates(t *testing.T) {
	store := NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	updater := NewUpdater(store, logger)
	ctx := context.Background()

	payee := uuid.New()
	require.NoError(t, UpdateBalance(ctx, store, BalanceProjection{PlayerID: payee.String(), Balance: 1}))

	session := &domain.Session{ID: uuid.New(), GameID: "crash", PlayerID: payee, RemainingPool: 10}
	row := domain.OutboxRow{OutboxDraft: domain.NewPayoutCreditedEvent(session, payee, 5)}
	updater.HandleEvent(ctx, row)

	_, err := GetBalance(ctx, store, payee.String())
	require.Error(t, err, "stale projection must be gone")
}
