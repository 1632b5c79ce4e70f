package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/guard"
	"github.com/stakehouse/platform/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store   *repository.MemoryStore
	engine  *Engine
	breaker *guard.CircuitBreaker
	flash   *guard.FlashAbuseGuard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	breaker := guard.NewCircuitBreaker(12 * time.Hour)
	flash := guard.NewFlashAbuseGuard(time.Minute, 0, 0)
	engine := NewEngine(
		store.Players(), store.Games(), store.Sessions(), store.Entries(),
		store.Treasury(), store.Randomness(), store.Outbox(),
		breaker, flash,
	)
	return &testEnv{store: store, engine: engine, breaker: breaker, flash: flash}
}

func (env *testEnv) createPlayer(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	player := &domain.Player{ID: uuid.New(), Balance: balance, Currency: "CHIP", CreatedAt: time.Now()}
	require.NoError(t, env.store.Players().Create(context.Background(), nil, player))
	return player.ID
}

func (env *testEnv) createGame(t *testing.T, id string, entry domain.EntryConfig) {
	t.Helper()
	if entry.BurnPolicy == "" {
		entry.BurnPolicy = domain.BurnAtSweep
	}
	game := &domain.Game{ID: id, Name: id, Entry: entry, State: domain.GameActive, CreatedAt: time.Now()}
	require.NoError(t, env.store.Games().Create(context.Background(), nil, game))
}

func (env *testEnv) player(t *testing.T, id uuid.UUID) *domain.Player {
	t.Helper()
	player, err := env.store.Players().FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	require.NotNil(t, player)
	return player
}

func (env *testEnv) treasury(t *testing.T) *domain.Treasury {
	t.Helper()
	treasury, err := env.store.Treasury().Get(context.Background(), nil)
	require.NoError(t, err)
	return treasury
}

func defaultEntry() domain.EntryConfig {
	return domain.EntryConfig{MinWager: 10, MaxWager: 10_000, RakeBps: 500, BurnBps: 200}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok, "expected *domain.AppError, got %T: %v", err, err)
	return appErr.Code
}

func TestOpenSession_RakeAtOpen(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)

	result, err := env.engine.ExecuteOpenSession(context.Background(), nil, domain.OpenSessionParams{
		GameID: "crash", PlayerID: playerID, Wager: 100,
	})
	require.NoError(t, err)

	// 5% rake at open; burn stays on the sweep path by default
	assert.Equal(t, int64(100), result.Session.GrossWager)
	assert.Equal(t, int64(95), result.Session.NetWager)
	assert.Equal(t, int64(95), result.Session.RemainingPool)
	assert.Equal(t, domain.SessionOpen, result.Session.State)
	assert.Equal(t, int64(900), result.Player.Balance)
	assert.Equal(t, int64(5), env.treasury(t).RakeAccrued)
	assert.Equal(t, int64(0), env.treasury(t).BurnAccrued)
}

func TestOpenSession_BurnAtOpenPolicy(t *testing.T) {
	env := newTestEnv(t)
	entry := defaultEntry()
	entry.BurnBps = 1000 // 10%
	entry.BurnPolicy = domain.BurnAtOpen
	env.createGame(t, "dice", entry)
	playerID := env.createPlayer(t, 1000)

	result, err := env.engine.ExecuteOpenSession(context.Background(), nil, domain.OpenSessionParams{
		GameID: "dice", PlayerID: playerID, Wager: 1000,
	})
	require.NoError(t, err)

	// rake 50, then burn 10% of the 950 net
	assert.Equal(t, int64(855), result.Session.RemainingPool)
	assert.Equal(t, int64(50), env.treasury(t).RakeAccrued)
	assert.Equal(t, int64(95), env.treasury(t).BurnAccrued)
}

func TestOpenSession_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	t.Run("unknown game", func(t *testing.T) {
		_, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "ghost", PlayerID: playerID, Wager: 100})
		assert.Equal(t, "GAME_NOT_ACTIVE", appCode(t, err))
	})

	t.Run("wager below minimum", func(t *testing.T) {
		_, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 5})
		assert.Equal(t, "WAGER_OUT_OF_BOUNDS", appCode(t, err))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		_, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 5000})
		assert.Equal(t, "INSUFFICIENT_BALANCE", appCode(t, err))
	})

	t.Run("breaker tripped", func(t *testing.T) {
		env.breaker.Trip("guardian-1")
		defer func() {
			_, err := env.breaker.RequestReset("guardian-1")
			require.NoError(t, err)
		}()
		_, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
		assert.Equal(t, "BREAKER_TRIPPED", appCode(t, err))
	})
}

func TestOpenSession_FlashGuardCeiling(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 100_000)
	env.flash.SetGameCeiling("crash", 500)
	ctx := context.Background()

	_, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 500})
	require.NoError(t, err)

	_, err = env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 10})
	assert.Equal(t, "ABUSE_GUARD_EXCEEDED", appCode(t, err))
}

func TestOpenSession_PausedGameRejected(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	ctx := context.Background()

	game, err := env.store.Games().FindByID(ctx, nil, "crash")
	require.NoError(t, err)
	game.Paused = true
	require.NoError(t, env.store.Games().Update(ctx, nil, game))

	playerID := env.createPlayer(t, 1000)
	_, err = env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	assert.Equal(t, "GAME_NOT_ACTIVE", appCode(t, err))
}

func TestCreditPayout_PoolBounded(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	sessionID := opened.Session.ID

	result, err := env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: sessionID, CallerGameID: "crash", PayeeID: playerID, Amount: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(35), result.Session.RemainingPool)
	assert.Equal(t, int64(60), result.Player.PayoutBalance)

	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: sessionID, CallerGameID: "crash", PayeeID: playerID, Amount: 36,
	})
	assert.Equal(t, "PAYOUT_EXCEEDS_POOL", appCode(t, err))
}

func TestCreditPayout_OwnerGameOnly(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	env.createGame(t, "dice", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)

	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "dice", PayeeID: playerID, Amount: 10,
	})
	assert.Equal(t, "UNAUTHORIZED_GAME", appCode(t, err))
}

func TestCreditPayout_ThirdPartyPayee(t *testing.T) {
	env := newTestEnv(t)
	entry := defaultEntry()
	env.createGame(t, "crash", entry)
	entry.AllowThirdPartyPayout = true
	env.createGame(t, "duel", entry)
	playerID := env.createPlayer(t, 1000)
	spectatorID := env.createPlayer(t, 0)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "crash", PayeeID: spectatorID, Amount: 10,
	})
	assert.Equal(t, "FORBIDDEN", appCode(t, err))

	duel, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "duel", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	result, err := env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: duel.Session.ID, CallerGameID: "duel", PayeeID: spectatorID, Amount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Player.PayoutBalance)
}

func TestSettleSession_SweepsRemainderAsBurn(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "crash", PayeeID: playerID, Amount: 60,
	})
	require.NoError(t, err)

	result, err := env.engine.ExecuteSettleSession(ctx, nil, domain.SettleSessionParams{
		SessionID: opened.Session.ID, CallerGameID: "crash",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionSettled, result.Session.State)
	assert.Equal(t, int64(0), result.Session.RemainingPool)
	assert.Equal(t, int64(35), env.treasury(t).BurnAccrued)

	// no double sweep
	_, err = env.engine.ExecuteSettleSession(ctx, nil, domain.SettleSessionParams{
		SessionID: opened.Session.ID, CallerGameID: "crash",
	})
	assert.Equal(t, "SESSION_NOT_OPEN", appCode(t, err))
	assert.Equal(t, int64(35), env.treasury(t).BurnAccrued)
}

func TestSettleSession_FullyCreditedSweepsZero(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "crash", PayeeID: playerID, Amount: 95,
	})
	require.NoError(t, err)

	_, err = env.engine.ExecuteSettleSession(ctx, nil, domain.SettleSessionParams{
		SessionID: opened.Session.ID, CallerGameID: "crash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), env.treasury(t).BurnAccrued)
	assert.Equal(t, int64(95), env.player(t, playerID).PayoutBalance)
}

func TestWithdraw_ZeroThenPay(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "crash", PayeeID: playerID, Amount: 95,
	})
	require.NoError(t, err)

	result, err := env.engine.ExecuteWithdraw(ctx, nil, domain.WithdrawParams{PlayerID: playerID, ExternalRef: "wd-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(95), result.Entry.Amount)
	assert.Equal(t, int64(0), result.Player.PayoutBalance)

	// repeat on the same reference returns the existing entry
	repeat, err := env.engine.ExecuteWithdraw(ctx, nil, domain.WithdrawParams{PlayerID: playerID, ExternalRef: "wd-1"})
	require.NoError(t, err)
	assert.True(t, repeat.Idempotent)
	assert.Equal(t, result.Entry.ID, repeat.Entry.ID)

	// nothing left to withdraw
	_, err = env.engine.ExecuteWithdraw(ctx, nil, domain.WithdrawParams{PlayerID: playerID, ExternalRef: "wd-2"})
	assert.Equal(t, "INSUFFICIENT_BALANCE", appCode(t, err))
}

func TestWithdraw_IgnoresBreaker(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "crash", PayeeID: playerID, Amount: 50,
	})
	require.NoError(t, err)

	env.breaker.Trip("guardian-1")
	_, err = env.engine.ExecuteWithdraw(ctx, nil, domain.WithdrawParams{PlayerID: playerID})
	require.NoError(t, err)
}

func TestRefundSession_AbandonedFlag(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)

	// not eligible while plainly open
	_, err = env.engine.ExecuteRefundSession(ctx, nil, domain.RefundSessionParams{SessionID: opened.Session.ID})
	assert.Equal(t, "REFUND_NOT_ELIGIBLE", appCode(t, err))

	_, err = env.engine.ExecuteFlagAbandoned(ctx, nil, domain.FlagAbandonedParams{SessionID: opened.Session.ID, CallerGameID: "crash"})
	require.NoError(t, err)

	env.breaker.Trip("guardian-1") // refunds must still pass
	result, err := env.engine.ExecuteRefundSession(ctx, nil, domain.RefundSessionParams{SessionID: opened.Session.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionRefunded, result.Session.State)
	assert.Equal(t, int64(95), result.Player.PayoutBalance, "refund is the net wager, rake stays earned")

	_, err = env.engine.ExecuteRefundSession(ctx, nil, domain.RefundSessionParams{SessionID: opened.Session.ID})
	assert.Equal(t, "SESSION_NOT_OPEN", appCode(t, err))
}

func TestRefundSession_ExpiredRandomness(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)

	purposeID := "purpose-1"
	require.NoError(t, env.store.Randomness().Create(ctx, nil, &domain.RandomnessRequest{
		PurposeID: purposeID, OwnerGameID: "crash", TargetIndex: 10,
		State: domain.RandomnessExpired, CreatedAt: time.Now(),
	}))
	session := opened.Session
	session.RandomnessID = &purposeID
	require.NoError(t, env.store.Sessions().Update(ctx, nil, session))

	result, err := env.engine.ExecuteRefundSession(ctx, nil, domain.RefundSessionParams{SessionID: session.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionRefunded, result.Session.State)
}

func TestBatchRefund_ValidatesBeforeMutating(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 1000)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
		require.NoError(t, err)
		_, err = env.engine.ExecuteFlagAbandoned(ctx, nil, domain.FlagAbandonedParams{SessionID: opened.Session.ID, CallerGameID: "crash"})
		require.NoError(t, err)
		ids = append(ids, opened.Session.ID)
	}

	// one ineligible id poisons the whole batch
	open, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 100})
	require.NoError(t, err)
	poisoned := append(append([]uuid.UUID{}, ids...), open.Session.ID)

	// run inside the tx runner so the failed batch rolls back atomically
	err = env.store.WithinTx(ctx, func(db repository.DBTX) error {
		_, err := env.engine.ExecuteBatchRefund(ctx, db, poisoned)
		return err
	})
	assert.Equal(t, "REFUND_NOT_ELIGIBLE", appCode(t, err))
	for _, id := range ids {
		session, err := env.store.Sessions().FindByID(ctx, nil, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionOpen, session.State, "failed batch must not mutate eligible members")
	}

	results, err := env.engine.ExecuteBatchRefund(ctx, nil, ids)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(285), env.player(t, playerID).PayoutBalance)
}

func TestBatchRefund_RejectsDuplicatesAndOversize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := env.engine.ExecuteBatchRefund(ctx, nil, []uuid.UUID{id, id})
	assert.Equal(t, "VALIDATION_ERROR", appCode(t, err))

	oversize := make([]uuid.UUID, MaxBatchRefund+1)
	for i := range oversize {
		oversize[i] = uuid.New()
	}
	_, err = env.engine.ExecuteBatchRefund(ctx, nil, oversize)
	assert.Equal(t, "VALIDATION_ERROR", appCode(t, err))
}

func TestDeposit_IdempotentOnExternalRef(t *testing.T) {
	env := newTestEnv(t)
	playerID := env.createPlayer(t, 0)
	ctx := context.Background()

	first, err := env.engine.ExecuteDeposit(ctx, nil, domain.DepositParams{PlayerID: playerID, Amount: 500, ExternalRef: "dep-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), first.Player.Balance)

	repeat, err := env.engine.ExecuteDeposit(ctx, nil, domain.DepositParams{PlayerID: playerID, Amount: 500, ExternalRef: "dep-1"})
	require.NoError(t, err)
	assert.True(t, repeat.Idempotent)
	assert.Equal(t, int64(500), env.player(t, playerID).Balance)
}

func TestSolvency_OpenPoolsPlusBalancesNeverExceedFundsHeld(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "crash", defaultEntry())
	playerID := env.createPlayer(t, 0)
	ctx := context.Background()

	_, err := env.engine.ExecuteDeposit(ctx, nil, domain.DepositParams{PlayerID: playerID, Amount: 10_000, ExternalRef: "dep-1"})
	require.NoError(t, err)

	opened, err := env.engine.ExecuteOpenSession(ctx, nil, domain.OpenSessionParams{GameID: "crash", PlayerID: playerID, Wager: 1000})
	require.NoError(t, err)
	_, err = env.engine.ExecuteCreditPayout(ctx, nil, domain.CreditPayoutParams{
		SessionID: opened.Session.ID, CallerGameID: "crash", PayeeID: playerID, Amount: 400,
	})
	require.NoError(t, err)

	pools, err := env.store.Sessions().SumOpenPools(ctx, nil)
	require.NoError(t, err)
	player := env.player(t, playerID)
	treasury := env.treasury(t)

	held := int64(10_000) // single deposit funds everything
	assert.LessOrEqual(t, pools+player.Balance+player.PayoutBalance+treasury.RakeAccrued+treasury.BurnAccrued, held)
	assert.Equal(t, held, pools+player.Balance+player.PayoutBalance+treasury.RakeAccrued+treasury.BurnAccrued)
}
