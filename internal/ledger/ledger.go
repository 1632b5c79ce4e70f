package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/guard"
	"github.com/stakehouse/platform/internal/repository"
)

// Engine provides the foundational ledger operations:
//  1. LockPlayerForUpdate / LockSessionForUpdate — row-level pessimistic locks
//  2. FindExistingEntry — idempotency check
//  3. PostLedgerEntry — atomic balance update + append-only insert
//
// All commands run inside a caller-provided transaction (DBTX); the service
// layer wraps each command in TxRunner.WithinTx so a rejection error rolls the
// whole unit back.
type Engine struct {
	players    repository.PlayerRepository
	games      repository.GameRepository
	sessions   repository.SessionRepository
	entries    repository.EntryRepository
	treasury   repository.TreasuryRepository
	randomness repository.RandomnessRepository
	outbox     repository.OutboxRepository

	breaker    *guard.CircuitBreaker
	flashGuard *guard.FlashAbuseGuard
}

// NewEngine creates a ledger engine with the given repositories and guards.
func NewEngine(
	players repository.PlayerRepository,
	games repository.GameRepository,
	sessions repository.SessionRepository,
	entries repository.EntryRepository,
	treasury repository.TreasuryRepository,
	randomness repository.RandomnessRepository,
	outbox repository.OutboxRepository,
	breaker *guard.CircuitBreaker,
	flashGuard *guard.FlashAbuseGuard,
) *Engine {
	return &Engine{
		players:    players,
		games:      games,
		sessions:   sessions,
		entries:    entries,
		treasury:   treasury,
		randomness: randomness,
		outbox:     outbox,
		breaker:    breaker,
		flashGuard: flashGuard,
	}
}

// LockPlayerForUpdate acquires a row-level lock and returns the player.
// Must be called within a transaction.
func (e *Engine) LockPlayerForUpdate(ctx context.Context, db repository.DBTX, playerID uuid.UUID) (*domain.Player, error) {
	player, err := e.players.LockForUpdate(ctx, db, playerID)
	if err != nil {
		return nil, fmt.Errorf("lock player: %w", err)
	}
	if player == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	return player, nil
}

// LockSessionForUpdate acquires a row-level lock and returns the session, so
// the remaining-pool check-then-decrement is never racy.
func (e *Engine) LockSessionForUpdate(ctx context.Context, db repository.DBTX, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := e.sessions.LockForUpdate(ctx, db, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrNotFound("session", sessionID.String())
	}
	return session, nil
}

// FindExistingEntry checks the idempotency index for a duplicate entry.
// Returns nil if no duplicate found.
func (e *Engine) FindExistingEntry(ctx context.Context, db repository.DBTX, playerID uuid.UUID, entryType domain.EntryType, externalRef string) (*domain.LedgerEntry, error) {
	existing, err := e.entries.FindByExternalRef(ctx, db, playerID, entryType, externalRef)
	if err != nil {
		return nil, fmt.Errorf("find existing entry: %w", err)
	}
	return existing, nil
}

// PostLedgerEntry atomically updates player balances, applies treasury deltas
// and inserts an append-only ledger entry. This is the core write primitive —
// all commands delegate to this.
func (e *Engine) PostLedgerEntry(ctx context.Context, db repository.DBTX, params domain.PostLedgerEntryParams) (*domain.LedgerEntry, *domain.Player, error) {
	var player *domain.Player
	var err error

	// Server-side arithmetic; skipped when the command only moves treasury.
	if params.BalanceUpdate.HasBalanceDelta() || params.BalanceUpdate.HasPayoutDelta() {
		player, err = e.players.UpdateBalances(ctx, db, params.PlayerID, params.BalanceUpdate)
	} else {
		player, err = e.players.FindByID(ctx, db, params.PlayerID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("update balances: %w", err)
	}
	if player == nil {
		return nil, nil, domain.ErrNotFound("player", params.PlayerID.String())
	}

	if params.TreasuryUpdate.Rake != 0 || params.TreasuryUpdate.Burn != 0 {
		if _, err := e.treasury.Apply(ctx, db, params.TreasuryUpdate); err != nil {
			return nil, nil, fmt.Errorf("apply treasury delta: %w", err)
		}
	}

	entry, err := e.entries.Insert(ctx, db, params, player.Balance, player.PayoutBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, player, nil
}

// emit writes observability events to the outbox within the same transaction
// as the state change they describe.
func (e *Engine) emit(ctx context.Context, db repository.DBTX, events ...domain.OutboxDraft) error {
	for _, evt := range events {
		if err := e.outbox.Insert(ctx, db, evt); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}
