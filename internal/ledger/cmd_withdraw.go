package ledger

import (
	"context"
	"fmt"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// ExecuteWithdraw pays out the player's full pull-payment balance. The balance
// is zeroed inside the transaction, strictly before any external transfer is
// initiated, so a re-entrant caller observes zero. Never consults the breaker:
// access to already-earned funds must not depend on its state.
func (e *Engine) ExecuteWithdraw(ctx context.Context, db repository.DBTX, params domain.WithdrawParams) (*domain.CommandResult, error) {
	player, err := e.LockPlayerForUpdate(ctx, db, params.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	if params.ExternalRef != "" {
		existing, err := e.FindExistingEntry(ctx, db, params.PlayerID, domain.EntryWithdrawal, params.ExternalRef)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &domain.CommandResult{Entry: existing, Player: player, Idempotent: true}, nil
		}
	}

	amount := player.PayoutBalance
	if amount <= 0 {
		return nil, domain.ErrInsufficientBalance()
	}

	entry, updatedPlayer, err := e.PostLedgerEntry(ctx, db, domain.PostLedgerEntryParams{
		PlayerID:      params.PlayerID,
		Type:          domain.EntryWithdrawal,
		Amount:        amount,
		BalanceUpdate: domain.BalanceUpdate{PayoutBalance: -amount},
		ExternalRef:   strPtr(params.ExternalRef),
		Metadata:      ensureJSON(params.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw post: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewWalletEvent(domain.EventWithdrawalPaid, entry)}
	if err := e.emit(ctx, db, events...); err != nil {
		return nil, err
	}

	return &domain.CommandResult{
		Entry:  entry,
		Player: updatedPlayer,
		Events: events,
	}, nil
}
