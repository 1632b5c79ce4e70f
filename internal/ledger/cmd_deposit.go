package ledger

import (
	"context"
	"fmt"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// ExecuteDeposit credits funds from an external payment rail into the player's
// wagerable balance. Idempotent on the rail's external reference.
func (e *Engine) ExecuteDeposit(ctx context.Context, db repository.DBTX, params domain.DepositParams) (*domain.CommandResult, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, err
	}

	player, err := e.LockPlayerForUpdate(ctx, db, params.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	if params.ExternalRef != "" {
		existing, err := e.FindExistingEntry(ctx, db, params.PlayerID, domain.EntryDeposit, params.ExternalRef)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &domain.CommandResult{Entry: existing, Player: player, Idempotent: true}, nil
		}
	}

	entry, updatedPlayer, err := e.PostLedgerEntry(ctx, db, domain.PostLedgerEntryParams{
		PlayerID:      params.PlayerID,
		Type:          domain.EntryDeposit,
		Amount:        params.Amount,
		BalanceUpdate: domain.BalanceUpdate{Balance: params.Amount},
		ExternalRef:   strPtr(params.ExternalRef),
		Metadata:      ensureJSON(params.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("deposit post: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewWalletEvent(domain.EventDepositPosted, entry)}
	if err := e.emit(ctx, db, events...); err != nil {
		return nil, err
	}

	return &domain.CommandResult{
		Entry:  entry,
		Player: updatedPlayer,
		Events: events,
	}, nil
}
