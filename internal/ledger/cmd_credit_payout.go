package ledger

import (
	"context"
	"fmt"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// ExecuteCreditPayout credits a payout from an open session's remaining pool
// into the payee's pull-payment balance. Only the game that opened the session
// may credit against it, and the pool bounds the lifetime total.
func (e *Engine) ExecuteCreditPayout(ctx context.Context, db repository.DBTX, params domain.CreditPayoutParams) (*domain.CommandResult, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, err
	}
	if result := e.breaker.Allow(); !result.Allowed {
		return nil, domain.ErrBreakerTripped()
	}

	session, err := e.LockSessionForUpdate(ctx, db, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("credit payout: %w", err)
	}
	if session.State != domain.SessionOpen {
		return nil, domain.ErrSessionNotOpen(session.ID.String())
	}
	if session.GameID != params.CallerGameID {
		return nil, domain.ErrUnauthorizedGame(params.CallerGameID)
	}
	if params.Amount > session.RemainingPool {
		return nil, domain.ErrPayoutExceedsPool(params.Amount, session.RemainingPool)
	}

	if params.PayeeID != session.PlayerID {
		game, err := e.games.FindByID(ctx, db, session.GameID)
		if err != nil {
			return nil, fmt.Errorf("credit payout: %w", err)
		}
		if game == nil || !game.Entry.AllowThirdPartyPayout {
			return nil, domain.ErrForbidden(fmt.Sprintf("game %s may only pay the session player", session.GameID))
		}
	}

	if _, err := e.LockPlayerForUpdate(ctx, db, params.PayeeID); err != nil {
		return nil, fmt.Errorf("credit payout: %w", err)
	}

	session.RemainingPool -= params.Amount
	if err := e.sessions.Update(ctx, db, session); err != nil {
		return nil, fmt.Errorf("decrement pool: %w", err)
	}

	sid := session.ID
	entry, updatedPlayer, err := e.PostLedgerEntry(ctx, db, domain.PostLedgerEntryParams{
		PlayerID:      params.PayeeID,
		SessionID:     &sid,
		Type:          domain.EntryPayoutCredit,
		Amount:        params.Amount,
		BalanceUpdate: domain.BalanceUpdate{PayoutBalance: params.Amount},
		Metadata:      ensureJSON(params.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("credit payout post: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewPayoutCreditedEvent(session, params.PayeeID, params.Amount)}
	if err := e.emit(ctx, db, events...); err != nil {
		return nil, err
	}

	return &domain.CommandResult{
		Entry:   entry,
		Session: session,
		Player:  updatedPlayer,
		Events:  events,
	}, nil
}
