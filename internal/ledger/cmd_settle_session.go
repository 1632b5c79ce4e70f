package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// ExecuteSettleSession closes an open session once the owning game's outcome
// logic has finished crediting. Any unclaimed remaining pool is swept to the
// treasury as burn, so partial credits cannot be topped up later. A repeat call
// on a settled session is a no-op error, never a double sweep.
func (e *Engine) ExecuteSettleSession(ctx context.Context, db repository.DBTX, params domain.SettleSessionParams) (*domain.CommandResult, error) {
	session, err := e.LockSessionForUpdate(ctx, db, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("settle session: %w", err)
	}
	if session.State != domain.SessionOpen {
		return nil, domain.ErrSessionNotOpen(session.ID.String())
	}
	if session.GameID != params.CallerGameID {
		return nil, domain.ErrUnauthorizedGame(params.CallerGameID)
	}

	sweep := session.RemainingPool
	now := time.Now()
	session.RemainingPool = 0
	session.State = domain.SessionSettled
	session.ClosedAt = &now
	if err := e.sessions.Update(ctx, db, session); err != nil {
		return nil, fmt.Errorf("settle session: %w", err)
	}

	sid := session.ID
	entry, updatedPlayer, err := e.PostLedgerEntry(ctx, db, domain.PostLedgerEntryParams{
		PlayerID:       session.PlayerID,
		SessionID:      &sid,
		Type:           domain.EntrySettleSweep,
		Amount:         sweep,
		TreasuryUpdate: domain.TreasuryUpdate{Burn: sweep},
		Metadata:       mergeMeta(nil, map[string]interface{}{"swept": sweep}),
	})
	if err != nil {
		return nil, fmt.Errorf("settle sweep post: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewSessionEvent(domain.EventSessionSettled, session)}
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
