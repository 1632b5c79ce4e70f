package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// ExecuteOpenSession debits the player's wagerable balance, realizes rake (and
// burn, for games configured to take it up front) into the treasury, and opens
// a session whose remaining pool bounds every later payout.
func (e *Engine) ExecuteOpenSession(ctx context.Context, db repository.DBTX, params domain.OpenSessionParams) (*domain.CommandResult, error) {
	if err := domain.ValidatePositiveAmount(params.Wager); err != nil {
		return nil, err
	}
	if result := e.breaker.Allow(); !result.Allowed {
		return nil, domain.ErrBreakerTripped()
	}

	game, err := e.games.FindByID(ctx, db, params.GameID)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if game == nil || !game.AcceptsSessions() {
		return nil, domain.ErrGameNotActive(params.GameID)
	}
	if params.Wager < game.Entry.MinWager || params.Wager > game.Entry.MaxWager {
		return nil, domain.ErrWagerOutOfBounds(params.Wager, game.Entry.MinWager, game.Entry.MaxWager)
	}

	player, err := e.LockPlayerForUpdate(ctx, db, params.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if player.Balance < params.Wager {
		return nil, domain.ErrInsufficientBalance()
	}

	// Last gate before any mutation: the guard's check-and-add is atomic and
	// in-memory, so only wagers that commit should count against the window;
	// the error paths below return the admitted amount.
	if result := e.flashGuard.Allow(params.GameID, params.PlayerID.String(), params.Wager); !result.Allowed {
		return nil, domain.ErrAbuseGuardExceeded(params.GameID)
	}

	rake := game.Entry.Rake(params.Wager)
	net := params.Wager - rake
	var burn int64
	if game.Entry.BurnPolicy == domain.BurnAtOpen {
		burn = game.Entry.Burn(net)
		net -= burn
	}

	session := &domain.Session{
		ID:            uuid.New(),
		GameID:        params.GameID,
		PlayerID:      params.PlayerID,
		GrossWager:    params.Wager,
		NetWager:      net,
		RemainingPool: net,
		State:         domain.SessionOpen,
		CreatedAt:     time.Now(),
	}
	if params.RandomnessID != "" {
		session.RandomnessID = &params.RandomnessID
	}
	if err := e.sessions.Create(ctx, db, session); err != nil {
		e.flashGuard.Rollback(params.GameID, params.PlayerID.String(), params.Wager)
		return nil, fmt.Errorf("create session: %w", err)
	}

	sid := session.ID
	entry, updatedPlayer, err := e.PostLedgerEntry(ctx, db, domain.PostLedgerEntryParams{
		PlayerID:       params.PlayerID,
		SessionID:      &sid,
		Type:           domain.EntrySessionOpen,
		Amount:         params.Wager,
		BalanceUpdate:  domain.BalanceUpdate{Balance: -params.Wager},
		TreasuryUpdate: domain.TreasuryUpdate{Rake: rake, Burn: burn},
		Metadata: mergeMeta(params.Metadata, map[string]interface{}{
			"rake": rake,
			"burn": burn,
		}),
	})
	if err != nil {
		e.flashGuard.Rollback(params.GameID, params.PlayerID.String(), params.Wager)
		return nil, fmt.Errorf("open session post: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewSessionEvent(domain.EventSessionOpened, session)}
	if err := e.emit(ctx, db, events...); err != nil {
		e.flashGuard.Rollback(params.GameID, params.PlayerID.String(), params.Wager)
		return nil, err
	}

	return &domain.CommandResult{
		Entry:   entry,
		Session: session,
		Player:  updatedPlayer,
		Events:  events,
	}, nil
}
