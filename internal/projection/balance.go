package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stakehouse/platform/internal/domain"
)

// BalanceProjection is the cached read model of a player's balances.
type BalanceProjection struct {
	PlayerID      string `json:"player_id"`
	Balance       int64  `json:"balance"`
	PayoutBalance int64  `json:"payout_balance"`
	UpdatedAt     string `json:"updated_at"`
}

const balanceTTL = 5 * time.Minute

func balanceKey(playerID string) string {
	return fmt.Sprintf("projection:balance:%s", playerID)
}

// UpdateBalance caches a player's balance projection.
func UpdateBalance(ctx context.Context, store Store, p BalanceProjection) error {
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return SetJSON(ctx, store, balanceKey(p.PlayerID), p, balanceTTL)
}

// GetBalance retrieves a cached player balance projection.
func GetBalance(ctx context.Context, store Store, playerID string) (*BalanceProjection, error) {
	var p BalanceProjection
	if err := GetJSON(ctx, store, balanceKey(playerID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// InvalidateBalance removes a player's cached balance.
func InvalidateBalance(ctx context.Context, store Store, playerID string) error {
	return store.Delete(ctx, balanceKey(playerID))
}

// Updater feeds the balance read model from published outbox events.
// Registered as an outbox poller sink.
type Updater struct {
	store  Store
	logger *slog.Logger
}

// NewUpdater creates a projection updater.
func NewUpdater(store Store, logger *slog.Logger) *Updater {
	return &Updater{store: store, logger: logger}
}

// HandleEvent applies one published event to the read model. Wallet events
// carry the post-update balance snapshot; payout credits only invalidate the
// payee so the next read refreshes from the ledger.
func (u *Updater) HandleEvent(ctx context.Context, row domain.OutboxRow) {
	switch row.EventType {
	case domain.EventDepositPosted, domain.EventWithdrawalPaid:
		var entry domain.LedgerEntry
		if err := json.Unmarshal(row.Payload, &entry); err != nil {
			u.logger.Warn("balance projection decode failed", "event_id", row.EventID, "error", err)
			return
		}
		p := BalanceProjection{
			PlayerID:      entry.PlayerID.String(),
			Balance:       entry.BalanceAfter,
			PayoutBalance: entry.PayoutBalanceAfter,
		}
		if err := UpdateBalance(ctx, u.store, p); err != nil {
			u.logger.Warn("balance projection update failed", "player_id", p.PlayerID, "error", err)
		}

	case domain.EventPayoutCredited, domain.EventSessionRefunded:
		var payload struct {
			PayeeID  string `json:"payee_id"`
			PlayerID string `json:"player_id"`
		}
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return
		}
		playerID := payload.PayeeID
		if playerID == "" {
			playerID = payload.PlayerID
		}
		if playerID == "" {
			return
		}
		if err := InvalidateBalance(ctx, u.store, playerID); err != nil {
			u.logger.Warn("balance projection invalidate failed", "player_id", playerID, "error", err)
		}
	}
}
