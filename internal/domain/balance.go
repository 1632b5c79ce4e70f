package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Player holds the two per-player accumulators the ledger owns.
// Balance is deposited funds available to wager; PayoutBalance is the
// pull-payment accumulator credited by game payouts and refunds.
type Player struct {
	ID            uuid.UUID `json:"id"`
	Balance       int64     `json:"balance"`
	PayoutBalance int64     `json:"payout_balance"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BalanceUpdate describes which player columns to update and by how much.
// Used by PostLedgerEntry to build the dynamic UPDATE statement.
type BalanceUpdate struct {
	Balance       int64 // delta for balance column
	PayoutBalance int64 // delta for payout_balance column
}

// HasBalanceDelta reports whether the wagerable balance changes.
func (u BalanceUpdate) HasBalanceDelta() bool { return u.Balance != 0 }

// HasPayoutDelta reports whether the payout balance changes.
func (u BalanceUpdate) HasPayoutDelta() bool { return u.PayoutBalance != 0 }

// Treasury accumulates rake and burn. Read by administrative reporting only.
type Treasury struct {
	RakeAccrued int64     `json:"rake_accrued"`
	BurnAccrued int64     `json:"burn_accrued"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TreasuryUpdate is the delta applied to the treasury row.
type TreasuryUpdate struct {
	Rake int64
	Burn int64
}

// EntryType enumerates all ledger entry types.
type EntryType string

const (
	EntryDeposit      EntryType = "deposit"
	EntrySessionOpen  EntryType = "session_open"
	EntryPayoutCredit EntryType = "payout_credit"
	EntrySettleSweep  EntryType = "settle_sweep"
	EntryRefund       EntryType = "refund"
	EntryWithdrawal   EntryType = "withdrawal"
)

// LedgerEntry is an append-only row recording one money movement.
type LedgerEntry struct {
	ID                 uuid.UUID       `json:"id"`
	PlayerID           uuid.UUID       `json:"player_id"`
	SessionID          *uuid.UUID      `json:"session_id,omitempty"`
	Type               EntryType       `json:"type"`
	Amount             int64           `json:"amount"`
	BalanceAfter       int64           `json:"balance_after"`
	PayoutBalanceAfter int64           `json:"payout_balance_after"`
	ExternalRef        *string         `json:"external_ref,omitempty"`
	Metadata           json.RawMessage `json:"metadata"`
	CreatedAt          time.Time       `json:"created_at"`
}

// PostLedgerEntryParams is the input to the atomic PostLedgerEntry operation.
type PostLedgerEntryParams struct {
	PlayerID       uuid.UUID
	SessionID      *uuid.UUID
	Type           EntryType
	Amount         int64
	BalanceUpdate  BalanceUpdate
	TreasuryUpdate TreasuryUpdate
	ExternalRef    *string
	Metadata       json.RawMessage
}
