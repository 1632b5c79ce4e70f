package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionState tracks the lifecycle of a wagered session.
// Settled, Refunded and Expired are terminal.
type SessionState string

const (
	SessionOpen     SessionState = "open"
	SessionSettled  SessionState = "settled"
	SessionRefunded SessionState = "refunded"
	SessionExpired  SessionState = "expired"
)

// Terminal reports whether no further mutation is permitted.
func (s SessionState) Terminal() bool {
	return s == SessionSettled || s == SessionRefunded || s == SessionExpired
}

// Session is one wagered instance of play against a game module.
type Session struct {
	ID            uuid.UUID    `json:"id"`
	GameID        string       `json:"game_id"`
	PlayerID      uuid.UUID    `json:"player_id"`
	GrossWager    int64        `json:"gross_wager"`
	NetWager      int64        `json:"net_wager"`
	RemainingPool int64        `json:"remaining_pool"`
	State         SessionState `json:"state"`
	// Abandoned is set by the owning game to make an open session refund-eligible.
	Abandoned    bool       `json:"abandoned"`
	RandomnessID *string    `json:"randomness_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// OpenSessionParams holds the input for ExecuteOpenSession.
type OpenSessionParams struct {
	GameID   string
	PlayerID uuid.UUID
	Wager    int64
	// RandomnessID optionally links the session to a randomness request;
	// an expired request makes the session refund-eligible.
	RandomnessID string
	Metadata     json.RawMessage
}

// CreditPayoutParams holds the input for ExecuteCreditPayout.
type CreditPayoutParams struct {
	SessionID uuid.UUID
	// CallerGameID is the authenticated identity of the calling game module.
	CallerGameID string
	PayeeID      uuid.UUID
	Amount       int64
	Metadata     json.RawMessage
}

// SettleSessionParams holds the input for ExecuteSettleSession.
type SettleSessionParams struct {
	SessionID    uuid.UUID
	CallerGameID string
}

// RefundSessionParams holds the input for ExecuteRefundSession.
type RefundSessionParams struct {
	SessionID uuid.UUID
}

// WithdrawParams holds the input for ExecuteWithdraw.
type WithdrawParams struct {
	PlayerID    uuid.UUID
	ExternalRef string
	Metadata    json.RawMessage
}

// FlagAbandonedParams holds the input for ExecuteFlagAbandoned.
type FlagAbandonedParams struct {
	SessionID    uuid.UUID
	CallerGameID string
}

// DepositParams holds the input for ExecuteDeposit.
type DepositParams struct {
	PlayerID    uuid.UUID
	Amount      int64
	ExternalRef string
	Metadata    json.RawMessage
}

// CommandResult is the return value from all ledger commands.
type CommandResult struct {
	Entry      *LedgerEntry
	Session    *Session
	Player     *Player
	Events     []OutboxDraft
	Idempotent bool // true if this was a duplicate that returned existing state
}
