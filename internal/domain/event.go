package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AggregateType identifies the aggregate an outbox event belongs to.
type AggregateType string

const (
	AggregateSession    AggregateType = "session"
	AggregatePlayer     AggregateType = "player"
	AggregateGame       AggregateType = "game"
	AggregateRandomness AggregateType = "randomness"
	AggregateBreaker    AggregateType = "breaker"
)

// EventType identifies an observability event. Emitted, never consumed internally.
type EventType string

const (
	EventSessionOpened        EventType = "session_opened"
	EventPayoutCredited       EventType = "payout_credited"
	EventSessionSettled       EventType = "session_settled"
	EventSessionRefunded      EventType = "session_refunded"
	EventWithdrawalPaid       EventType = "withdrawal_paid"
	EventDepositPosted        EventType = "deposit_posted"
	EventSeedCommitted        EventType = "seed_committed"
	EventSeedRevealed         EventType = "seed_revealed"
	EventSeedExpired          EventType = "seed_expired"
	EventChoiceCommitted      EventType = "choice_committed"
	EventChoiceRevealed       EventType = "choice_revealed"
	EventChoiceForfeited      EventType = "choice_forfeited"
	EventBreakerTripped       EventType = "breaker_tripped"
	EventResetRequested       EventType = "reset_requested"
	EventResetVetoed          EventType = "reset_vetoed"
	EventResetExecuted        EventType = "reset_executed"
	EventGameRegistered       EventType = "game_registered"
	EventGameRemovalRequested EventType = "game_removal_requested"
	EventGameRemovalCancelled EventType = "game_removal_cancelled"
	EventGameRemoved          EventType = "game_removed"
)

// OutboxDraft is an event row written in the same transaction as the state
// change it describes, and published asynchronously by the outbox poller.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	PartitionKey  string          `json:"partition_key"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxRow is a fetched outbox row including its sequence id.
type OutboxRow struct {
	SeqID int64
	OutboxDraft
}
