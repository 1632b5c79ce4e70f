package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func draft(agg AggregateType, aggID string, evt EventType, payload interface{}) OutboxDraft {
	body, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evt,
		PartitionKey:  aggID,
		Headers:       json.RawMessage(`{}`),
		Payload:       body,
		OccurredAt:    time.Now(),
	}
}

// NewSessionEvent creates a session lifecycle event carrying the full session.
func NewSessionEvent(evt EventType, s *Session) OutboxDraft {
	return draft(AggregateSession, s.ID.String(), evt, s)
}

// NewPayoutCreditedEvent records a pool-bounded payout credit.
func NewPayoutCreditedEvent(s *Session, payee uuid.UUID, amount int64) OutboxDraft {
	return draft(AggregateSession, s.ID.String(), EventPayoutCredited, map[string]interface{}{
		"session_id":     s.ID.String(),
		"game_id":        s.GameID,
		"payee_id":       payee.String(),
		"amount":         amount,
		"remaining_pool": s.RemainingPool,
	})
}

// NewWalletEvent creates a player wallet event for a ledger entry.
func NewWalletEvent(evt EventType, entry *LedgerEntry) OutboxDraft {
	return draft(AggregatePlayer, entry.PlayerID.String(), evt, entry)
}

// NewSeedEvent creates a randomness lifecycle event.
func NewSeedEvent(evt EventType, req *RandomnessRequest) OutboxDraft {
	return draft(AggregateRandomness, req.PurposeID, evt, map[string]interface{}{
		"purpose_id":    req.PurposeID,
		"owner_game_id": req.OwnerGameID,
		"target_index":  req.TargetIndex,
		"state":         req.State,
	})
}

// NewChoiceEvent creates a commit-reveal lifecycle event.
func NewChoiceEvent(evt EventType, c *ChoiceCommitment) OutboxDraft {
	return draft(AggregateSession, c.SessionID, evt, map[string]interface{}{
		"session_id": c.SessionID,
		"player_id":  c.PlayerID,
		"state":      c.State,
	})
}

// NewBreakerEvent creates a circuit breaker event.
func NewBreakerEvent(evt EventType, guardian string, status BreakerStatus) OutboxDraft {
	return draft(AggregateBreaker, "breaker", evt, map[string]interface{}{
		"guardian": guardian,
		"state":    status.State,
	})
}

// NewGameEvent creates a registry lifecycle event.
func NewGameEvent(evt EventType, g *Game) OutboxDraft {
	return draft(AggregateGame, g.ID, evt, g)
}
