package domain

import (
	"time"
)

// RandomnessState tracks a future-commitment randomness request.
type RandomnessState string

const (
	RandomnessPending  RandomnessState = "pending"
	RandomnessRevealed RandomnessState = "revealed"
	RandomnessExpired  RandomnessState = "expired"
)

// RandomnessRequest binds a purpose to the fingerprint of a future log record.
// Seeds are never recomputed once revealed.
type RandomnessRequest struct {
	PurposeID   string          `json:"purpose_id"`
	OwnerGameID string          `json:"owner_game_id"`
	TargetIndex uint64          `json:"target_index"`
	State       RandomnessState `json:"state"`
	Seed        []byte          `json:"seed,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

// ChoiceState tracks a player's hidden-choice commitment.
type ChoiceState string

const (
	ChoiceCommitted ChoiceState = "committed"
	ChoiceRevealed  ChoiceState = "revealed"
	ChoiceForfeited ChoiceState = "forfeited"
)

// ChoiceCommitment stores hash(choice, secret, player) until the reveal.
type ChoiceCommitment struct {
	SessionID      string      `json:"session_id"`
	PlayerID       string      `json:"player_id"`
	CommitHash     []byte      `json:"commit_hash"`
	State          ChoiceState `json:"state"`
	Choice         string      `json:"choice,omitempty"`
	RevealDeadline time.Time   `json:"reveal_deadline"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}
