package domain

import (
	"time"
)

// GameState tracks the registry lifecycle of a game module.
type GameState string

const (
	GameActive         GameState = "active"
	GamePendingRemoval GameState = "pending_removal"
	GameRemoved        GameState = "removed"
)

// BurnPolicy controls when the burn deduction is realized.
type BurnPolicy string

const (
	// BurnAtSweep deducts burn from the unclaimed pool at settlement (default).
	BurnAtSweep BurnPolicy = "at_sweep"
	// BurnAtOpen deducts burn from the net wager when the session opens.
	BurnAtOpen BurnPolicy = "at_open"
)

// EntryConfig holds the economic parameters a game registers with.
type EntryConfig struct {
	MinWager   int64      `json:"min_wager"`
	MaxWager   int64      `json:"max_wager"`
	RakeBps    int64      `json:"rake_bps"`
	BurnBps    int64      `json:"burn_bps"`
	BurnPolicy BurnPolicy `json:"burn_policy"`
	// AllowThirdPartyPayout lets the game credit payees other than the
	// session's player (spectator side-bets).
	AllowThirdPartyPayout bool `json:"allow_third_party_payout"`
}

const (
	MaxRakeBps = 1000
	MaxBurnBps = 10000
	BpsDivisor = 10000
)

// Game is a registered game module.
type Game struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Entry             EntryConfig `json:"entry"`
	State             GameState   `json:"state"`
	Paused            bool        `json:"paused"`
	RemovalEligibleAt *time.Time  `json:"removal_eligible_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// AcceptsSessions reports whether the game may open new sessions.
// A paused or pending-removal game keeps existing sessions settleable.
func (g *Game) AcceptsSessions() bool {
	return g.State == GameActive && !g.Paused
}

// Rake returns the rake deduction for a gross wager.
func (c EntryConfig) Rake(wager int64) int64 {
	return wager * c.RakeBps / BpsDivisor
}

// Burn returns the burn deduction for a base amount.
func (c EntryConfig) Burn(base int64) int64 {
	return base * c.BurnBps / BpsDivisor
}
