package domain

import (
	"fmt"
	"regexp"
)

var gameIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// ValidatePositiveAmount rejects zero and negative amounts.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return ErrValidation(fmt.Sprintf("amount must be positive, got %d", amount))
	}
	return nil
}

// ValidateGameID checks the game id slug format.
func ValidateGameID(id string) error {
	if !gameIDPattern.MatchString(id) {
		return ErrValidation(fmt.Sprintf("invalid game id %q", id))
	}
	return nil
}

// ValidateEntryConfig enforces the registry's economic bounds.
func ValidateEntryConfig(c EntryConfig) error {
	if c.RakeBps < 0 || c.RakeBps > MaxRakeBps {
		return ErrInvalidEntryConfig(fmt.Sprintf("rake_bps %d outside [0, %d]", c.RakeBps, MaxRakeBps))
	}
	if c.BurnBps < 0 || c.BurnBps > MaxBurnBps {
		return ErrInvalidEntryConfig(fmt.Sprintf("burn_bps %d outside [0, %d]", c.BurnBps, MaxBurnBps))
	}
	if c.MinWager <= 0 {
		return ErrInvalidEntryConfig(fmt.Sprintf("min_wager must be positive, got %d", c.MinWager))
	}
	if c.MaxWager < c.MinWager {
		return ErrInvalidEntryConfig(fmt.Sprintf("max_wager %d below min_wager %d", c.MaxWager, c.MinWager))
	}
	switch c.BurnPolicy {
	case BurnAtSweep, BurnAtOpen:
	case "":
		// callers default this to BurnAtSweep
	default:
		return ErrInvalidEntryConfig(fmt.Sprintf("unknown burn policy %q", c.BurnPolicy))
	}
	return nil
}
