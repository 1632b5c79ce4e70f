package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/stakehouse/platform/internal/domain"
)

// FlashAbuseGuard bounds aggregate wager volume per game (and per player)
// within a fixed rolling window. Check-and-add is a single atomic step so a
// call that would cross the ceiling fails without partially counting.
// Windows roll over implicitly; there is no reset operation.
type FlashAbuseGuard struct {
	mu            sync.Mutex
	window        time.Duration
	gameCeiling   int64
	playerCeiling int64
	gameOverrides map[string]int64
	buckets       map[string]*volumeBucket
	now           func() time.Time
}

type volumeBucket struct {
	windowStart time.Time
	volume      int64
}

// NewFlashAbuseGuard creates a guard with per-game and per-player ceilings.
// A ceiling of 0 disables that dimension.
func NewFlashAbuseGuard(window time.Duration, gameCeiling, playerCeiling int64) *FlashAbuseGuard {
	return &FlashAbuseGuard{
		window:        window,
		gameCeiling:   gameCeiling,
		playerCeiling: playerCeiling,
		gameOverrides: make(map[string]int64),
		buckets:       make(map[string]*volumeBucket),
		now:           time.Now,
	}
}

// Allow atomically checks both ceilings and, if within bounds, adds amount to
// the current window's volume.
func (g *FlashAbuseGuard) Allow(gameID, playerID string, amount int64) domain.GuardResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	gameCeiling := g.gameCeiling
	if override, ok := g.gameOverrides[gameID]; ok {
		gameCeiling = override
	}

	gameKey := "game:" + gameID
	playerKey := "player:" + playerID

	if gameCeiling > 0 && g.projectedLocked(gameKey, now)+amount > gameCeiling {
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("game %s would exceed window ceiling %d", gameID, gameCeiling),
			Guard:   "flash_abuse",
		}
	}
	if g.playerCeiling > 0 && g.projectedLocked(playerKey, now)+amount > g.playerCeiling {
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("player %s would exceed window ceiling %d", playerID, g.playerCeiling),
			Guard:   "flash_abuse",
		}
	}

	g.addLocked(gameKey, now, amount)
	if g.playerCeiling > 0 {
		g.addLocked(playerKey, now, amount)
	}
	return domain.GuardResult{Allowed: true}
}

// Rollback returns an admitted amount to the window after the surrounding
// transaction fails, so aborted wagers do not consume capacity. A bucket that
// rolled over since the Allow is left alone.
func (g *FlashAbuseGuard) Rollback(gameID, playerID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	keys := []string{"game:" + gameID}
	if g.playerCeiling > 0 {
		keys = append(keys, "player:"+playerID)
	}
	for _, key := range keys {
		b, ok := g.buckets[key]
		if !ok || now.Sub(b.windowStart) >= g.window {
			continue
		}
		b.volume -= amount
		if b.volume < 0 {
			b.volume = 0
		}
	}
}

// SetGameCeiling overrides the per-window ceiling for one game.
func (g *FlashAbuseGuard) SetGameCeiling(gameID string, ceiling int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gameOverrides[gameID] = ceiling
}

// WindowVolume returns the volume counted against a game in the current window.
func (g *FlashAbuseGuard) WindowVolume(gameID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.projectedLocked("game:"+gameID, g.now())
}

func (g *FlashAbuseGuard) projectedLocked(key string, now time.Time) int64 {
	b, ok := g.buckets[key]
	if !ok || now.Sub(b.windowStart) >= g.window {
		return 0
	}
	return b.volume
}

func (g *FlashAbuseGuard) addLocked(key string, now time.Time, amount int64) {
	b, ok := g.buckets[key]
	if !ok || now.Sub(b.windowStart) >= g.window {
		g.buckets[key] = &volumeBucket{windowStart: now, volume: amount}
		return
	}
	b.volume += amount
}
