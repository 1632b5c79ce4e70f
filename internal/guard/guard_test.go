package guard

import (
	"testing"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCircuitBreaker_ArmedByDefault(t *testing.T) {
	b := NewCircuitBreaker(12 * time.Hour)
	assert.True(t, b.Allow().Allowed)
	assert.Equal(t, domain.BreakerArmed, b.Status().State)
}

func TestCircuitBreaker_TripBlocksImmediately(t *testing.T) {
	b := NewCircuitBreaker(12 * time.Hour)
	b.Trip("guardian-1")

	result := b.Allow()
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, "guardian-1", b.Status().TrippedBy)
}

func TestCircuitBreaker_ResetRequiresTimelock(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(12 * time.Hour)
	b.now = clock.now

	b.Trip("guardian-1")
	status, err := b.RequestReset("guardian-2")
	require.NoError(t, err)
	assert.Equal(t, domain.BreakerPendingReset, status.State)
	assert.False(t, b.Allow().Allowed, "pending reset still blocks")

	clock.advance(11 * time.Hour)
	assert.False(t, b.Allow().Allowed)

	clock.advance(2 * time.Hour)
	assert.True(t, b.Allow().Allowed)
	assert.Equal(t, domain.BreakerArmed, b.Status().State)
}

func TestCircuitBreaker_VetoReturnsToTripped(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(12 * time.Hour)
	b.now = clock.now

	b.Trip("guardian-1")
	_, err := b.RequestReset("guardian-1")
	require.NoError(t, err)

	status, err := b.VetoReset("guardian-2")
	require.NoError(t, err)
	assert.Equal(t, domain.BreakerTrippedState, status.State)

	clock.advance(24 * time.Hour)
	assert.False(t, b.Allow().Allowed, "vetoed reset must not re-arm")
}

func TestCircuitBreaker_ResetWhileArmedRejected(t *testing.T) {
	b := NewCircuitBreaker(12 * time.Hour)
	_, err := b.RequestReset("guardian-1")
	require.Error(t, err)
}

func TestCircuitBreaker_VetoWithoutPendingRejected(t *testing.T) {
	b := NewCircuitBreaker(12 * time.Hour)
	b.Trip("guardian-1")
	_, err := b.VetoReset("guardian-2")
	require.Error(t, err)
}

func TestFlashAbuseGuard_CeilingCrossingFails(t *testing.T) {
	g := NewFlashAbuseGuard(time.Minute, 1000, 0)

	for i := 0; i < 9; i++ {
		require.True(t, g.Allow("crash", "p1", 100).Allowed, "wager %d", i+1)
	}
	result := g.Allow("crash", "p1", 101)
	assert.False(t, result.Allowed)
	assert.Equal(t, "flash_abuse", result.Guard)

	// the failed call must not have counted
	assert.Equal(t, int64(900), g.WindowVolume("crash"))
	assert.True(t, g.Allow("crash", "p1", 100).Allowed)
}

func TestFlashAbuseGuard_WindowRollsOver(t *testing.T) {
	clock := newFakeClock()
	g := NewFlashAbuseGuard(time.Minute, 500, 0)
	g.now = clock.now

	require.True(t, g.Allow("dice", "p1", 500).Allowed)
	assert.False(t, g.Allow("dice", "p1", 1).Allowed)

	clock.advance(61 * time.Second)
	assert.True(t, g.Allow("dice", "p1", 500).Allowed)
}

func TestFlashAbuseGuard_PerGameOverride(t *testing.T) {
	g := NewFlashAbuseGuard(time.Minute, 1000, 0)
	g.SetGameCeiling("duel", 200)

	assert.True(t, g.Allow("duel", "p1", 200).Allowed)
	assert.False(t, g.Allow("duel", "p2", 1).Allowed)
	assert.True(t, g.Allow("crash", "p3", 900).Allowed, "other games keep the default")
}

func TestFlashAbuseGuard_PlayerCeiling(t *testing.T) {
	g := NewFlashAbuseGuard(time.Minute, 0, 300)

	assert.True(t, g.Allow("crash", "p1", 300).Allowed)
	assert.False(t, g.Allow("dice", "p1", 1).Allowed, "player ceiling spans games")
	assert.True(t, g.Allow("dice", "p2", 300).Allowed)
}

func TestFlashAbuseGuard_RollbackReturnsCapacity(t *testing.T) {
	g := NewFlashAbuseGuard(time.Minute, 1000, 1000)

	require.True(t, g.Allow("crash", "p1", 800).Allowed)
	assert.False(t, g.Allow("crash", "p2", 300).Allowed)

	// An aborted wager hands its admitted volume back.
	g.Rollback("crash", "p1", 800)
	assert.Equal(t, int64(0), g.WindowVolume("crash"))
	assert.True(t, g.Allow("crash", "p1", 900).Allowed, "player window freed too")
}

func TestFlashAbuseGuard_RollbackSkipsRolledOverWindow(t *testing.T) {
	clock := newFakeClock()
	g := NewFlashAbuseGuard(time.Minute, 500, 0)
	g.now = clock.now

	require.True(t, g.Allow("dice", "p1", 400).Allowed)
	clock.advance(61 * time.Second)
	g.Rollback("dice", "p1", 400)

	// The expired bucket is untouched; the new window starts clean.
	require.True(t, g.Allow("dice", "p1", 500).Allowed)
	assert.Equal(t, int64(500), g.WindowVolume("dice"))
}

func TestGuardianSet_HandoverDelay(t *testing.T) {
	clock := newFakeClock()
	s := NewGuardianSet([]string{"alice"}, 72*time.Hour)
	s.now = clock.now

	effective, err := s.Propose("alice", "bob", true)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(72*time.Hour), effective)
	assert.False(t, s.IsGuardian("bob"))

	clock.advance(73 * time.Hour)
	assert.True(t, s.IsGuardian("bob"))
}

func TestGuardianSet_NonGuardianCannotPropose(t *testing.T) {
	s := NewGuardianSet([]string{"alice"}, time.Hour)
	_, err := s.Propose("mallory", "mallory", true)
	require.Error(t, err)
}

func TestGuardianSet_CancelProposal(t *testing.T) {
	clock := newFakeClock()
	s := NewGuardianSet([]string{"alice"}, time.Hour)
	s.now = clock.now

	_, err := s.Propose("alice", "bob", true)
	require.NoError(t, err)
	require.NoError(t, s.CancelProposal("alice", "bob"))

	clock.advance(2 * time.Hour)
	assert.False(t, s.IsGuardian("bob"))
}

func TestGuardianSet_RemovalDelayedAndLastGuardianKept(t *testing.T) {
	clock := newFakeClock()
	s := NewGuardianSet([]string{"alice", "bob"}, time.Hour)
	s.now = clock.now

	_, err := s.Propose("alice", "bob", false)
	require.NoError(t, err)
	assert.True(t, s.IsGuardian("bob"))

	clock.advance(2 * time.Hour)
	assert.False(t, s.IsGuardian("bob"))

	_, err = s.Propose("alice", "alice", false)
	require.Error(t, err, "last guardian cannot be removed")
}
