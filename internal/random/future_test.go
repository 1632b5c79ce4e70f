package random

import (
	"context"
	"testing"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBeacon(t *testing.T, window uint64) (*Beacon, *SimulatedLog) {
	t.Helper()
	store := repository.NewMemoryStore()
	log := NewSimulatedLog(window)
	return NewBeacon(log, store.Randomness(), store.Outbox(), 10), log
}

func TestBeacon_CommitTargetsFutureIndex(t *testing.T) {
	beacon, log := newTestBeacon(t, 0)
	ctx := context.Background()
	log.Advance(100)

	req, err := beacon.Commit(ctx, nil, "purpose-1", "crash")
	require.NoError(t, err)
	assert.Equal(t, uint64(110), req.TargetIndex)
	assert.Equal(t, domain.RandomnessPending, req.State)

	_, err = beacon.Commit(ctx, nil, "purpose-1", "crash")
	require.Error(t, err)
	assert.Equal(t, "ALREADY_COMMITTED", err.(*domain.AppError).Code)
}

func TestBeacon_RevealTooEarly(t *testing.T) {
	beacon, log := newTestBeacon(t, 0)
	ctx := context.Background()
	log.Advance(100)

	_, err := beacon.Commit(ctx, nil, "purpose-1", "crash")
	require.NoError(t, err)

	log.Advance(5) // current 105, target 110
	_, err = beacon.Reveal(ctx, nil, "purpose-1")
	require.Error(t, err)
	assert.Equal(t, "REVEAL_TOO_EARLY", err.(*domain.AppError).Code)
}

func TestBeacon_RevealIsIdempotent(t *testing.T) {
	beacon, log := newTestBeacon(t, 0)
	ctx := context.Background()
	log.Advance(100)

	_, err := beacon.Commit(ctx, nil, "purpose-1", "crash")
	require.NoError(t, err)
	log.Advance(20)

	first, err := beacon.Reveal(ctx, nil, "purpose-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RandomnessRevealed, first.State)
	require.NotEmpty(t, first.Seed)

	second, err := beacon.Reveal(ctx, nil, "purpose-1")
	require.NoError(t, err)
	assert.Equal(t, first.Seed, second.Seed)
}

func TestBeacon_SeedBoundToPurpose(t *testing.T) {
	beacon, log := newTestBeacon(t, 0)
	ctx := context.Background()
	log.Advance(100)

	// two purposes committed at the same index share a target record
	reqA, err := beacon.Commit(ctx, nil, "purpose-a", "crash")
	require.NoError(t, err)
	reqB, err := beacon.Commit(ctx, nil, "purpose-b", "dice")
	require.NoError(t, err)
	require.Equal(t, reqA.TargetIndex, reqB.TargetIndex)

	log.Advance(20)
	revealedA, err := beacon.Reveal(ctx, nil, "purpose-a")
	require.NoError(t, err)
	revealedB, err := beacon.Reveal(ctx, nil, "purpose-b")
	require.NoError(t, err)
	assert.NotEqual(t, revealedA.Seed, revealedB.Seed)
}

func TestBeacon_ExpiryOutsideWindow(t *testing.T) {
	beacon, log := newTestBeacon(t, 256)
	ctx := context.Background()
	log.Advance(1050)

	_, err := beacon.Commit(ctx, nil, "purpose-1", "crash")
	require.NoError(t, err)

	// reveal attempted far past the native window with no archive fallback
	log.Advance(300)
	req, err := beacon.Reveal(ctx, nil, "purpose-1")
	require.NoError(t, err, "expiry is a committed state transition, not an error")
	assert.Equal(t, domain.RandomnessExpired, req.State)
	assert.Empty(t, req.Seed)

	// permanently unrecoverable from here on
	_, err = beacon.Reveal(ctx, nil, "purpose-1")
	require.Error(t, err)
	assert.Equal(t, "SEED_UNRECOVERABLE", err.(*domain.AppError).Code)
}

func TestBeacon_RevealUnknownPurpose(t *testing.T) {
	beacon, _ := newTestBeacon(t, 0)
	_, err := beacon.Reveal(context.Background(), nil, "ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", err.(*domain.AppError).Code)
}

func TestDeriveSubSeed_Independent(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")
	a := DeriveSubSeed(seed, "card")
	b := DeriveSubSeed(seed, "suit")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, DeriveSubSeed(seed, "card"), "derivation is deterministic")
}

func TestSeedToRange_Bounds(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")
	for _, bounds := range [][2]uint64{{0, 1}, {1, 6}, {100, 100}, {0, ^uint64(0) >> 1}} {
		v := SeedToRange(DeriveSubSeed(seed, "roll"), bounds[0], bounds[1])
		assert.GreaterOrEqual(t, v, bounds[0])
		assert.LessOrEqual(t, v, bounds[1])
	}

	// distribution sanity over a d6
	counts := make(map[uint64]int)
	for i := 0; i < 600; i++ {
		sub := DeriveSubSeed(seed, string(rune(i)))
		counts[SeedToRange(sub, 1, 6)]++
	}
	for face := uint64(1); face <= 6; face++ {
		assert.Greater(t, counts[face], 0, "face %d never drawn", face)
	}
}

func TestSeedToBool_Degenerate(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")
	assert.False(t, SeedToBool(seed, 0, 2))
	assert.True(t, SeedToBool(seed, 2, 2))
	assert.False(t, SeedToBool(seed, 1, 0))
}

func TestSimulatedLog_Window(t *testing.T) {
	log := NewSimulatedLog(10)
	ctx := context.Background()
	log.Advance(100)

	_, err := log.FingerprintAt(ctx, 95)
	require.NoError(t, err)

	_, err = log.FingerprintAt(ctx, 80)
	require.ErrorIs(t, err, ErrOutsideWindow)

	_, err = log.FingerprintAt(ctx, 200)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrOutsideWindow, "future records are early, not expired")
}
