package random

import (
	"crypto/sha256"
	"encoding/binary"
)

// DeriveSubSeed derives an independent seed for one facet of a game outcome,
// so a single revealed seed can drive multiple draws without correlation.
func DeriveSubSeed(seed []byte, tag string) []byte {
	sum := sha256.Sum256(append(append([]byte{}, seed...), []byte(tag)...))
	return sum[:]
}

// SeedToRange maps a seed to a uniform value in [lo, hi] using rejection
// sampling, so no modulo bias favors the low end of the range.
func SeedToRange(seed []byte, lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo + 1
	if span == 0 {
		// [lo, hi] covers all of uint64, so the raw draw is already uniform.
		var buf [8]byte
		sum := sha256.Sum256(append(append([]byte{}, seed...), buf[:]...))
		return binary.BigEndian.Uint64(sum[:8])
	}
	// largest multiple of span representable in 64 bits
	limit := (^uint64(0) / span) * span

	for counter := uint64(0); ; counter++ {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], counter)
		sum := sha256.Sum256(append(append([]byte{}, seed...), buf[:]...))
		v := binary.BigEndian.Uint64(sum[:8])
		if v < limit {
			return lo + v%span
		}
	}
}

// SeedToBool returns true with probability num/den.
func SeedToBool(seed []byte, num, den uint64) bool {
	if den == 0 {
		return false
	}
	return SeedToRange(seed, 0, den-1) < num
}
