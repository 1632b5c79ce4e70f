package random

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// DefaultCommitDelay is how many log records ahead a commitment targets.
// Deep enough that no participant can influence the target record, shallow
// enough to leave a wide reveal margin inside the lookback window.
const DefaultCommitDelay = 10

// Beacon implements future-commitment randomness: a commit binds a purpose to
// a log record that does not exist yet; once the log reaches it, anyone may
// reveal the seed. Committed requests cannot be cancelled — they resolve or
// expire.
type Beacon struct {
	source     BlockSource
	randomness repository.RandomnessRepository
	outbox     repository.OutboxRepository
	delay      uint64
}

// NewBeacon creates a beacon committing delay records ahead of the current
// index.
func NewBeacon(source BlockSource, randomness repository.RandomnessRepository, outbox repository.OutboxRepository, delay uint64) *Beacon {
	if delay == 0 {
		delay = DefaultCommitDelay
	}
	return &Beacon{source: source, randomness: randomness, outbox: outbox, delay: delay}
}

// Commit registers a randomness request targeting a future record. Never
// blocks waiting for the record. One commitment per purpose id, ever.
func (b *Beacon) Commit(ctx context.Context, db repository.DBTX, purposeID, ownerGameID string) (*domain.RandomnessRequest, error) {
	if purposeID == "" {
		return nil, domain.ErrValidation("empty purpose id")
	}

	existing, err := b.randomness.FindByPurpose(ctx, db, purposeID)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyCommitted(purposeID)
	}

	current, err := b.source.CurrentIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	req := &domain.RandomnessRequest{
		PurposeID:   purposeID,
		OwnerGameID: ownerGameID,
		TargetIndex: current + b.delay,
		State:       domain.RandomnessPending,
		CreatedAt:   time.Now(),
	}
	if err := b.randomness.Create(ctx, db, req); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if err := b.outbox.Insert(ctx, db, domain.NewSeedEvent(domain.EventSeedCommitted, req)); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return req, nil
}

// Reveal resolves a pending request once the target record exists.
// Permissionless and idempotent: a revealed request returns its cached seed to
// every caller. If the fingerprint is already beyond every lookback window the
// request transitions to Expired — a terminal state the caller must branch on,
// returned here without error so the transition commits. A repeat reveal on an
// expired request fails with SeedUnrecoverable.
func (b *Beacon) Reveal(ctx context.Context, db repository.DBTX, purposeID string) (*domain.RandomnessRequest, error) {
	req, err := b.randomness.LockByPurpose(ctx, db, purposeID)
	if err != nil {
		return nil, fmt.Errorf("reveal: %w", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound("randomness request", purposeID)
	}

	switch req.State {
	case domain.RandomnessRevealed:
		return req, nil
	case domain.RandomnessExpired:
		return nil, domain.ErrSeedUnrecoverable(purposeID)
	}

	current, err := b.source.CurrentIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("reveal: %w", err)
	}
	if current < req.TargetIndex {
		return nil, domain.ErrRevealTooEarly(current, req.TargetIndex)
	}

	fingerprint, err := b.source.FingerprintAt(ctx, req.TargetIndex)
	if err != nil {
		if errors.Is(err, ErrOutsideWindow) {
			return b.expire(ctx, db, req)
		}
		return nil, fmt.Errorf("reveal: %w", err)
	}

	// Bind the seed to the purpose so unrelated requests sharing a target
	// index never share a seed.
	sum := sha256.Sum256(append(fingerprint, []byte(purposeID)...))
	now := time.Now()
	req.Seed = sum[:]
	req.State = domain.RandomnessRevealed
	req.ResolvedAt = &now
	if err := b.randomness.Update(ctx, db, req); err != nil {
		return nil, fmt.Errorf("reveal: %w", err)
	}
	if err := b.outbox.Insert(ctx, db, domain.NewSeedEvent(domain.EventSeedRevealed, req)); err != nil {
		return nil, fmt.Errorf("reveal event: %w", err)
	}
	return req, nil
}

func (b *Beacon) expire(ctx context.Context, db repository.DBTX, req *domain.RandomnessRequest) (*domain.RandomnessRequest, error) {
	now := time.Now()
	req.State = domain.RandomnessExpired
	req.ResolvedAt = &now
	if err := b.randomness.Update(ctx, db, req); err != nil {
		return nil, fmt.Errorf("expire: %w", err)
	}
	if err := b.outbox.Insert(ctx, db, domain.NewSeedEvent(domain.EventSeedExpired, req)); err != nil {
		return nil, fmt.Errorf("expire event: %w", err)
	}
	return req, nil
}

// Get returns a request without mutating it.
func (b *Beacon) Get(ctx context.Context, db repository.DBTX, purposeID string) (*domain.RandomnessRequest, error) {
	req, err := b.randomness.FindByPurpose(ctx, db, purposeID)
	if err != nil {
		return nil, fmt.Errorf("get randomness request: %w", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound("randomness request", purposeID)
	}
	return req, nil
}
