package random

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// DefaultRevealWindow is how long a player has to reveal a committed choice
// before anyone may forfeit it.
const DefaultRevealWindow = 10 * time.Minute

// ChoiceBook runs the commit-reveal protocol for hidden player choices.
// A player commits hash(choice, secret, player) before the outcome seed is
// known, and reveals both after; a non-reveal forfeits rather than refunds, so
// disliking the revealed seed's direction is never a free exit.
type ChoiceBook struct {
	commitments  repository.CommitmentRepository
	outbox       repository.OutboxRepository
	revealWindow time.Duration
	now          func() time.Time
}

// NewChoiceBook creates a choice book with the given reveal window.
func NewChoiceBook(commitments repository.CommitmentRepository, outbox repository.OutboxRepository, revealWindow time.Duration) *ChoiceBook {
	if revealWindow <= 0 {
		revealWindow = DefaultRevealWindow
	}
	return &ChoiceBook{
		commitments:  commitments,
		outbox:       outbox,
		revealWindow: revealWindow,
		now:          time.Now,
	}
}

// HashChoice computes the commitment digest for a choice. Clients call this
// locally and submit only the digest.
func HashChoice(choice, secret, playerID string) []byte {
	h := sha256.New()
	h.Write([]byte(choice))
	h.Write([]byte(secret))
	h.Write([]byte(playerID))
	return h.Sum(nil)
}

// CommitChoice stores a commitment once per session/player key.
func (cb *ChoiceBook) CommitChoice(ctx context.Context, db repository.DBTX, sessionID, playerID string, commitHash []byte) (*domain.ChoiceCommitment, error) {
	if len(commitHash) != sha256.Size {
		return nil, domain.ErrValidation(fmt.Sprintf("commit hash must be %d bytes", sha256.Size))
	}

	existing, err := cb.commitments.Find(ctx, db, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("commit choice: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyCommitted(sessionID + "/" + playerID)
	}

	now := cb.now()
	commitment := &domain.ChoiceCommitment{
		SessionID:      sessionID,
		PlayerID:       playerID,
		CommitHash:     commitHash,
		State:          domain.ChoiceCommitted,
		RevealDeadline: now.Add(cb.revealWindow),
		CreatedAt:      now,
	}
	if err := cb.commitments.Create(ctx, db, commitment); err != nil {
		return nil, fmt.Errorf("commit choice: %w", err)
	}
	if err := cb.outbox.Insert(ctx, db, domain.NewChoiceEvent(domain.EventChoiceCommitted, commitment)); err != nil {
		return nil, fmt.Errorf("commit choice event: %w", err)
	}
	return commitment, nil
}

// RevealChoice verifies choice and secret against the stored digest and opens
// the commitment. A mismatch changes no state, so a genuine client bug can
// retry. A repeat reveal returns the already-opened commitment.
func (cb *ChoiceBook) RevealChoice(ctx context.Context, db repository.DBTX, sessionID, playerID, choice, secret string) (*domain.ChoiceCommitment, error) {
	commitment, err := cb.commitments.LockForUpdate(ctx, db, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("reveal choice: %w", err)
	}
	if commitment == nil {
		return nil, domain.ErrNotFound("choice commitment", sessionID+"/"+playerID)
	}

	switch commitment.State {
	case domain.ChoiceRevealed:
		return commitment, nil
	case domain.ChoiceForfeited:
		return nil, domain.ErrValidation(fmt.Sprintf("commitment for session %s is forfeited", sessionID))
	}

	if !hmac.Equal(HashChoice(choice, secret, playerID), commitment.CommitHash) {
		return nil, domain.ErrCommitMismatch()
	}

	now := cb.now()
	commitment.Choice = choice
	commitment.State = domain.ChoiceRevealed
	commitment.ResolvedAt = &now
	if err := cb.commitments.Update(ctx, db, commitment); err != nil {
		return nil, fmt.Errorf("reveal choice: %w", err)
	}
	if err := cb.outbox.Insert(ctx, db, domain.NewChoiceEvent(domain.EventChoiceRevealed, commitment)); err != nil {
		return nil, fmt.Errorf("reveal choice event: %w", err)
	}
	return commitment, nil
}

// Forfeit closes a commitment whose reveal deadline passed without a reveal.
// Permissionless; the owning game resolves a forfeit as a loss for the
// non-revealing party. A repeat forfeit returns the already-closed commitment.
func (cb *ChoiceBook) Forfeit(ctx context.Context, db repository.DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error) {
	commitment, err := cb.commitments.LockForUpdate(ctx, db, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("forfeit: %w", err)
	}
	if commitment == nil {
		return nil, domain.ErrNotFound("choice commitment", sessionID+"/"+playerID)
	}

	switch commitment.State {
	case domain.ChoiceForfeited:
		return commitment, nil
	case domain.ChoiceRevealed:
		return nil, domain.ErrValidation(fmt.Sprintf("commitment for session %s is already revealed", sessionID))
	}

	now := cb.now()
	if now.Before(commitment.RevealDeadline) {
		return nil, domain.ErrValidation(fmt.Sprintf("reveal deadline for session %s has not passed", sessionID))
	}

	commitment.State = domain.ChoiceForfeited
	commitment.ResolvedAt = &now
	if err := cb.commitments.Update(ctx, db, commitment); err != nil {
		return nil, fmt.Errorf("forfeit: %w", err)
	}
	if err := cb.outbox.Insert(ctx, db, domain.NewChoiceEvent(domain.EventChoiceForfeited, commitment)); err != nil {
		return nil, fmt.Errorf("forfeit event: %w", err)
	}
	return commitment, nil
}
