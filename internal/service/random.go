package service

import (
	"context"
	"log/slog"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/random"
	"github.com/stakehouse/platform/internal/repository"
)

// RandomService runs beacon and commit-reveal operations inside transactions.
type RandomService struct {
	runner  repository.TxRunner
	beacon  *random.Beacon
	choices *random.ChoiceBook
	logger  *slog.Logger
}

// NewRandomService creates a RandomService.
func NewRandomService(runner repository.TxRunner, beacon *random.Beacon, choices *random.ChoiceBook, logger *slog.Logger) *RandomService {
	return &RandomService{runner: runner, beacon: beacon, choices: choices, logger: logger}
}

// Commit registers a randomness request for a future log record.
func (s *RandomService) Commit(ctx context.Context, purposeID, ownerGameID string) (*domain.RandomnessRequest, error) {
	var req *domain.RandomnessRequest
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		req, err = s.beacon.Commit(ctx, db, purposeID, ownerGameID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("seed committed", "purpose_id", purposeID, "target_index", req.TargetIndex)
	return req, nil
}

// Reveal resolves a randomness request. An expiry is a committed state
// transition: the returned request carries state Expired and the caller
// branches on it.
func (s *RandomService) Reveal(ctx context.Context, purposeID string) (*domain.RandomnessRequest, error) {
	var req *domain.RandomnessRequest
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		req, err = s.beacon.Reveal(ctx, db, purposeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if req.State == domain.RandomnessExpired {
		s.logger.Warn("seed expired", "purpose_id", purposeID, "target_index", req.TargetIndex)
	}
	return req, nil
}

// GetRequest returns a randomness request without mutating it.
func (s *RandomService) GetRequest(ctx context.Context, purposeID string) (*domain.RandomnessRequest, error) {
	var req *domain.RandomnessRequest
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		req, err = s.beacon.Get(ctx, db, purposeID)
		return err
	})
	return req, err
}

// CommitChoice stores a player's hidden choice digest.
func (s *RandomService) CommitChoice(ctx context.Context, sessionID, playerID string, commitHash []byte) (*domain.ChoiceCommitment, error) {
	var commitment *domain.ChoiceCommitment
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		commitment, err = s.choices.CommitChoice(ctx, db, sessionID, playerID, commitHash)
		return err
	})
	return commitment, err
}

// RevealChoice verifies and opens a player's commitment.
func (s *RandomService) RevealChoice(ctx context.Context, sessionID, playerID, choice, secret string) (*domain.ChoiceCommitment, error) {
	var commitment *domain.ChoiceCommitment
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		commitment, err = s.choices.RevealChoice(ctx, db, sessionID, playerID, choice, secret)
		return err
	})
	return commitment, err
}

// ForfeitChoice closes an unrevealed commitment after its deadline.
func (s *RandomService) ForfeitChoice(ctx context.Context, sessionID, playerID string) (*domain.ChoiceCommitment, error) {
	var commitment *domain.ChoiceCommitment
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		commitment, err = s.choices.Forfeit(ctx, db, sessionID, playerID)
		return err
	})
	return commitment, err
}
