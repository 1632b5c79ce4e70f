package service

import (
	"context"
	"log/slog"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/registry"
	"github.com/stakehouse/platform/internal/repository"
)

// RegistryService runs registry operations inside transactions.
type RegistryService struct {
	runner   repository.TxRunner
	registry *registry.Registry
	logger   *slog.Logger
}

// NewRegistryService creates a RegistryService.
func NewRegistryService(runner repository.TxRunner, reg *registry.Registry, logger *slog.Logger) *RegistryService {
	return &RegistryService{runner: runner, registry: reg, logger: logger}
}

// Register creates a new active game.
func (s *RegistryService) Register(ctx context.Context, id, name, description string, entry domain.EntryConfig) (*domain.Game, error) {
	game, err := s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.RegisterGame(ctx, db, id, name, description, entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("game registered", "game_id", id, "rake_bps", entry.RakeBps, "burn_bps", entry.BurnBps)
	return game, nil
}

// RequestRemoval starts the grace-windowed removal of a game.
func (s *RegistryService) RequestRemoval(ctx context.Context, id string) (*domain.Game, error) {
	game, err := s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.RequestRemoval(ctx, db, id)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("game removal requested", "game_id", id, "eligible_at", game.RemovalEligibleAt)
	return game, nil
}

// CancelRemoval aborts a pending removal before its deadline.
func (s *RegistryService) CancelRemoval(ctx context.Context, id string) (*domain.Game, error) {
	return s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.CancelRemoval(ctx, db, id)
	})
}

// FinalizeRemoval removes a game permanently once the grace period elapsed.
func (s *RegistryService) FinalizeRemoval(ctx context.Context, id string) (*domain.Game, error) {
	game, err := s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.FinalizeRemoval(ctx, db, id)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("game removed", "game_id", id)
	return game, nil
}

// Pause stops new sessions for a game.
func (s *RegistryService) Pause(ctx context.Context, id string) (*domain.Game, error) {
	return s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.PauseGame(ctx, db, id)
	})
}

// Unpause reopens an active game.
func (s *RegistryService) Unpause(ctx context.Context, id string) (*domain.Game, error) {
	return s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.UnpauseGame(ctx, db, id)
	})
}

// SetBurnPolicy switches when a game's burn is realized.
func (s *RegistryService) SetBurnPolicy(ctx context.Context, id string, policy domain.BurnPolicy) (*domain.Game, error) {
	return s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.SetBurnPolicy(ctx, db, id, policy)
	})
}

// Get returns one game.
func (s *RegistryService) Get(ctx context.Context, id string) (*domain.Game, error) {
	return s.withGame(ctx, func(db repository.DBTX) (*domain.Game, error) {
		return s.registry.Get(ctx, db, id)
	})
}

// List returns all games.
func (s *RegistryService) List(ctx context.Context) ([]domain.Game, error) {
	var games []domain.Game
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		games, err = s.registry.List(ctx, db)
		return err
	})
	return games, err
}

func (s *RegistryService) withGame(ctx context.Context, fn func(db repository.DBTX) (*domain.Game, error)) (*domain.Game, error) {
	var game *domain.Game
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		game, err = fn(db)
		return err
	})
	return game, err
}
