package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// DefaultGracePeriod is how long a pending removal stays cancellable while
// open sessions drain.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Registry owns the game lifecycle: registration, pausing, and the
// grace-windowed removal flow. All methods run inside a caller-provided
// transaction.
type Registry struct {
	games  repository.GameRepository
	outbox repository.OutboxRepository
	grace  time.Duration
	now    func() time.Time
}

// NewRegistry creates a registry with the given grace period.
func NewRegistry(games repository.GameRepository, outbox repository.OutboxRepository, grace time.Duration) *Registry {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Registry{games: games, outbox: outbox, grace: grace, now: time.Now}
}

// RegisterGame validates the entry config and creates an active game.
// A removed game's id is never reusable.
func (r *Registry) RegisterGame(ctx context.Context, db repository.DBTX, id, name, description string, entry domain.EntryConfig) (*domain.Game, error) {
	if err := domain.ValidateGameID(id); err != nil {
		return nil, err
	}
	if err := domain.ValidateEntryConfig(entry); err != nil {
		return nil, err
	}
	if entry.BurnPolicy == "" {
		entry.BurnPolicy = domain.BurnAtSweep
	}

	existing, err := r.games.FindByID(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("register game: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrValidation(fmt.Sprintf("game id %s already taken", id))
	}

	now := r.now()
	game := &domain.Game{
		ID:          id,
		Name:        name,
		Description: description,
		Entry:       entry,
		State:       domain.GameActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.games.Create(ctx, db, game); err != nil {
		return nil, fmt.Errorf("register game: %w", err)
	}
	if err := r.outbox.Insert(ctx, db, domain.NewGameEvent(domain.EventGameRegistered, game)); err != nil {
		return nil, fmt.Errorf("register game event: %w", err)
	}
	return game, nil
}

// RequestRemoval moves an active game to pending removal, pauses it
// immediately, and stamps the grace deadline. Open sessions stay settleable
// and refundable during the window.
func (r *Registry) RequestRemoval(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	game, err := r.lock(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if game.State != domain.GameActive {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s is %s, not active", id, game.State))
	}

	eligibleAt := r.now().Add(r.grace)
	game.State = domain.GamePendingRemoval
	game.Paused = true
	game.RemovalEligibleAt = &eligibleAt
	if err := r.update(ctx, db, game); err != nil {
		return nil, err
	}
	if err := r.outbox.Insert(ctx, db, domain.NewGameEvent(domain.EventGameRemovalRequested, game)); err != nil {
		return nil, fmt.Errorf("removal event: %w", err)
	}
	return game, nil
}

// CancelRemoval returns a pending-removal game to active before the deadline.
// It does NOT unpause: reopening is a distinct, explicit operation so a
// cancellation cannot race a game back open that an operator meant to keep
// paused.
func (r *Registry) CancelRemoval(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	game, err := r.lock(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if game.State != domain.GamePendingRemoval {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s has no pending removal", id))
	}
	if game.RemovalEligibleAt != nil && !r.now().Before(*game.RemovalEligibleAt) {
		return nil, domain.ErrValidation(fmt.Sprintf("removal grace period for %s has elapsed", id))
	}

	game.State = domain.GameActive
	game.RemovalEligibleAt = nil
	if err := r.update(ctx, db, game); err != nil {
		return nil, err
	}
	if err := r.outbox.Insert(ctx, db, domain.NewGameEvent(domain.EventGameRemovalCancelled, game)); err != nil {
		return nil, fmt.Errorf("cancel removal event: %w", err)
	}
	return game, nil
}

// FinalizeRemoval sets a pending-removal game to removed once the grace
// deadline has elapsed. Terminal.
func (r *Registry) FinalizeRemoval(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	game, err := r.lock(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if game.State != domain.GamePendingRemoval {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s has no pending removal", id))
	}
	if game.RemovalEligibleAt == nil || r.now().Before(*game.RemovalEligibleAt) {
		return nil, domain.ErrValidation(fmt.Sprintf("removal grace period for %s has not elapsed", id))
	}

	game.State = domain.GameRemoved
	if err := r.update(ctx, db, game); err != nil {
		return nil, err
	}
	if err := r.outbox.Insert(ctx, db, domain.NewGameEvent(domain.EventGameRemoved, game)); err != nil {
		return nil, fmt.Errorf("removal event: %w", err)
	}
	return game, nil
}

// PauseGame stops new sessions for a game without touching its lifecycle state.
func (r *Registry) PauseGame(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	return r.setPaused(ctx, db, id, true)
}

// UnpauseGame re-opens an active game for new sessions.
func (r *Registry) UnpauseGame(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	return r.setPaused(ctx, db, id, false)
}

// SetBurnPolicy switches when a game's burn deduction is realized.
func (r *Registry) SetBurnPolicy(ctx context.Context, db repository.DBTX, id string, policy domain.BurnPolicy) (*domain.Game, error) {
	if policy != domain.BurnAtSweep && policy != domain.BurnAtOpen {
		return nil, domain.ErrInvalidEntryConfig(fmt.Sprintf("unknown burn policy %q", policy))
	}
	game, err := r.lock(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if game.State == domain.GameRemoved {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s is removed", id))
	}
	game.Entry.BurnPolicy = policy
	if err := r.update(ctx, db, game); err != nil {
		return nil, err
	}
	return game, nil
}

// Get returns one game.
func (r *Registry) Get(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	game, err := r.games.FindByID(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	if game == nil {
		return nil, domain.ErrNotFound("game", id)
	}
	return game, nil
}

// List returns all registered games, removed ones included.
func (r *Registry) List(ctx context.Context, db repository.DBTX) ([]domain.Game, error) {
	games, err := r.games.List(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (r *Registry) setPaused(ctx context.Context, db repository.DBTX, id string, paused bool) (*domain.Game, error) {
	game, err := r.lock(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if game.State == domain.GameRemoved {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s is removed", id))
	}
	if !paused && game.State == domain.GamePendingRemoval {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s is pending removal and stays paused", id))
	}
	game.Paused = paused
	if err := r.update(ctx, db, game); err != nil {
		return nil, err
	}
	return game, nil
}

func (r *Registry) lock(ctx context.Context, db repository.DBTX, id string) (*domain.Game, error) {
	game, err := r.games.LockForUpdate(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("lock game: %w", err)
	}
	if game == nil {
		return nil, domain.ErrNotFound("game", id)
	}
	return game, nil
}

func (r *Registry) update(ctx context.Context, db repository.DBTX, game *domain.Game) error {
	game.UpdatedAt = r.now()
	if err := r.games.Update(ctx, db, game); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return nil
}
