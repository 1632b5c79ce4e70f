package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stakehouse/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
// The in-memory store passes a nil DBTX; its repositories ignore it.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxRunner executes fn within one atomic unit. Rejection errors returned by fn
// roll the unit back, leaving state unchanged.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(db DBTX) error) error
}

// PlayerRepository provides access to players.
type PlayerRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error)

	// LockForUpdate serializes concurrent commands against one player.
	LockForUpdate(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error)

	Create(ctx context.Context, db DBTX, player *domain.Player) error

	// UpdateBalances applies deltas with server-side arithmetic and returns the
	// post-update row.
	UpdateBalances(ctx context.Context, db DBTX, playerID uuid.UUID, delta domain.BalanceUpdate) (*domain.Player, error)
}

// GameRepository provides access to registered games.
type GameRepository interface {
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Game, error)
	LockForUpdate(ctx context.Context, db DBTX, id string) (*domain.Game, error)
	Create(ctx context.Context, db DBTX, game *domain.Game) error
	Update(ctx context.Context, db DBTX, game *domain.Game) error
	List(ctx context.Context, db DBTX) ([]domain.Game, error)
}

// SessionRepository provides access to wagered sessions.
type SessionRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error)

	// LockForUpdate serializes the remaining-pool check-then-decrement.
	LockForUpdate(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error)

	Create(ctx context.Context, db DBTX, session *domain.Session) error

	// Update persists pool, state, abandonment and close timestamp changes.
	Update(ctx context.Context, db DBTX, session *domain.Session) error

	// SumOpenPools returns the remaining pool total over open sessions.
	SumOpenPools(ctx context.Context, db DBTX) (int64, error)
}

// EntryRepository provides access to the append-only ledger entries.
type EntryRepository interface {
	Insert(ctx context.Context, db DBTX, params domain.PostLedgerEntryParams, balanceAfter, payoutAfter int64) (*domain.LedgerEntry, error)

	// FindByExternalRef checks the idempotency index for a duplicate entry.
	FindByExternalRef(ctx context.Context, db DBTX, playerID uuid.UUID, entryType domain.EntryType, externalRef string) (*domain.LedgerEntry, error)

	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
	ListBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) ([]domain.LedgerEntry, error)
}

// TreasuryRepository provides access to the singleton treasury row.
type TreasuryRepository interface {
	Get(ctx context.Context, db DBTX) (*domain.Treasury, error)
	Apply(ctx context.Context, db DBTX, delta domain.TreasuryUpdate) (*domain.Treasury, error)
}

// RandomnessRepository provides access to future-commitment randomness requests.
type RandomnessRepository interface {
	FindByPurpose(ctx context.Context, db DBTX, purposeID string) (*domain.RandomnessRequest, error)
	LockByPurpose(ctx context.Context, db DBTX, purposeID string) (*domain.RandomnessRequest, error)
	Create(ctx context.Context, db DBTX, req *domain.RandomnessRequest) error
	Update(ctx context.Context, db DBTX, req *domain.RandomnessRequest) error
}

// CommitmentRepository provides access to player choice commitments.
type CommitmentRepository interface {
	Find(ctx context.Context, db DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error)
	LockForUpdate(ctx context.Context, db DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error)
	Create(ctx context.Context, db DBTX, c *domain.ChoiceCommitment) error
	Update(ctx context.Context, db DBTX, c *domain.ChoiceCommitment) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event within the same transaction as the state change.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublishedRows returns pending events for the outbox poller.
	FetchUnpublishedRows(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	// MarkPublished removes drained events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
