package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stakehouse/platform/internal/domain"
)

type sessionRepo struct{}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepo{}
}

const sessionColumns = `id, game_id, player_id, gross_wager, net_wager, remaining_pool,
	       state, abandoned, randomness_id, created_at, closed_at`

func (r *sessionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error) {
	row := db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *sessionRepo) LockForUpdate(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error) {
	row := db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	return scanSession(row)
}

func (r *sessionRepo) Create(ctx context.Context, db DBTX, s *domain.Session) error {
	_, err := db.Exec(ctx, `
		INSERT INTO sessions
		  (id, game_id, player_id, gross_wager, net_wager, remaining_pool,
		   state, abandoned, randomness_id, created_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.GameID, s.PlayerID,
		Int64ToNumeric(s.GrossWager),
		Int64ToNumeric(s.NetWager),
		Int64ToNumeric(s.RemainingPool),
		string(s.State), s.Abandoned, s.RandomnessID, s.CreatedAt, s.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, db DBTX, s *domain.Session) error {
	tag, err := db.Exec(ctx, `
		UPDATE sessions SET
		  remaining_pool = $2, state = $3, abandoned = $4, randomness_id = $5, closed_at = $6
		WHERE id = $1`,
		s.ID,
		Int64ToNumeric(s.RemainingPool),
		string(s.State), s.Abandoned, s.RandomnessID, s.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("session", s.ID.String())
	}
	return nil
}

func (r *sessionRepo) SumOpenPools(ctx context.Context, db DBTX) (int64, error) {
	var sum pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(remaining_pool), 0) FROM sessions WHERE state = 'open'`).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum open pools: %w", err)
	}
	return NumericToInt64(sum)
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var grossNum, netNum, poolNum pgtype.Numeric
	var state string
	err := row.Scan(&s.ID, &s.GameID, &s.PlayerID, &grossNum, &netNum, &poolNum,
		&state, &s.Abandoned, &s.RandomnessID, &s.CreatedAt, &s.ClosedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if s.GrossWager, err = NumericToInt64(grossNum); err != nil {
		return nil, fmt.Errorf("convert gross_wager: %w", err)
	}
	if s.NetWager, err = NumericToInt64(netNum); err != nil {
		return nil, fmt.Errorf("convert net_wager: %w", err)
	}
	if s.RemainingPool, err = NumericToInt64(poolNum); err != nil {
		return nil, fmt.Errorf("convert remaining_pool: %w", err)
	}
	s.State = domain.SessionState(state)
	return &s, nil
}
