package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stakehouse/platform/internal/domain"
)

type playerRepo struct{}

// NewPlayerRepository returns a pgx-backed PlayerRepository.
func NewPlayerRepository() PlayerRepository {
	return &playerRepo{}
}

const playerColumns = `id, balance, payout_balance, currency, created_at, updated_at`

func (r *playerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error) {
	row := db.QueryRow(ctx, `
		SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *playerRepo) LockForUpdate(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error) {
	row := db.QueryRow(ctx, `
		SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id)
	return scanPlayer(row)
}

func (r *playerRepo) Create(ctx context.Context, db DBTX, player *domain.Player) error {
	_, err := db.Exec(ctx, `
		INSERT INTO players (id, balance, payout_balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		player.ID,
		Int64ToNumeric(player.Balance),
		Int64ToNumeric(player.PayoutBalance),
		player.Currency,
		player.CreatedAt,
		player.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// UpdateBalances uses server-side arithmetic with dynamic SET clauses.
func (r *playerRepo) UpdateBalances(ctx context.Context, db DBTX, playerID uuid.UUID, delta domain.BalanceUpdate) (*domain.Player, error) {
	setClauses := []string{"updated_at = now()"}
	args := []interface{}{}
	argIdx := 1

	if delta.HasBalanceDelta() {
		setClauses = append(setClauses, fmt.Sprintf("balance = balance + $%d", argIdx))
		args = append(args, Int64ToNumeric(delta.Balance))
		argIdx++
	}
	if delta.HasPayoutDelta() {
		setClauses = append(setClauses, fmt.Sprintf("payout_balance = payout_balance + $%d", argIdx))
		args = append(args, Int64ToNumeric(delta.PayoutBalance))
		argIdx++
	}

	args = append(args, playerID)
	query := fmt.Sprintf(`
		UPDATE players SET %s
		WHERE id = $%d
		RETURNING `+playerColumns, strings.Join(setClauses, ", "), argIdx)

	row := db.QueryRow(ctx, query, args...)
	return scanPlayer(row)
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	var balNum, payoutNum pgtype.Numeric
	err := row.Scan(&p.ID, &balNum, &payoutNum, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}

	if p.Balance, err = NumericToInt64(balNum); err != nil {
		return nil, fmt.Errorf("convert balance: %w", err)
	}
	if p.PayoutBalance, err = NumericToInt64(payoutNum); err != nil {
		return nil, fmt.Errorf("convert payout_balance: %w", err)
	}
	return &p, nil
}
