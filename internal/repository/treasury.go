package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stakehouse/platform/internal/domain"
)

type treasuryRepo struct{}

// NewTreasuryRepository returns a pgx-backed TreasuryRepository.
// The treasury table holds exactly one row, seeded by migration.
func NewTreasuryRepository() TreasuryRepository {
	return &treasuryRepo{}
}

func (r *treasuryRepo) Get(ctx context.Context, db DBTX) (*domain.Treasury, error) {
	row := db.QueryRow(ctx, `
		SELECT rake_accrued, burn_accrued, updated_at FROM treasury WHERE id = 1`)
	return scanTreasury(row)
}

func (r *treasuryRepo) Apply(ctx context.Context, db DBTX, delta domain.TreasuryUpdate) (*domain.Treasury, error) {
	row := db.QueryRow(ctx, `
		UPDATE treasury SET
		  rake_accrued = rake_accrued + $1,
		  burn_accrued = burn_accrued + $2,
		  updated_at = now()
		WHERE id = 1
		RETURNING rake_accrued, burn_accrued, updated_at`,
		Int64ToNumeric(delta.Rake),
		Int64ToNumeric(delta.Burn),
	)
	return scanTreasury(row)
}

func scanTreasury(row pgx.Row) (*domain.Treasury, error) {
	var t domain.Treasury
	var rakeNum, burnNum pgtype.Numeric
	if err := row.Scan(&rakeNum, &burnNum, &t.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan treasury: %w", err)
	}

	var err error
	if t.RakeAccrued, err = NumericToInt64(rakeNum); err != nil {
		return nil, fmt.Errorf("convert rake_accrued: %w", err)
	}
	if t.BurnAccrued, err = NumericToInt64(burnNum); err != nil {
		return nil, fmt.Errorf("convert burn_accrued: %w", err)
	}
	return &t, nil
}
