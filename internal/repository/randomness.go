package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stakehouse/platform/internal/domain"
)

type randomnessRepo struct{}

// NewRandomnessRepository returns a pgx-backed RandomnessRepository.
func NewRandomnessRepository() RandomnessRepository {
	return &randomnessRepo{}
}

const randomnessColumns = `purpose_id, owner_game_id, target_index, state, seed, created_at, resolved_at`

func (r *randomnessRepo) FindByPurpose(ctx context.Context, db DBTX, purposeID string) (*domain.RandomnessRequest, error) {
	row := db.QueryRow(ctx, `
		SELECT `+randomnessColumns+` FROM randomness_requests WHERE purpose_id = $1`, purposeID)
	return scanRandomness(row)
}

func (r *randomnessRepo) LockByPurpose(ctx context.Context, db DBTX, purposeID string) (*domain.RandomnessRequest, error) {
	row := db.QueryRow(ctx, `
		SELECT `+randomnessColumns+` FROM randomness_requests WHERE purpose_id = $1 FOR UPDATE`, purposeID)
	return scanRandomness(row)
}

func (r *randomnessRepo) Create(ctx context.Context, db DBTX, req *domain.RandomnessRequest) error {
	_, err := db.Exec(ctx, `
		INSERT INTO randomness_requests
		  (purpose_id, owner_game_id, target_index, state, seed, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.PurposeID, req.OwnerGameID, int64(req.TargetIndex),
		string(req.State), req.Seed, req.CreatedAt, req.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert randomness request: %w", err)
	}
	return nil
}

func (r *randomnessRepo) Update(ctx context.Context, db DBTX, req *domain.RandomnessRequest) error {
	tag, err := db.Exec(ctx, `
		UPDATE randomness_requests SET state = $2, seed = $3, resolved_at = $4
		WHERE purpose_id = $1`,
		req.PurposeID, string(req.State), req.Seed, req.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update randomness request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("randomness request", req.PurposeID)
	}
	return nil
}

func scanRandomness(row pgx.Row) (*domain.RandomnessRequest, error) {
	var req domain.RandomnessRequest
	var target int64
	var state string
	err := row.Scan(&req.PurposeID, &req.OwnerGameID, &target, &state,
		&req.Seed, &req.CreatedAt, &req.ResolvedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan randomness request: %w", err)
	}
	req.TargetIndex = uint64(target)
	req.State = domain.RandomnessState(state)
	return &req, nil
}
