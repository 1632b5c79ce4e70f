package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stakehouse/platform/internal/domain"
)

type gameRepo struct{}

// NewGameRepository returns a pgx-backed GameRepository.
func NewGameRepository() GameRepository {
	return &gameRepo{}
}

const gameColumns = `id, name, description, min_wager, max_wager, rake_bps, burn_bps,
	       burn_policy, allow_third_party_payout, state, paused, removal_eligible_at,
	       created_at, updated_at`

func (r *gameRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (r *gameRepo) LockForUpdate(ctx context.Context, db DBTX, id string) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, id)
	return scanGame(row)
}

func (r *gameRepo) Create(ctx context.Context, db DBTX, game *domain.Game) error {
	_, err := db.Exec(ctx, `
		INSERT INTO games
		  (id, name, description, min_wager, max_wager, rake_bps, burn_bps,
		   burn_policy, allow_third_party_payout, state, paused, removal_eligible_at,
		   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		game.ID, game.Name, game.Description,
		Int64ToNumeric(game.Entry.MinWager),
		Int64ToNumeric(game.Entry.MaxWager),
		game.Entry.RakeBps, game.Entry.BurnBps,
		string(game.Entry.BurnPolicy), game.Entry.AllowThirdPartyPayout,
		string(game.State), game.Paused, game.RemovalEligibleAt,
		game.CreatedAt, game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *gameRepo) Update(ctx context.Context, db DBTX, game *domain.Game) error {
	tag, err := db.Exec(ctx, `
		UPDATE games SET
		  name = $2, description = $3, min_wager = $4, max_wager = $5,
		  rake_bps = $6, burn_bps = $7, burn_policy = $8, allow_third_party_payout = $9,
		  state = $10, paused = $11, removal_eligible_at = $12, updated_at = now()
		WHERE id = $1`,
		game.ID, game.Name, game.Description,
		Int64ToNumeric(game.Entry.MinWager),
		Int64ToNumeric(game.Entry.MaxWager),
		game.Entry.RakeBps, game.Entry.BurnBps,
		string(game.Entry.BurnPolicy), game.Entry.AllowThirdPartyPayout,
		string(game.State), game.Paused, game.RemovalEligibleAt,
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("game", game.ID)
	}
	return nil
}

func (r *gameRepo) List(ctx context.Context, db DBTX) ([]domain.Game, error) {
	rows, err := db.Query(ctx, `
		SELECT `+gameColumns+` FROM games ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	var minNum, maxNum pgtype.Numeric
	var burnPolicy, state string
	err := row.Scan(&g.ID, &g.Name, &g.Description, &minNum, &maxNum,
		&g.Entry.RakeBps, &g.Entry.BurnBps, &burnPolicy, &g.Entry.AllowThirdPartyPayout,
		&state, &g.Paused, &g.RemovalEligibleAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan game: %w", err)
	}

	if g.Entry.MinWager, err = NumericToInt64(minNum); err != nil {
		return nil, fmt.Errorf("convert min_wager: %w", err)
	}
	if g.Entry.MaxWager, err = NumericToInt64(maxNum); err != nil {
		return nil, fmt.Errorf("convert max_wager: %w", err)
	}
	g.Entry.BurnPolicy = domain.BurnPolicy(burnPolicy)
	g.State = domain.GameState(state)
	return &g, nil
}
