package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stakehouse/platform/internal/domain"
)

type commitmentRepo struct{}

// NewCommitmentRepository returns a pgx-backed CommitmentRepository.
func NewCommitmentRepository() CommitmentRepository {
	return &commitmentRepo{}
}

const commitmentColumns = `session_id, player_id, commit_hash, state, choice,
	       reveal_deadline, created_at, resolved_at`

func (r *commitmentRepo) Find(ctx context.Context, db DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+commitmentColumns+`
		FROM choice_commitments WHERE session_id = $1 AND player_id = $2`,
		sessionID, playerID)
	return scanCommitment(row)
}

func (r *commitmentRepo) LockForUpdate(ctx context.Context, db DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+commitmentColumns+`
		FROM choice_commitments WHERE session_id = $1 AND player_id = $2 FOR UPDATE`,
		sessionID, playerID)
	return scanCommitment(row)
}

func (r *commitmentRepo) Create(ctx context.Context, db DBTX, c *domain.ChoiceCommitment) error {
	_, err := db.Exec(ctx, `
		INSERT INTO choice_commitments
		  (session_id, player_id, commit_hash, state, choice, reveal_deadline, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.SessionID, c.PlayerID, c.CommitHash, string(c.State), c.Choice,
		c.RevealDeadline, c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert choice commitment: %w", err)
	}
	return nil
}

func (r *commitmentRepo) Update(ctx context.Context, db DBTX, c *domain.ChoiceCommitment) error {
	tag, err := db.Exec(ctx, `
		UPDATE choice_commitments SET state = $3, choice = $4, resolved_at = $5
		WHERE session_id = $1 AND player_id = $2`,
		c.SessionID, c.PlayerID, string(c.State), c.Choice, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update choice commitment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("choice commitment", c.SessionID)
	}
	return nil
}

func scanCommitment(row pgx.Row) (*domain.ChoiceCommitment, error) {
	var c domain.ChoiceCommitment
	var state string
	err := row.Scan(&c.SessionID, &c.PlayerID, &c.CommitHash, &state, &c.Choice,
		&c.RevealDeadline, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan choice commitment: %w", err)
	}
	c.State = domain.ChoiceState(state)
	return &c, nil
}
