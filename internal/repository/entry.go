package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stakehouse/platform/internal/domain"
)

type entryRepo struct{}

// NewEntryRepository returns a pgx-backed EntryRepository.
func NewEntryRepository() EntryRepository {
	return &entryRepo{}
}

const entryColumns = `id, player_id, session_id, type, amount, balance_after,
	       payout_balance_after, external_ref, metadata, created_at`

func (r *entryRepo) Insert(ctx context.Context, db DBTX, params domain.PostLedgerEntryParams, balanceAfter, payoutAfter int64) (*domain.LedgerEntry, error) {
	meta := params.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}

	row := db.QueryRow(ctx, `
		INSERT INTO ledger_entries
		  (player_id, session_id, type, amount, balance_after, payout_balance_after,
		   external_ref, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+entryColumns,
		params.PlayerID,
		params.SessionID,
		string(params.Type),
		Int64ToNumeric(params.Amount),
		Int64ToNumeric(balanceAfter),
		Int64ToNumeric(payoutAfter),
		params.ExternalRef,
		meta,
	)
	return scanEntry(row)
}

func (r *entryRepo) FindByExternalRef(ctx context.Context, db DBTX, playerID uuid.UUID, entryType domain.EntryType, externalRef string) (*domain.LedgerEntry, error) {
	row := db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE player_id = $1 AND type = $2 AND external_ref = $3`,
		playerID, string(entryType), externalRef)
	return scanEntry(row)
}

func (r *entryRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries by player: %w", err)
	}
	return collectEntries(rows)
}

func (r *entryRepo) ListBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list entries by session: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var amountNum, balNum, payoutNum pgtype.Numeric
	var entryType string
	err := row.Scan(&e.ID, &e.PlayerID, &e.SessionID, &entryType, &amountNum,
		&balNum, &payoutNum, &e.ExternalRef, &e.Metadata, &e.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}

	if e.Amount, err = NumericToInt64(amountNum); err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	if e.BalanceAfter, err = NumericToInt64(balNum); err != nil {
		return nil, fmt.Errorf("convert balance_after: %w", err)
	}
	if e.PayoutBalanceAfter, err = NumericToInt64(payoutNum); err != nil {
		return nil, fmt.Errorf("convert payout_balance_after: %w", err)
	}
	e.Type = domain.EntryType(entryType)
	return &e, nil
}
