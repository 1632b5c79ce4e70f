package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// MaxBatchRefund bounds one batch so validation and refund stay inside a
// single reasonably sized transaction.
const MaxBatchRefund = 100

// ExecuteRefundSession refunds an eligible open session's remaining pool to the
// player's pull-payment balance and closes the session. Permissionless: anyone
// may trigger a refund the state machine already allows. Never consults the
// breaker.
func (e *Engine) ExecuteRefundSession(ctx context.Context, db repository.DBTX, params domain.RefundSessionParams) (*domain.CommandResult, error) {
	session, err := e.LockSessionForUpdate(ctx, db, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("refund session: %w", err)
	}
	if err := e.checkRefundEligible(ctx, db, session); err != nil {
		return nil, err
	}
	return e.refundLocked(ctx, db, session)
}

// ExecuteBatchRefund refunds a set of sessions atomically. The full set is
// locked and validated before any session is mutated, so one malformed id
// fails the whole batch instead of corrupting unrelated sessions.
func (e *Engine) ExecuteBatchRefund(ctx context.Context, db repository.DBTX, sessionIDs []uuid.UUID) ([]domain.CommandResult, error) {
	if len(sessionIDs) == 0 {
		return nil, domain.ErrValidation("empty refund batch")
	}
	if len(sessionIDs) > MaxBatchRefund {
		return nil, domain.ErrValidation(fmt.Sprintf("refund batch exceeds %d sessions", MaxBatchRefund))
	}

	seen := make(map[uuid.UUID]bool, len(sessionIDs))
	sessions := make([]*domain.Session, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if seen[id] {
			return nil, domain.ErrValidation(fmt.Sprintf("duplicate session %s in batch", id))
		}
		seen[id] = true

		session, err := e.LockSessionForUpdate(ctx, db, id)
		if err != nil {
			return nil, fmt.Errorf("batch refund: %w", err)
		}
		if err := e.checkRefundEligible(ctx, db, session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	results := make([]domain.CommandResult, 0, len(sessions))
	for _, session := range sessions {
		result, err := e.refundLocked(ctx, db, session)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// ExecuteFlagAbandoned lets the owning game mark an open session refund-eligible.
func (e *Engine) ExecuteFlagAbandoned(ctx context.Context, db repository.DBTX, params domain.FlagAbandonedParams) (*domain.Session, error) {
	session, err := e.LockSessionForUpdate(ctx, db, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("flag abandoned: %w", err)
	}
	if session.State != domain.SessionOpen {
		return nil, domain.ErrSessionNotOpen(session.ID.String())
	}
	if session.GameID != params.CallerGameID {
		return nil, domain.ErrUnauthorizedGame(params.CallerGameID)
	}
	if session.Abandoned {
		return session, nil
	}
	session.Abandoned = true
	if err := e.sessions.Update(ctx, db, session); err != nil {
		return nil, fmt.Errorf("flag abandoned: %w", err)
	}
	return session, nil
}

// checkRefundEligible enforces the refund preconditions: the session is open
// and either game-flagged abandoned or backed by an expired randomness request.
func (e *Engine) checkRefundEligible(ctx context.Context, db repository.DBTX, session *domain.Session) error {
	if session.State != domain.SessionOpen {
		return domain.ErrSessionNotOpen(session.ID.String())
	}
	if session.Abandoned {
		return nil
	}
	if session.RandomnessID != nil {
		req, err := e.randomness.FindByPurpose(ctx, db, *session.RandomnessID)
		if err != nil {
			return fmt.Errorf("check randomness: %w", err)
		}
		if req != nil && req.State == domain.RandomnessExpired {
			return nil
		}
	}
	return domain.ErrRefundNotEligible(session.ID.String())
}

func (e *Engine) refundLocked(ctx context.Context, db repository.DBTX, session *domain.Session) (*domain.CommandResult, error) {
	if _, err := e.LockPlayerForUpdate(ctx, db, session.PlayerID); err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}

	amount := session.RemainingPool
	now := time.Now()
	session.RemainingPool = 0
	session.State = domain.SessionRefunded
	session.ClosedAt = &now
	if err := e.sessions.Update(ctx, db, session); err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}

	sid := session.ID
	entry, updatedPlayer, err := e.PostLedgerEntry(ctx, db, domain.PostLedgerEntryParams{
		PlayerID:      session.PlayerID,
		SessionID:     &sid,
		Type:          domain.EntryRefund,
		Amount:        amount,
		BalanceUpdate: domain.BalanceUpdate{PayoutBalance: amount},
		Metadata:      mergeMeta(nil, map[string]interface{}{"game_id": session.GameID}),
	})
	if err != nil {
		return nil, fmt.Errorf("refund post: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewSessionEvent(domain.EventSessionRefunded, session)}
	if err := e.emit(ctx, db, events...); err != nil {
		return nil, err
	}

	return &domain.CommandResult{
		Entry:   entry,
		Session: session,
		Player:  updatedPlayer,
		Events:  events,
	}, nil
}
