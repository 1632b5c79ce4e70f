package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/ledger"
	"github.com/stakehouse/platform/internal/repository"
)

// LedgerService wraps every ledger command in one transaction, so a rejection
// error rolls the whole command back.
type LedgerService struct {
	runner   repository.TxRunner
	engine   *ledger.Engine
	sessions repository.SessionRepository
	entries  repository.EntryRepository
	players  repository.PlayerRepository
	treasury repository.TreasuryRepository
	logger   *slog.Logger
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(
	runner repository.TxRunner,
	engine *ledger.Engine,
	sessions repository.SessionRepository,
	entries repository.EntryRepository,
	players repository.PlayerRepository,
	treasury repository.TreasuryRepository,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		runner:   runner,
		engine:   engine,
		sessions: sessions,
		entries:  entries,
		players:  players,
		treasury: treasury,
		logger:   logger,
	}
}

// OpenSession opens a wagered session for a player.
func (s *LedgerService) OpenSession(ctx context.Context, params domain.OpenSessionParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		result, err = s.engine.ExecuteOpenSession(ctx, db, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session opened",
		"session_id", result.Session.ID,
		"game_id", params.GameID,
		"player_id", params.PlayerID,
		"wager", params.Wager)
	return result, nil
}

// CreditPayout credits a payout from a session's remaining pool.
func (s *LedgerService) CreditPayout(ctx context.Context, params domain.CreditPayoutParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		result, err = s.engine.ExecuteCreditPayout(ctx, db, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payout credited",
		"session_id", params.SessionID,
		"payee_id", params.PayeeID,
		"amount", params.Amount,
		"remaining_pool", result.Session.RemainingPool)
	return result, nil
}

// SettleSession closes a session and sweeps its unclaimed pool.
func (s *LedgerService) SettleSession(ctx context.Context, params domain.SettleSessionParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		result, err = s.engine.ExecuteSettleSession(ctx, db, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session settled", "session_id", params.SessionID, "swept", result.Entry.Amount)
	return result, nil
}

// Withdraw pays out a player's full pull-payment balance.
func (s *LedgerService) Withdraw(ctx context.Context, params domain.WithdrawParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		result, err = s.engine.ExecuteWithdraw(ctx, db, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal paid", "player_id", params.PlayerID, "amount", result.Entry.Amount)
	return result, nil
}

// RefundSession refunds one eligible session.
func (s *LedgerService) RefundSession(ctx context.Context, params domain.RefundSessionParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		result, err = s.engine.ExecuteRefundSession(ctx, db, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session refunded", "session_id", params.SessionID, "amount", result.Entry.Amount)
	return result, nil
}

// BatchRefund refunds a set of sessions atomically.
func (s *LedgerService) BatchRefund(ctx context.Context, sessionIDs []uuid.UUID) ([]domain.CommandResult, error) {
	var results []domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		results, err = s.engine.ExecuteBatchRefund(ctx, db, sessionIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch refunded", "count", len(results))
	return results, nil
}

// Deposit credits external funds into a player's wagerable balance.
func (s *LedgerService) Deposit(ctx context.Context, params domain.DepositParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		result, err = s.engine.ExecuteDeposit(ctx, db, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deposit posted", "player_id", params.PlayerID, "amount", params.Amount)
	return result, nil
}

// FlagAbandoned marks a session refund-eligible on the owning game's behalf.
func (s *LedgerService) FlagAbandoned(ctx context.Context, params domain.FlagAbandonedParams) (*domain.Session, error) {
	var session *domain.Session
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		session, err = s.engine.ExecuteFlagAbandoned(ctx, db, params)
		return err
	})
	return session, err
}

// CreatePlayer provisions a new player account with zero balances.
func (s *LedgerService) CreatePlayer(ctx context.Context, currency string) (*domain.Player, error) {
	if currency == "" {
		currency = "CHIP"
	}
	player := &domain.Player{
		ID:        uuid.New(),
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		return s.players.Create(ctx, db, player)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("player created", "player_id", player.ID)
	return player, nil
}

// GetSession returns one session.
func (s *LedgerService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	var session *domain.Session
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		session, err = s.sessions.FindByID(ctx, db, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound("session", sessionID.String())
		}
		return nil
	})
	return session, err
}

// GetPlayer returns one player's balances.
func (s *LedgerService) GetPlayer(ctx context.Context, playerID uuid.UUID) (*domain.Player, error) {
	var player *domain.Player
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		player, err = s.players.FindByID(ctx, db, playerID)
		if err != nil {
			return err
		}
		if player == nil {
			return domain.ErrNotFound("player", playerID.String())
		}
		return nil
	})
	return player, err
}

// ListEntries returns a player's recent ledger entries.
func (s *LedgerService) ListEntries(ctx context.Context, playerID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []domain.LedgerEntry
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		entries, err = s.entries.ListByPlayer(ctx, db, playerID, limit)
		return err
	})
	return entries, err
}

// TreasuryReport is the administrative solvency snapshot.
type TreasuryReport struct {
	RakeAccrued   int64 `json:"rake_accrued"`
	BurnAccrued   int64 `json:"burn_accrued"`
	OpenPoolTotal int64 `json:"open_pool_total"`
}

// Treasury returns the accrued rake/burn and outstanding pool liability.
func (s *LedgerService) Treasury(ctx context.Context) (*TreasuryReport, error) {
	var report TreasuryReport
	err := s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		treasury, err := s.treasury.Get(ctx, db)
		if err != nil {
			return err
		}
		pools, err := s.sessions.SumOpenPools(ctx, db)
		if err != nil {
			return err
		}
		report = TreasuryReport{
			RakeAccrued:   treasury.RakeAccrued,
			BurnAccrued:   treasury.BurnAccrued,
			OpenPoolTotal: pools,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
