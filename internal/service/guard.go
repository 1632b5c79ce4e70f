package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/guard"
	"github.com/stakehouse/platform/internal/repository"
)

// GuardService exposes the guardian-facing breaker, abuse guard and
// membership operations. Guard state is in-memory; only the emitted events go
// through the outbox.
type GuardService struct {
	runner    repository.TxRunner
	outbox    repository.OutboxRepository
	breaker   *guard.CircuitBreaker
	flash     *guard.FlashAbuseGuard
	guardians *guard.GuardianSet
	logger    *slog.Logger
}

// NewGuardService creates a GuardService.
func NewGuardService(
	runner repository.TxRunner,
	outbox repository.OutboxRepository,
	breaker *guard.CircuitBreaker,
	flash *guard.FlashAbuseGuard,
	guardians *guard.GuardianSet,
	logger *slog.Logger,
) *GuardService {
	return &GuardService{
		runner:    runner,
		outbox:    outbox,
		breaker:   breaker,
		flash:     flash,
		guardians: guardians,
		logger:    logger,
	}
}

// TripBreaker halts new risk-bearing activity immediately.
func (s *GuardService) TripBreaker(ctx context.Context, guardianID string) (domain.BreakerStatus, error) {
	if !s.guardians.IsGuardian(guardianID) {
		return domain.BreakerStatus{}, domain.ErrForbidden("not a guardian")
	}
	status := s.breaker.Trip(guardianID)
	s.logger.Warn("breaker tripped", "guardian", guardianID)
	return status, s.emitBreakerEvent(ctx, domain.EventBreakerTripped, guardianID, status)
}

// RequestBreakerReset files a timelocked reset.
func (s *GuardService) RequestBreakerReset(ctx context.Context, guardianID string) (domain.BreakerStatus, error) {
	if !s.guardians.IsGuardian(guardianID) {
		return domain.BreakerStatus{}, domain.ErrForbidden("not a guardian")
	}
	status, err := s.breaker.RequestReset(guardianID)
	if err != nil {
		return status, err
	}
	s.logger.Info("breaker reset requested", "guardian", guardianID, "executable_at", status.ExecutableAt)
	return status, s.emitBreakerEvent(ctx, domain.EventResetRequested, guardianID, status)
}

// VetoBreakerReset cancels a pending reset.
func (s *GuardService) VetoBreakerReset(ctx context.Context, guardianID string) (domain.BreakerStatus, error) {
	if !s.guardians.IsGuardian(guardianID) {
		return domain.BreakerStatus{}, domain.ErrForbidden("not a guardian")
	}
	status, err := s.breaker.VetoReset(guardianID)
	if err != nil {
		return status, err
	}
	s.logger.Warn("breaker reset vetoed", "guardian", guardianID)
	return status, s.emitBreakerEvent(ctx, domain.EventResetVetoed, guardianID, status)
}

// BreakerStatus returns the current breaker snapshot, promoting an unvetoed
// pending reset past its timelock.
func (s *GuardService) BreakerStatus() domain.BreakerStatus {
	return s.breaker.Status()
}

// SetGameCeiling overrides a game's flash-guard window ceiling.
func (s *GuardService) SetGameCeiling(ctx context.Context, guardianID, gameID string, ceiling int64) error {
	if !s.guardians.IsGuardian(guardianID) {
		return domain.ErrForbidden("not a guardian")
	}
	if ceiling < 0 {
		return domain.ErrValidation("ceiling must be non-negative")
	}
	s.flash.SetGameCeiling(gameID, ceiling)
	s.logger.Info("flash guard ceiling set", "game_id", gameID, "ceiling", ceiling)
	return nil
}

// WindowVolume reports the current-window wager volume for a game.
func (s *GuardService) WindowVolume(gameID string) int64 {
	return s.flash.WindowVolume(gameID)
}

// ProposeGuardian schedules a guardian addition or removal after the handover
// delay.
func (s *GuardService) ProposeGuardian(ctx context.Context, byID, targetID string, add bool) (time.Time, error) {
	effective, err := s.guardians.Propose(byID, targetID, add)
	if err != nil {
		return time.Time{}, err
	}
	s.logger.Info("guardian change proposed", "by", byID, "target", targetID, "add", add, "effective_at", effective)
	return effective, nil
}

// CancelGuardianProposal drops a pending membership change.
func (s *GuardService) CancelGuardianProposal(ctx context.Context, byID, targetID string) error {
	return s.guardians.CancelProposal(byID, targetID)
}

// ListGuardians returns the active guardian ids.
func (s *GuardService) ListGuardians() []string {
	return s.guardians.List()
}

func (s *GuardService) emitBreakerEvent(ctx context.Context, evt domain.EventType, guardianID string, status domain.BreakerStatus) error {
	return s.runner.WithinTx(ctx, func(db repository.DBTX) error {
		return s.outbox.Insert(ctx, db, domain.NewBreakerEvent(evt, guardianID, status))
	})
}
