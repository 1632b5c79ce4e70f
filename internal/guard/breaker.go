package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/stakehouse/platform/internal/domain"
)

// CircuitBreaker is the global kill-switch for risk-bearing activity.
// Any guardian may trip it instantly; re-arming requires a reset request that
// survives its timelock without a veto. Withdrawals and refunds never consult
// the breaker.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        domain.BreakerState
	trippedBy    string
	trippedAt    time.Time
	resetBy      string
	executableAt time.Time
	timelock     time.Duration
	now          func() time.Time
}

// DefaultResetTimelock is the delay before a pending reset becomes executable.
const DefaultResetTimelock = 12 * time.Hour

// NewCircuitBreaker creates an armed breaker with the given reset timelock.
func NewCircuitBreaker(timelock time.Duration) *CircuitBreaker {
	if timelock <= 0 {
		timelock = DefaultResetTimelock
	}
	return &CircuitBreaker{
		state:    domain.BreakerArmed,
		timelock: timelock,
		now:      time.Now,
	}
}

// Allow reports whether risk-bearing operations may proceed. A pending reset
// whose timelock has elapsed unvetoed re-arms the breaker here.
func (b *CircuitBreaker) Allow() domain.GuardResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.promoteLocked()
	if b.state == domain.BreakerArmed {
		return domain.GuardResult{Allowed: true}
	}
	return domain.GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("breaker %s", b.state),
		Guard:   "circuit_breaker",
	}
}

// Trip halts new activity immediately.
func (b *CircuitBreaker) Trip(guardian string) domain.BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = domain.BreakerTrippedState
	b.trippedBy = guardian
	b.trippedAt = b.now()
	b.resetBy = ""
	b.executableAt = time.Time{}
	return b.statusLocked()
}

// RequestReset files a timelocked reset. Only valid while tripped.
func (b *CircuitBreaker) RequestReset(guardian string) (domain.BreakerStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.promoteLocked()
	if b.state != domain.BreakerTrippedState {
		return b.statusLocked(), domain.ErrValidation(fmt.Sprintf("cannot request reset while breaker is %s", b.state))
	}
	b.state = domain.BreakerPendingReset
	b.resetBy = guardian
	b.executableAt = b.now().Add(b.timelock)
	return b.statusLocked(), nil
}

// VetoReset cancels a pending reset before its timelock elapses, returning the
// breaker to tripped.
func (b *CircuitBreaker) VetoReset(guardian string) (domain.BreakerStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.promoteLocked()
	if b.state != domain.BreakerPendingReset {
		return b.statusLocked(), domain.ErrValidation(fmt.Sprintf("no pending reset to veto (breaker is %s)", b.state))
	}
	b.state = domain.BreakerTrippedState
	b.trippedBy = guardian
	b.trippedAt = b.now()
	b.resetBy = ""
	b.executableAt = time.Time{}
	return b.statusLocked(), nil
}

// Status returns the current breaker snapshot.
func (b *CircuitBreaker) Status() domain.BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promoteLocked()
	return b.statusLocked()
}

func (b *CircuitBreaker) promoteLocked() {
	if b.state == domain.BreakerPendingReset && !b.now().Before(b.executableAt) {
		b.state = domain.BreakerArmed
		b.trippedBy = ""
		b.resetBy = ""
		b.executableAt = time.Time{}
	}
}

func (b *CircuitBreaker) statusLocked() domain.BreakerStatus {
	status := domain.BreakerStatus{State: b.state, TrippedBy: b.trippedBy, ResetBy: b.resetBy}
	if !b.trippedAt.IsZero() {
		t := b.trippedAt
		status.TrippedAt = &t
	}
	if !b.executableAt.IsZero() {
		t := b.executableAt
		status.ExecutableAt = &t
	}
	return status
}
