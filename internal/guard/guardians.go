package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/stakehouse/platform/internal/domain"
)

// GuardianSet manages the authorized guardians. Every membership change goes
// through a handover delay so a single compromised credential cannot swap the
// set out instantly.
type GuardianSet struct {
	mu      sync.Mutex
	active  map[string]bool
	pending map[string]pendingChange
	delay   time.Duration
	now     func() time.Time
}

type pendingChange struct {
	add         bool
	proposedBy  string
	effectiveAt time.Time
}

// DefaultHandoverDelay is the minimum delay on any authority transfer.
const DefaultHandoverDelay = 72 * time.Hour

// NewGuardianSet creates a set seeded with the initial guardians.
func NewGuardianSet(initial []string, delay time.Duration) *GuardianSet {
	if delay <= 0 {
		delay = DefaultHandoverDelay
	}
	active := make(map[string]bool, len(initial))
	for _, g := range initial {
		active[g] = true
	}
	return &GuardianSet{
		active:  active,
		pending: make(map[string]pendingChange),
		delay:   delay,
		now:     time.Now,
	}
}

// IsGuardian reports whether id is an active guardian, applying any pending
// change whose delay has elapsed.
func (s *GuardianSet) IsGuardian(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDueLocked()
	return s.active[id]
}

// Propose schedules adding or removing a guardian after the handover delay.
// Only an active guardian may propose.
func (s *GuardianSet) Propose(by, target string, add bool) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDueLocked()

	if !s.active[by] {
		return time.Time{}, domain.ErrForbidden(fmt.Sprintf("%s is not a guardian", by))
	}
	if add && s.active[target] {
		return time.Time{}, domain.ErrValidation(fmt.Sprintf("%s is already a guardian", target))
	}
	if !add && !s.active[target] {
		return time.Time{}, domain.ErrValidation(fmt.Sprintf("%s is not a guardian", target))
	}
	if !add && len(s.active) == 1 {
		return time.Time{}, domain.ErrValidation("cannot remove the last guardian")
	}

	effective := s.now().Add(s.delay)
	s.pending[target] = pendingChange{add: add, proposedBy: by, effectiveAt: effective}
	return effective, nil
}

// CancelProposal drops a pending change before it takes effect.
func (s *GuardianSet) CancelProposal(by, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDueLocked()

	if !s.active[by] {
		return domain.ErrForbidden(fmt.Sprintf("%s is not a guardian", by))
	}
	if _, ok := s.pending[target]; !ok {
		return domain.ErrNotFound("pending guardian change", target)
	}
	delete(s.pending, target)
	return nil
}

// List returns the active guardian ids.
func (s *GuardianSet) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDueLocked()

	out := make([]string, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	return out
}

func (s *GuardianSet) applyDueLocked() {
	now := s.now()
	for target, change := range s.pending {
		if now.Before(change.effectiveAt) {
			continue
		}
		if change.add {
			s.active[target] = true
		} else if len(s.active) > 1 {
			delete(s.active, target)
		}
		delete(s.pending, target)
	}
}
