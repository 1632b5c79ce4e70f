package domain

import "time"

// GuardResult is the outcome of a guard check.
type GuardResult struct {
	Allowed bool
	Reason  string
	Guard   string
}

// BreakerState tracks the global circuit breaker.
type BreakerState string

const (
	BreakerArmed        BreakerState = "armed"
	BreakerTrippedState BreakerState = "tripped"
	BreakerPendingReset BreakerState = "pending_reset"
)

// BreakerStatus is the externally visible breaker snapshot.
type BreakerStatus struct {
	State        BreakerState `json:"state"`
	TrippedBy    string       `json:"tripped_by,omitempty"`
	TrippedAt    *time.Time   `json:"tripped_at,omitempty"`
	ResetBy      string       `json:"reset_requested_by,omitempty"`
	ExecutableAt *time.Time   `json:"reset_executable_at,omitempty"`
}
