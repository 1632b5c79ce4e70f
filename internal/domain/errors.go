package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// Rejection errors. These always leave state unchanged; callers branch on the
// code to distinguish "try again" from "this session is dead".

func ErrGameNotActive(gameID string) *AppError {
	return &AppError{Code: "GAME_NOT_ACTIVE", Message: fmt.Sprintf("game %s is not active", gameID), Status: 409}
}

func ErrWagerOutOfBounds(amount, min, max int64) *AppError {
	return &AppError{Code: "WAGER_OUT_OF_BOUNDS", Message: fmt.Sprintf("wager %d outside [%d, %d]", amount, min, max), Status: 400}
}

func ErrAbuseGuardExceeded(gameID string) *AppError {
	return &AppError{Code: "ABUSE_GUARD_EXCEEDED", Message: fmt.Sprintf("wager volume ceiling reached for game %s in the current window", gameID), Status: 429}
}

func ErrBreakerTripped() *AppError {
	return &AppError{Code: "BREAKER_TRIPPED", Message: "circuit breaker is not armed", Status: 503}
}

func ErrSessionNotOpen(sessionID string) *AppError {
	return &AppError{Code: "SESSION_NOT_OPEN", Message: fmt.Sprintf("session %s is not open", sessionID), Status: 409}
}

func ErrUnauthorizedGame(gameID string) *AppError {
	return &AppError{Code: "UNAUTHORIZED_GAME", Message: fmt.Sprintf("game %s does not own this session", gameID), Status: 403}
}

func ErrPayoutExceedsPool(requested, remaining int64) *AppError {
	return &AppError{Code: "PAYOUT_EXCEEDS_POOL", Message: fmt.Sprintf("payout %d exceeds remaining pool %d", requested, remaining), Status: 400}
}

func ErrCommitMismatch() *AppError {
	return &AppError{Code: "COMMIT_MISMATCH", Message: "reveal does not match stored commitment", Status: 400}
}

func ErrAlreadyCommitted(key string) *AppError {
	return &AppError{Code: "ALREADY_COMMITTED", Message: fmt.Sprintf("commitment already exists for %s", key), Status: 409}
}

func ErrSeedUnrecoverable(purposeID string) *AppError {
	return &AppError{Code: "SEED_UNRECOVERABLE", Message: fmt.Sprintf("fingerprint for request %s is outside every lookback window", purposeID), Status: 410}
}

func ErrInvalidEntryConfig(msg string) *AppError {
	return &AppError{Code: "INVALID_ENTRY_CONFIG", Message: msg, Status: 400}
}

func ErrRefundNotEligible(sessionID string) *AppError {
	return &AppError{Code: "REFUND_NOT_ELIGIBLE", Message: fmt.Sprintf("session %s is not eligible for refund", sessionID), Status: 409}
}

func ErrRevealTooEarly(current, target uint64) *AppError {
	return &AppError{Code: "REVEAL_TOO_EARLY", Message: fmt.Sprintf("target index %d not reached (current %d)", target, current), Status: 425}
}

func ErrInsufficientBalance() *AppError {
	return &AppError{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance", Status: 400}
}
