package handler

import (
	"encoding/json"
	"net/http"

	"github.com/stakehouse/platform/internal/domain"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable tells game clients whether backing off and retrying can
	// succeed, or whether the target resource is dead and they must branch.
	Retryable bool `json:"retryable"`
}

// RespondError writes a JSON error response, detecting domain.AppError for
// status codes. Anything else is masked as an internal error.
func RespondError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*domain.AppError); ok {
		RespondJSON(w, appErr.Status, errorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: retryable(appErr.Code),
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

// retryable reports whether an error code names a transient condition. Every
// other code is a precondition failure that will not clear on its own.
func retryable(code string) bool {
	switch code {
	case "ABUSE_GUARD_EXCEEDED", "BREAKER_TRIPPED", "REVEAL_TOO_EARLY":
		return true
	}
	return false
}

// DecodeJSON reads and decodes a JSON request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
