package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/handler"
	"github.com/stakehouse/platform/internal/service"
)

// GuardHandler serves the guardian emergency surface: circuit breaker,
// flash-abuse ceilings and guardian membership.
type GuardHandler struct {
	guard *service.GuardService
}

// NewGuardHandler creates a GuardHandler.
func NewGuardHandler(guard *service.GuardService) *GuardHandler {
	return &GuardHandler{guard: guard}
}

// BreakerStatus returns the current breaker snapshot.
func (h *GuardHandler) BreakerStatus(w http.ResponseWriter, r *http.Request) {
	handler.RespondJSON(w, http.StatusOK, h.guard.BreakerStatus())
}

// TripBreaker halts new risk-bearing activity immediately.
func (h *GuardHandler) TripBreaker(w http.ResponseWriter, r *http.Request) {
	status, err := h.guard.TripBreaker(r.Context(), guardianID(r))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, status)
}

// RequestBreakerReset files a timelocked reset of a tripped breaker.
func (h *GuardHandler) RequestBreakerReset(w http.ResponseWriter, r *http.Request) {
	status, err := h.guard.RequestBreakerReset(r.Context(), guardianID(r))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusAccepted, status)
}

// VetoBreakerReset cancels a pending reset before its timelock elapses.
func (h *GuardHandler) VetoBreakerReset(w http.ResponseWriter, r *http.Request) {
	status, err := h.guard.VetoBreakerReset(r.Context(), guardianID(r))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, status)
}

type ceilingRequest struct {
	Ceiling int64 `json:"ceiling"`
}

// SetGameCeiling overrides a game's flash-guard window ceiling.
// A ceiling of zero restores the global default.
func (h *GuardHandler) SetGameCeiling(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	var req ceilingRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	if err := h.guard.SetGameCeiling(r.Context(), guardianID(r), gameID, req.Ceiling); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID,
		"ceiling": req.Ceiling,
	})
}

// GetWindowVolume reports a game's wager volume in the current guard window.
func (h *GuardHandler) GetWindowVolume(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID,
		"volume":  h.guard.WindowVolume(gameID),
	})
}

// ListGuardians returns the active guardian set.
func (h *GuardHandler) ListGuardians(w http.ResponseWriter, r *http.Request) {
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"guardians": h.guard.ListGuardians(),
	})
}

type guardianProposalRequest struct {
	TargetID string `json:"target_id"`
	Add      bool   `json:"add"`
}

// ProposeGuardian schedules a guardian addition or removal behind the
// handover delay.
func (h *GuardHandler) ProposeGuardian(w http.ResponseWriter, r *http.Request) {
	var req guardianProposalRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	effectiveAt, err := h.guard.ProposeGuardian(r.Context(), guardianID(r), req.TargetID, req.Add)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"target_id":    req.TargetID,
		"add":          req.Add,
		"effective_at": effectiveAt,
	})
}

// CancelGuardianProposal drops a pending membership change.
func (h *GuardHandler) CancelGuardianProposal(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	if err := h.guard.CancelGuardianProposal(r.Context(), guardianID(r), targetID); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"target_id": targetID})
}

func guardianID(r *http.Request) string {
	return auth.SubjectFromContext(r.Context())
}
