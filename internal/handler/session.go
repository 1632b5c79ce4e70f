package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/service"
)

// SessionHandler serves the player-facing session surface.
type SessionHandler struct {
	ledger *service.LedgerService
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(ledger *service.LedgerService) *SessionHandler {
	return &SessionHandler{ledger: ledger}
}

// GetSession returns one of the caller's sessions.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	sessionID, err := sessionIDFromPath(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	session, err := h.ledger.GetSession(r.Context(), sessionID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if session.PlayerID != playerID {
		RespondError(w, domain.ErrForbidden("not your session"))
		return
	}
	RespondJSON(w, http.StatusOK, session)
}

// RefundSession triggers a refund of an eligible session. Any authenticated
// caller may trigger it; the refund always pays the session's player.
func (h *SessionHandler) RefundSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromPath(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.ledger.RefundSession(r.Context(), domain.RefundSessionParams{SessionID: sessionID})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session": result.Session,
		"entry":   result.Entry,
	})
}

type batchRefundRequest struct {
	SessionIDs []uuid.UUID `json:"session_ids"`
}

// BatchRefund refunds a set of eligible sessions in one transaction. Any
// ineligible session rejects the whole batch before any state changes.
func (h *SessionHandler) BatchRefund(w http.ResponseWriter, r *http.Request) {
	var req batchRefundRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	results, err := h.ledger.BatchRefund(r.Context(), req.SessionIDs)
	if err != nil {
		RespondError(w, err)
		return
	}

	refunded := make([]uuid.UUID, 0, len(results))
	var total int64
	for _, res := range results {
		refunded = append(refunded, res.Session.ID)
		total += res.Entry.Amount
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"refunded":     refunded,
		"count":        len(refunded),
		"total_amount": total,
	})
}

func sessionIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid session id")
	}
	return id, nil
}
