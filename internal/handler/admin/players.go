package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/handler"
	"github.com/stakehouse/platform/internal/service"
)

// PlayersHandler provisions player accounts and issues their tokens.
type PlayersHandler struct {
	ledger *service.LedgerService
	jwt    *auth.JWTManager
}

// NewPlayersHandler creates a PlayersHandler.
func NewPlayersHandler(ledger *service.LedgerService, jwt *auth.JWTManager) *PlayersHandler {
	return &PlayersHandler{ledger: ledger, jwt: jwt}
}

type createPlayerRequest struct {
	Currency string `json:"currency"`
}

// CreatePlayer provisions a player account and returns a player-realm token
// for it.
func (h *PlayersHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	player, err := h.ledger.CreatePlayer(r.Context(), req.Currency)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	token, err := h.jwt.GenerateToken(auth.RealmPlayer, player.ID.String(), "")
	if err != nil {
		handler.RespondError(w, domain.ErrInternal("issue player token", err))
		return
	}
	handler.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"player": player,
		"token":  token,
	})
}

// GetPlayer returns one player's ledger balances.
func (h *PlayersHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "playerID"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid player id"))
		return
	}

	player, err := h.ledger.GetPlayer(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, player)
}
