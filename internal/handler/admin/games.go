package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/handler"
	"github.com/stakehouse/platform/internal/service"
)

// GamesHandler serves guardian operations on the game registry.
type GamesHandler struct {
	registry *service.RegistryService
	keys     *auth.GameKeyManager
}

// NewGamesHandler creates a GamesHandler.
func NewGamesHandler(registry *service.RegistryService, keys *auth.GameKeyManager) *GamesHandler {
	return &GamesHandler{registry: registry, keys: keys}
}

type registerGameRequest struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Entry       domain.EntryConfig `json:"entry"`
}

// RegisterGame registers a new game module with its entry economics.
func (h *GamesHandler) RegisterGame(w http.ResponseWriter, r *http.Request) {
	var req registerGameRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	game, err := h.registry.Register(r.Context(), req.ID, req.Name, req.Description, req.Entry)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, game)
}

// ListGames returns every registered game, removed ones included.
func (h *GamesHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.registry.List(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// GetGame returns one game.
func (h *GamesHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.registry.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

// RequestRemoval starts the grace-windowed removal of a game.
func (h *GamesHandler) RequestRemoval(w http.ResponseWriter, r *http.Request) {
	game, err := h.registry.RequestRemoval(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusAccepted, game)
}

// CancelRemoval aborts a pending removal before its deadline.
func (h *GamesHandler) CancelRemoval(w http.ResponseWriter, r *http.Request) {
	game, err := h.registry.CancelRemoval(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

// FinalizeRemoval removes a game once its grace period elapsed.
func (h *GamesHandler) FinalizeRemoval(w http.ResponseWriter, r *http.Request) {
	game, err := h.registry.FinalizeRemoval(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

// PauseGame stops new sessions for a game.
func (h *GamesHandler) PauseGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.registry.Pause(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

// UnpauseGame reopens a paused game.
func (h *GamesHandler) UnpauseGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.registry.Unpause(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

type burnPolicyRequest struct {
	BurnPolicy domain.BurnPolicy `json:"burn_policy"`
}

// SetBurnPolicy switches when a game's burn deduction is realized.
func (h *GamesHandler) SetBurnPolicy(w http.ResponseWriter, r *http.Request) {
	var req burnPolicyRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	game, err := h.registry.SetBurnPolicy(r.Context(), chi.URLParam(r, "gameID"), req.BurnPolicy)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

type issueTokenRequest struct {
	Scopes []string `json:"scopes"`
}

// IssueGameToken mints a scoped HMAC token for a registered game module.
// Only games that can still open sessions get one.
func (h *GamesHandler) IssueGameToken(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	var req issueTokenRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{auth.ScopeSessions, auth.ScopePayouts, auth.ScopeRandomness}
	}

	game, err := h.registry.Get(r.Context(), gameID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if game.State == domain.GameRemoved {
		handler.RespondError(w, domain.ErrGameNotActive(gameID))
		return
	}

	token, err := h.keys.GenerateGameToken(gameID, req.Scopes)
	if err != nil {
		handler.RespondError(w, domain.ErrInternal("issue game token", err))
		return
	}
	handler.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"token":  token,
		"scopes": req.Scopes,
	})
}
