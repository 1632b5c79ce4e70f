package gateway

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/handler"
	"github.com/stakehouse/platform/internal/service"
)

// Handler serves the game-module gateway. Every route is authenticated with a
// scoped game token; the token subject is the registered game id and is the
// only identity the ledger trusts for ownership checks.
type Handler struct {
	ledger *service.LedgerService
	random *service.RandomService
}

// NewHandler creates a gateway Handler.
func NewHandler(ledger *service.LedgerService, random *service.RandomService) *Handler {
	return &Handler{ledger: ledger, random: random}
}

func callerGameID(r *http.Request) string {
	if token := auth.GameTokenFromContext(r.Context()); token != nil {
		return token.Sub
	}
	return ""
}

type openSessionRequest struct {
	PlayerID     uuid.UUID       `json:"player_id"`
	Wager        int64           `json:"wager"`
	RandomnessID string          `json:"randomness_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
}

// OpenSession opens a wagered session for a player against the calling game.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.ledger.OpenSession(r.Context(), domain.OpenSessionParams{
		GameID:       callerGameID(r),
		PlayerID:     req.PlayerID,
		Wager:        req.Wager,
		RandomnessID: req.RandomnessID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, result.Session)
}

// GetSession returns one of the calling game's sessions.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromPath(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	session, err := h.ledger.GetSession(r.Context(), sessionID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if session.GameID != callerGameID(r) {
		handler.RespondError(w, domain.ErrUnauthorizedGame(callerGameID(r)))
		return
	}
	handler.RespondJSON(w, http.StatusOK, session)
}

type creditPayoutRequest struct {
	PayeeID  uuid.UUID       `json:"payee_id"`
	Amount   int64           `json:"amount"`
	Metadata json.RawMessage `json:"metadata"`
}

// CreditPayout credits a payout from the session's remaining pool.
func (h *Handler) CreditPayout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromPath(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	var req creditPayoutRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.ledger.CreditPayout(r.Context(), domain.CreditPayoutParams{
		SessionID:    sessionID,
		CallerGameID: callerGameID(r),
		PayeeID:      req.PayeeID,
		Amount:       req.Amount,
		Metadata:     req.Metadata,
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"entry":   result.Entry,
		"session": result.Session,
	})
}

// SettleSession closes a session and sweeps its unclaimed pool.
func (h *Handler) SettleSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromPath(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	result, err := h.ledger.SettleSession(r.Context(), domain.SettleSessionParams{
		SessionID:    sessionID,
		CallerGameID: callerGameID(r),
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session": result.Session,
		"swept":   result.Entry.Amount,
	})
}

// FlagAbandoned marks one of the calling game's open sessions refund-eligible.
func (h *Handler) FlagAbandoned(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromPath(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	session, err := h.ledger.FlagAbandoned(r.Context(), domain.FlagAbandonedParams{
		SessionID:    sessionID,
		CallerGameID: callerGameID(r),
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, session)
}

type commitSeedRequest struct {
	PurposeID string `json:"purpose_id"`
}

// CommitSeed registers a randomness request bound to a future log record.
func (h *Handler) CommitSeed(w http.ResponseWriter, r *http.Request) {
	var req commitSeedRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	request, err := h.random.Commit(r.Context(), req.PurposeID, callerGameID(r))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, request)
}

// RevealSeed resolves a committed randomness request. An expired request is
// returned with state "expired" and status 200: the transition is real and
// the caller must branch on it (typically by refunding the session).
func (h *Handler) RevealSeed(w http.ResponseWriter, r *http.Request) {
	purposeID := chi.URLParam(r, "purposeID")

	request, err := h.random.Reveal(r.Context(), purposeID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, request)
}

// GetSeed returns a randomness request without mutating it.
func (h *Handler) GetSeed(w http.ResponseWriter, r *http.Request) {
	request, err := h.random.GetRequest(r.Context(), chi.URLParam(r, "purposeID"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, request)
}

type commitChoiceRequest struct {
	SessionID  string `json:"session_id"`
	PlayerID   string `json:"player_id"`
	CommitHash string `json:"commit_hash"` // hex-encoded SHA-256 digest
}

// CommitChoice stores a player's hidden choice digest for a session.
func (h *Handler) CommitChoice(w http.ResponseWriter, r *http.Request) {
	var req commitChoiceRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	digest, err := hex.DecodeString(req.CommitHash)
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("commit_hash must be hex"))
		return
	}

	commitment, err := h.random.CommitChoice(r.Context(), req.SessionID, req.PlayerID, digest)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, commitment)
}

type revealChoiceRequest struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Choice    string `json:"choice"`
	Secret    string `json:"secret"`
}

// RevealChoice verifies and opens a player's commitment.
func (h *Handler) RevealChoice(w http.ResponseWriter, r *http.Request) {
	var req revealChoiceRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	commitment, err := h.random.RevealChoice(r.Context(), req.SessionID, req.PlayerID, req.Choice, req.Secret)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, commitment)
}

type forfeitChoiceRequest struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
}

// ForfeitChoice closes an unrevealed commitment after its reveal deadline.
func (h *Handler) ForfeitChoice(w http.ResponseWriter, r *http.Request) {
	var req forfeitChoiceRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	commitment, err := h.random.ForfeitChoice(r.Context(), req.SessionID, req.PlayerID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, commitment)
}

func sessionIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid session id")
	}
	return id, nil
}
