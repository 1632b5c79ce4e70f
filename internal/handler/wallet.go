package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/projection"
	"github.com/stakehouse/platform/internal/service"
)

// WalletHandler serves the player-facing wallet surface: balances, deposits,
// pull-payment withdrawals and the ledger history.
type WalletHandler struct {
	ledger      *service.LedgerService
	projections projection.Store
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(ledger *service.LedgerService, projections projection.Store) *WalletHandler {
	return &WalletHandler{ledger: ledger, projections: projections}
}

type balanceResponse struct {
	PlayerID      string `json:"player_id"`
	Balance       int64  `json:"balance"`
	PayoutBalance int64  `json:"payout_balance"`
	Cached        bool   `json:"cached"`
}

// GetBalance returns the caller's balances, served from the projection cache
// when fresh and refilled from the ledger on a miss.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	if h.projections != nil {
		if p, err := projection.GetBalance(r.Context(), h.projections, playerID.String()); err == nil {
			RespondJSON(w, http.StatusOK, balanceResponse{
				PlayerID:      p.PlayerID,
				Balance:       p.Balance,
				PayoutBalance: p.PayoutBalance,
				Cached:        true,
			})
			return
		}
	}

	player, err := h.ledger.GetPlayer(r.Context(), playerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if h.projections != nil {
		_ = projection.UpdateBalance(r.Context(), h.projections, projection.BalanceProjection{
			PlayerID:      player.ID.String(),
			Balance:       player.Balance,
			PayoutBalance: player.PayoutBalance,
		})
	}
	RespondJSON(w, http.StatusOK, balanceResponse{
		PlayerID:      player.ID.String(),
		Balance:       player.Balance,
		PayoutBalance: player.PayoutBalance,
	})
}

type depositRequest struct {
	Amount      int64           `json:"amount"`
	ExternalRef string          `json:"external_ref"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Deposit credits external funds to the caller's wagerable balance.
// ExternalRef deduplicates payment-rail retries.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req depositRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.ledger.Deposit(r.Context(), domain.DepositParams{
		PlayerID:    playerID,
		Amount:      req.Amount,
		ExternalRef: req.ExternalRef,
		Metadata:    req.Metadata,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Idempotent {
		status = http.StatusOK
	}
	RespondJSON(w, status, result.Entry)
}

type withdrawRequest struct {
	ExternalRef string          `json:"external_ref"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Withdraw pays out the caller's entire pull-payment balance.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req withdrawRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.ledger.Withdraw(r.Context(), domain.WithdrawParams{
		PlayerID:    playerID,
		ExternalRef: req.ExternalRef,
		Metadata:    req.Metadata,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	if h.projections != nil {
		_ = projection.InvalidateBalance(r.Context(), h.projections, playerID.String())
	}
	RespondJSON(w, http.StatusOK, result.Entry)
}

// GetEntries returns the caller's recent ledger entries.
func (h *WalletHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.ledger.ListEntries(r.Context(), playerID, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// playerIDFromContext parses the authenticated subject as a player UUID.
func playerIDFromContext(r *http.Request) (uuid.UUID, error) {
	subject := auth.SubjectFromContext(r.Context())
	if subject == "" {
		return uuid.Nil, domain.ErrUnauthorized("missing authentication")
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid player subject")
	}
	return id, nil
}
