package admin

import (
	"net/http"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/handler"
	"github.com/stakehouse/platform/internal/service"
)

// TreasuryHandler serves the solvency report and the randomness audit lookup.
type TreasuryHandler struct {
	ledger *service.LedgerService
	random *service.RandomService
}

// NewTreasuryHandler creates a TreasuryHandler.
func NewTreasuryHandler(ledger *service.LedgerService, random *service.RandomService) *TreasuryHandler {
	return &TreasuryHandler{ledger: ledger, random: random}
}

// GetReport returns accrued rake/burn and the outstanding open-pool liability.
func (h *TreasuryHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Treasury(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, report)
}

// GetRandomnessRequest returns the stored state of one randomness request,
// for audit of commitments and reveals.
func (h *TreasuryHandler) GetRandomnessRequest(w http.ResponseWriter, r *http.Request) {
	purposeID := r.URL.Query().Get("purpose_id")
	if purposeID == "" {
		handler.RespondError(w, domain.ErrValidation("purpose_id is required"))
		return
	}

	req, err := h.random.GetRequest(r.Context(), purposeID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, req)
}
