package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/handler"
	"github.com/stakehouse/platform/internal/service"
)

// NewRouter builds the game gateway chi.Router. Session, payout and
// randomness routes each demand their own token scope, so a leaked
// payout-only token cannot open sessions.
func NewRouter(
	keys *auth.GameKeyManager,
	ledger *service.LedgerService,
	random *service.RandomService,
	logger *slog.Logger,
) chi.Router {
	h := NewHandler(ledger, random)

	r := chi.NewRouter()
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.JSONContentType)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateGame(keys, auth.ScopeSessions))

		r.Post("/sessions", h.OpenSession)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Post("/sessions/{sessionID}/settle", h.SettleSession)
		r.Post("/sessions/{sessionID}/abandon", h.FlagAbandoned)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateGame(keys, auth.ScopePayouts))

		r.Post("/sessions/{sessionID}/payouts", h.CreditPayout)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateGame(keys, auth.ScopeRandomness))

		r.Route("/randomness", func(r chi.Router) {
			r.Post("/commit", h.CommitSeed)
			r.Get("/{purposeID}", h.GetSeed)
			r.Post("/{purposeID}/reveal", h.RevealSeed)
		})

		r.Route("/choices", func(r chi.Router) {
			r.Post("/commit", h.CommitChoice)
			r.Post("/reveal", h.RevealChoice)
			r.Post("/forfeit", h.ForfeitChoice)
		})
	})

	return r
}
