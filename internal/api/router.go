package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/duelpit/duelpit/internal/auth"
	"github.com/duelpit/duelpit/internal/services/ledger"
	"github.com/duelpit/duelpit/internal/services/match"
	"github.com/duelpit/duelpit/internal/services/registry"
	"github.com/duelpit/duelpit/internal/services/settlement"
)

type handlerProvider struct {
	registry   *registry.Service
	match      *match.Service
	settlement *settlement.Service
	ledger     *ledger.Service
}

// NewRouter constructs the chi router with all API endpoints registered.
// Everything except the health check sits behind bearer-token auth.
func NewRouter(
	verifier *auth.TokenVerifier,
	registrySvc *registry.Service,
	matchSvc *match.Service,
	settlementSvc *settlement.Service,
	ledgerSvc *ledger.Service,
) http.Handler {
	p := &handlerProvider{
		registry:   registrySvc,
		match:      matchSvc,
		settlement: settlementSvc,
		ledger:     ledgerSvc,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(verifier))

		r.Route("/wagers", func(r chi.Router) {
			r.Post("/", p.createWager)
			r.Get("/", p.listOpenWagers)
			r.Get("/{wagerID}", p.getWager)
			r.Post("/{wagerID}/accept", p.acceptWager)
			r.Post("/{wagerID}/cancel", p.cancelWager)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/{matchID}", p.getMatch)
			r.Post("/{matchID}/bans", p.submitBan)
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/balance", p.getBalance)
			r.Get("/transactions", p.getHistory)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/wagers", p.adminListWagers)
			r.Get("/transactions", p.adminListTransactions)
			r.Post("/wagers/{wagerID}/force-winner", p.adminForceWinner)
			r.Post("/wagers/{wagerID}/refund", p.adminRefund)
			r.Post("/wagers/{wagerID}/dispute", p.adminDispute)
		})
	})

	return r
}
