package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/cricketduel/backend/internal/metrics"
	mW "github.com/cricketduel/backend/internal/middleware"
)

// Router bundles everything the HTTP surface is built from.
type Router struct {
	Auth          *AuthHandler
	Sessions      *SessionHandler
	Matches       *MatchHandler
	Invites       *InviteHandler
	Wallet        *WalletHandler
	Distributors  *DistributorHandler
	Authenticator mW.Authenticator
	Health        metrics.HealthFunc
	Gatherer      prometheus.Gatherer
	CORSOrigins   []string
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", metrics.HealthHandler(rt.Health))
	r.Handle("/metrics", metrics.Handler(rt.Gatherer))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", rt.Auth.Register)
		r.Post("/auth/login", rt.Auth.Login)
		r.Post("/auth/logout", rt.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(rt.Authenticator))

			r.Get("/auth/me", rt.Auth.Me)

			r.Get("/matches", rt.Sessions.ListMatches)
			r.Post("/matches/sync", rt.Matches.Sync)
			r.Post("/matches/{matchID}/status", rt.Matches.SetStatus)
			r.Get("/matches/{matchID}/sessions", rt.Sessions.ListOpenSessions)
			r.Post("/matches/{matchID}/sessions", rt.Sessions.CreateSession)

			r.Get("/sessions", rt.Sessions.ListSessions)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", rt.Sessions.GetSession)
				r.Get("/updates", rt.Sessions.Updates)
				r.Post("/join", rt.Sessions.Join)
				r.Post("/toss", rt.Sessions.Toss)
				r.Get("/picks/check", rt.Sessions.CanPick)
				r.Post("/picks", rt.Sessions.Pick)
				r.Post("/stake", rt.Sessions.Stake)
				r.Post("/settle", rt.Sessions.Settle)
				r.Post("/cancel", rt.Sessions.Cancel)
				r.Post("/invites", rt.Invites.Send)
			})

			r.Get("/invites", rt.Invites.List)
			r.Post("/invites/{invite}/accept", rt.Invites.Accept)
			r.Post("/invites/{invite}/decline", rt.Invites.Decline)
			r.Get("/invites/{invite}/qr", rt.Invites.QR)

			r.Get("/wallet", rt.Wallet.Get)
			r.Get("/wallet/transactions", rt.Wallet.Transactions)
			r.Post("/wallet/deposit", rt.Wallet.Deposit)
			r.Post("/wallet/withdraw", rt.Wallet.Withdraw)

			r.Post("/distributors", rt.Distributors.AssignDistributor)
			r.Post("/distributors/{id}/credit", rt.Distributors.CreditDistributor)
			r.Post("/distributors/{id}/withdraw", rt.Distributors.WithdrawFromDistributor)
			r.Post("/distributor/users", rt.Distributors.AssignEndUser)
			r.Post("/distributor/users/{id}/credit", rt.Distributors.CreditEndUser)
			r.Get("/distributor/wallet", rt.Distributors.Wallet)

			r.Post("/deposit-requests", rt.Distributors.RaiseDepositRequest)
			r.Get("/deposit-requests", rt.Distributors.ListDepositRequests)
			r.Post("/deposit-requests/{id}/approve", rt.Distributors.ApproveDepositRequest)
			r.Post("/deposit-requests/{id}/reject", rt.Distributors.RejectDepositRequest)
			r.Post("/deposit-requests/{id}/cancel", rt.Distributors.CancelDepositRequest)
		})
	})

	return r
}
