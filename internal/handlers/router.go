package handlers

import (
	"net/http"

	"brokerage/internal/config"
	"brokerage/internal/db"
	"brokerage/internal/middleware"
	"brokerage/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner db.TxRunner
	cfg      config.Config
	users    UserStore
	trades   TradeStore
	sessions SessionStore
	audit    AuditStore
	service  TradingService
	hub      *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, trades TradeStore, sessions SessionStore, audit AuditStore, service TradingService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner: txRunner,
		cfg:      cfg,
		users:    users,
		trades:   trades,
		sessions: sessions,
		audit:    audit,
		service:  service,
		hub:      hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Pages show account state; none of them may be served from cache.
	router.Use(middleware.NoStore)

	// HTML rendering lives in a separate frontend; the GET variants of the
	// auth pages just confirm the endpoint.
	router.Get("/register", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"page": "register"})
	})
	router.Post("/register", h.Register)
	router.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"page": "login"})
	})
	router.Post("/login", h.Login)
	router.Get("/logout", h.Logout)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Session(h.cfg.SessionSecret, h.sessions))
		r.Get("/", h.Index)
		r.Get("/buy", h.BuyPage)
		r.Post("/buy", h.Buy)
		r.Get("/sell", h.SellPage)
		r.Post("/sell", h.Sell)
		r.Get("/history", h.History)
		r.Get("/quote", h.QuotePage)
		r.Post("/quote", h.Quote)
		r.Get("/deposit", h.DepositPage)
		r.Post("/deposit", h.Deposit)
		r.Get("/ws/portfolio", h.WSPortfolio)
	})

	return router
}
