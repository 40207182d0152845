package handlers

import (
	"net/http"

	"brokerage/internal/middleware"
	"brokerage/internal/money"
	"brokerage/internal/websocket"
)

// Index returns the portfolio: every held symbol priced at its current
// quote, plus cash and the grand total.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.service.Portfolio(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load portfolio")
		return
	}
	holdings := make([]map[string]any, 0, len(view.Holdings))
	for _, holding := range view.Holdings {
		holdings = append(holdings, map[string]any{
			"symbol": holding.Symbol,
			"shares": holding.Shares,
			"price":  money.FormatUSD(holding.Price),
			"value":  money.FormatUSD(holding.Value),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"holdings": holdings,
		"cash":     money.FormatUSD(view.Cash),
		"total":    money.FormatUSD(view.Total),
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	trades, err := h.trades.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load history")
		return
	}
	rows := make([]map[string]any, 0, len(trades))
	for _, trade := range trades {
		rows = append(rows, map[string]any{
			"symbol":     trade.Symbol,
			"shares":     trade.Shares,
			"price":      money.FormatUSD(trade.Price),
			"transacted": trade.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, rows)
}

// SellPage returns the symbols the user can sell and how many shares of
// each are held.
func (h *Handler) SellPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	positions, err := h.trades.PositionsByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load positions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (h *Handler) BuyPage(w http.ResponseWriter, r *http.Request) {
	h.respondCash(w, r)
}

func (h *Handler) DepositPage(w http.ResponseWriter, r *http.Request) {
	h.respondCash(w, r)
}

func (h *Handler) respondCash(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"cash": money.FormatUSD(user.Cash)})
}

func (h *Handler) WSPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.hub, userID)
}
