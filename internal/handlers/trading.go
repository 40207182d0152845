package handlers

import (
	"encoding/json"
	"net/http"

	"brokerage/internal/middleware"
	"brokerage/internal/money"
	"brokerage/internal/quotes"
	"brokerage/internal/services"
	"brokerage/internal/validator"
)

type tradeRequest struct {
	Symbol string `json:"symbol"`
	Shares string `json:"shares"`
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	shares, ok := parseShares(req.Shares)
	if !ok {
		respondError(w, http.StatusBadRequest, "shares must be a positive whole number")
		return
	}
	_, err := h.service.Buy(r.Context(), services.TradeRequest{
		UserID: userID,
		Symbol: req.Symbol,
		Shares: shares,
	})
	if err != nil {
		switch err {
		case services.ErrInvalidShares:
			respondError(w, http.StatusBadRequest, "shares must be a positive whole number")
		case services.ErrLookupFailed:
			respondError(w, http.StatusBadRequest, "invalid symbol")
		case services.ErrInsufficientFunds:
			respondError(w, http.StatusForbidden, "can't afford")
		default:
			respondError(w, http.StatusInternalServerError, "buy failed")
		}
		return
	}
	redirect(w, r, "/")
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	shares, ok := parseShares(req.Shares)
	if !ok {
		respondError(w, http.StatusBadRequest, "shares must be a positive whole number")
		return
	}
	_, err := h.service.Sell(r.Context(), services.TradeRequest{
		UserID: userID,
		Symbol: req.Symbol,
		Shares: shares,
	})
	if err != nil {
		switch err {
		case services.ErrInvalidShares:
			respondError(w, http.StatusBadRequest, "shares must be a positive whole number")
		case services.ErrLookupFailed:
			respondError(w, http.StatusBadRequest, "invalid symbol")
		case services.ErrInsufficientShares:
			respondError(w, http.StatusForbidden, "too many shares")
		default:
			respondError(w, http.StatusInternalServerError, "sell failed")
		}
		return
	}
	redirect(w, r, "/")
}

type depositRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := money.ParseCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := h.service.Deposit(r.Context(), services.DepositRequest{
		UserID: userID,
		Amount: amount,
	}); err != nil {
		if err == services.ErrInvalidAmount {
			respondError(w, http.StatusBadRequest, "deposit must be a positive amount")
			return
		}
		respondError(w, http.StatusInternalServerError, "deposit failed")
		return
	}
	redirect(w, r, "/")
}

type quoteRequest struct {
	Symbol string `json:"symbol"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	h.respondQuote(w, r, req.Symbol)
}

// QuotePage serves the same lookup for GET /quote?symbol=X. Without a
// symbol it just confirms the endpoint, mirroring the empty lookup form.
func (h *Handler) QuotePage(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		respondJSON(w, http.StatusOK, map[string]string{"page": "quote"})
		return
	}
	h.respondQuote(w, r, symbol)
}

func (h *Handler) respondQuote(w http.ResponseWriter, r *http.Request, symbol string) {
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if err := validator.ValidateSymbol(symbol); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := h.service.Quote(r.Context(), symbol)
	if err != nil {
		switch err {
		case services.ErrLookupFailed, quotes.ErrNotFound:
			respondError(w, http.StatusBadRequest, "invalid symbol")
		default:
			respondError(w, http.StatusInternalServerError, "quote lookup failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"symbol": quote.Symbol,
		"name":   quote.Name,
		"price":  money.FormatUSD(quote.Price),
	})
}
