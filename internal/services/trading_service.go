package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"brokerage/internal/db"
	"brokerage/internal/models"
	"brokerage/internal/money"
	"brokerage/internal/quotes"
	"brokerage/internal/store"
	"brokerage/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInvalidShares      = errors.New("invalid share count")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrLookupFailed       = errors.New("symbol lookup failed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
)

type UserStore interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.User, error)
	UpdateCash(ctx context.Context, tx store.Execer, userID string, cash int64) error
}

type TradeStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.TradeInput) error
	PositionsByUser(ctx context.Context, userID string) ([]models.Position, error)
	PositionBySymbol(ctx context.Context, tx store.Getter, userID, symbol string) (int64, error)
}

type QuoteLookup interface {
	Lookup(ctx context.Context, symbol string) (quotes.Quote, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type AccountHub interface {
	BroadcastAccount(userID string, update websocket.AccountUpdate)
}

// TradingService owns the buy/sell/deposit business rules. Every mutating
// operation runs its check-then-act sequence inside one serializable
// transaction with the user row locked, so concurrent requests against the
// same account cannot both validate against a stale balance or position.
type TradingService struct {
	txRunner db.TxRunner
	users    UserStore
	trades   TradeStore
	quotes   QuoteLookup
	audit    AuditStore
	hub      AccountHub
}

func NewTradingService(txRunner db.TxRunner, users UserStore, trades TradeStore, quoteLookup QuoteLookup, audit AuditStore, hub AccountHub) *TradingService {
	return &TradingService{
		txRunner: txRunner,
		users:    users,
		trades:   trades,
		quotes:   quoteLookup,
		audit:    audit,
		hub:      hub,
	}
}

type TradeRequest struct {
	UserID string
	Symbol string
	Shares int64
}

func (s *TradingService) Buy(ctx context.Context, req TradeRequest) (string, error) {
	if req.Shares <= 0 {
		return "", ErrInvalidShares
	}
	// Price lookup blocks on network I/O; do it before taking any lock.
	quote, err := s.lookup(ctx, req.Symbol)
	if err != nil {
		return "", err
	}
	// A cost that overflows int64 exceeds any representable cash balance.
	cost, ok := mulPrice(quote.Price, req.Shares)
	if !ok {
		return "", ErrInsufficientFunds
	}
	var tradeID string
	var cashAfter int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.users.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if cost > user.Cash {
			return ErrInsufficientFunds
		}
		cashAfter = user.Cash - cost
		if err := s.users.UpdateCash(ctx, tx, req.UserID, cashAfter); err != nil {
			return err
		}
		tradeID = uuid.NewString()
		if err := s.trades.Insert(ctx, tx, store.TradeInput{
			ID:     tradeID,
			UserID: req.UserID,
			Symbol: quote.Symbol,
			Shares: req.Shares,
			Price:  quote.Price,
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"symbol": quote.Symbol,
			"shares": req.Shares,
			"price":  quote.Price,
		})
		return s.audit.Log(ctx, tx, req.UserID, "buy", "trade", tradeID, string(data))
	})
	if err != nil {
		return "", err
	}
	s.hub.BroadcastAccount(req.UserID, websocket.AccountUpdate{
		Cash:   money.FormatCents(cashAfter),
		Symbol: quote.Symbol,
		Shares: req.Shares,
	})
	return tradeID, nil
}

func (s *TradingService) Sell(ctx context.Context, req TradeRequest) (string, error) {
	if req.Shares <= 0 {
		return "", ErrInvalidShares
	}
	quote, err := s.lookup(ctx, req.Symbol)
	if err != nil {
		return "", err
	}
	proceeds, ok := mulPrice(quote.Price, req.Shares)
	if !ok {
		return "", ErrInvalidShares
	}
	var tradeID string
	var cashAfter int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.users.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		held, err := s.trades.PositionBySymbol(ctx, tx, req.UserID, quote.Symbol)
		if err != nil {
			return err
		}
		if req.Shares > held {
			return ErrInsufficientShares
		}
		if proceeds > math.MaxInt64-user.Cash {
			return ErrInvalidShares
		}
		cashAfter = user.Cash + proceeds
		if err := s.users.UpdateCash(ctx, tx, req.UserID, cashAfter); err != nil {
			return err
		}
		tradeID = uuid.NewString()
		if err := s.trades.Insert(ctx, tx, store.TradeInput{
			ID:     tradeID,
			UserID: req.UserID,
			Symbol: quote.Symbol,
			Shares: -req.Shares,
			Price:  quote.Price,
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"symbol": quote.Symbol,
			"shares": -req.Shares,
			"price":  quote.Price,
		})
		return s.audit.Log(ctx, tx, req.UserID, "sell", "trade", tradeID, string(data))
	})
	if err != nil {
		return "", err
	}
	s.hub.BroadcastAccount(req.UserID, websocket.AccountUpdate{
		Cash:   money.FormatCents(cashAfter),
		Symbol: quote.Symbol,
		Shares: -req.Shares,
	})
	return tradeID, nil
}

type DepositRequest struct {
	UserID string
	Amount int64
}

// Deposit credits cash only. Deposits are not trades and never touch the
// trade ledger; they are still audit-logged.
func (s *TradingService) Deposit(ctx context.Context, req DepositRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	var cashAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.users.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if req.Amount > math.MaxInt64-user.Cash {
			return ErrInvalidAmount
		}
		cashAfter = user.Cash + req.Amount
		if err := s.users.UpdateCash(ctx, tx, req.UserID, cashAfter); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"amount": req.Amount})
		return s.audit.Log(ctx, tx, req.UserID, "deposit", "user", req.UserID, string(data))
	})
	if err != nil {
		return err
	}
	s.hub.BroadcastAccount(req.UserID, websocket.AccountUpdate{
		Cash: money.FormatCents(cashAfter),
	})
	return nil
}

// Quote looks up a current market quote for display.
func (s *TradingService) Quote(ctx context.Context, symbol string) (quotes.Quote, error) {
	return s.lookup(ctx, symbol)
}

type Holding struct {
	Symbol string
	Shares int64
	Price  int64
	Value  int64
}

type PortfolioView struct {
	Holdings []Holding
	Cash     int64
	Total    int64
}

// Portfolio derives current holdings from the trade ledger, prices each
// symbol at its looked-up market price and totals everything with cash.
func (s *TradingService) Portfolio(ctx context.Context, userID string) (PortfolioView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}
	positions, err := s.trades.PositionsByUser(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}
	view := PortfolioView{
		Holdings: make([]Holding, 0, len(positions)),
		Cash:     user.Cash,
		Total:    user.Cash,
	}
	for _, position := range positions {
		quote, err := s.lookup(ctx, position.Symbol)
		if err != nil {
			return PortfolioView{}, err
		}
		value := quote.Price * position.Shares
		view.Holdings = append(view.Holdings, Holding{
			Symbol: position.Symbol,
			Shares: position.Shares,
			Price:  quote.Price,
			Value:  value,
		})
		view.Total += value
	}
	return view, nil
}

// mulPrice multiplies an execution price by a share count, reporting
// overflow instead of wrapping.
func mulPrice(price, shares int64) (int64, bool) {
	if price <= 0 || shares <= 0 {
		return 0, false
	}
	if shares > math.MaxInt64/price {
		return 0, false
	}
	return price * shares, true
}

func (s *TradingService) lookup(ctx context.Context, symbol string) (quotes.Quote, error) {
	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			return quotes.Quote{}, ErrLookupFailed
		}
		return quotes.Quote{}, err
	}
	return quote, nil
}
