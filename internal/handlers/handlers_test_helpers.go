package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brokerage/internal/auth"
	"brokerage/internal/config"
	"brokerage/internal/middleware"
	"brokerage/internal/models"
	"brokerage/internal/quotes"
	"brokerage/internal/services"
	"brokerage/internal/store"
	"brokerage/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, username, passwordHash string, cash int64) error
	getByUsernameFn func(ctx context.Context, username string) (models.User, error)
	getByIDFn       func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, passwordHash string, cash int64) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, passwordHash, cash)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, nil
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubTradeStore struct {
	listByUserFn      func(ctx context.Context, userID string) ([]models.Trade, error)
	positionsByUserFn func(ctx context.Context, userID string) ([]models.Position, error)
}

func (s stubTradeStore) ListByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubTradeStore) PositionsByUser(ctx context.Context, userID string) ([]models.Position, error) {
	if s.positionsByUserFn == nil {
		return nil, nil
	}
	return s.positionsByUserFn(ctx, userID)
}

type stubSessionStore struct {
	createFn func(ctx context.Context, id, userID string, expiresAt time.Time) error
	getFn    func(ctx context.Context, id string) (models.Session, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s stubSessionStore) Create(ctx context.Context, id, userID string, expiresAt time.Time) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, id, userID, expiresAt)
}

func (s stubSessionStore) Get(ctx context.Context, id string) (models.Session, error) {
	if s.getFn == nil {
		return models.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubSessionStore) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type stubService struct {
	buyFn       func(ctx context.Context, req services.TradeRequest) (string, error)
	sellFn      func(ctx context.Context, req services.TradeRequest) (string, error)
	depositFn   func(ctx context.Context, req services.DepositRequest) error
	quoteFn     func(ctx context.Context, symbol string) (quotes.Quote, error)
	portfolioFn func(ctx context.Context, userID string) (services.PortfolioView, error)
}

func (s stubService) Buy(ctx context.Context, req services.TradeRequest) (string, error) {
	if s.buyFn == nil {
		return "trade-1", nil
	}
	return s.buyFn(ctx, req)
}

func (s stubService) Sell(ctx context.Context, req services.TradeRequest) (string, error) {
	if s.sellFn == nil {
		return "trade-1", nil
	}
	return s.sellFn(ctx, req)
}

func (s stubService) Deposit(ctx context.Context, req services.DepositRequest) error {
	if s.depositFn == nil {
		return nil
	}
	return s.depositFn(ctx, req)
}

func (s stubService) Quote(ctx context.Context, symbol string) (quotes.Quote, error) {
	if s.quoteFn == nil {
		return quotes.Quote{Symbol: symbol, Name: symbol, Price: 10000}, nil
	}
	return s.quoteFn(ctx, symbol)
}

func (s stubService) Portfolio(ctx context.Context, userID string) (services.PortfolioView, error) {
	if s.portfolioFn == nil {
		return services.PortfolioView{}, nil
	}
	return s.portfolioFn(ctx, userID)
}

func newTestHandler(txRunner fakeTxRunner, users UserStore, trades TradeStore, sessions SessionStore, audit AuditStore, service TradingService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		SessionSecret:  "secret",
		SessionTTL:     time.Minute,
		AllowedOrigins: "*",
	}
	return New(txRunner, cfg, users, trades, sessions, audit, service, websocket.NewHub())
}

// serveAuthed runs a handler behind the session middleware with a valid
// cookie for user-1.
func serveAuthed(t *testing.T, handler http.HandlerFunc, sessions SessionStore, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateSessionToken("secret", "sess-1", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	middleware.Session("secret", sessions)(handler).ServeHTTP(rr, req)
	return rr
}
