package handlers

import (
	"context"
	"time"

	"brokerage/internal/models"
	"brokerage/internal/quotes"
	"brokerage/internal/services"
	"brokerage/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, passwordHash string, cash int64) error
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type TradeStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Trade, error)
	PositionsByUser(ctx context.Context, userID string) ([]models.Position, error)
}

type SessionStore interface {
	Create(ctx context.Context, id, userID string, expiresAt time.Time) error
	Get(ctx context.Context, id string) (models.Session, error)
	Delete(ctx context.Context, id string) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type TradingService interface {
	Buy(ctx context.Context, req services.TradeRequest) (string, error)
	Sell(ctx context.Context, req services.TradeRequest) (string, error)
	Deposit(ctx context.Context, req services.DepositRequest) error
	Quote(ctx context.Context, symbol string) (quotes.Quote, error)
	Portfolio(ctx context.Context, userID string) (services.PortfolioView, error)
}
