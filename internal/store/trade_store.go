package store

import (
	"context"

	"brokerage/internal/models"
)

type TradeStore struct {
	db DB
}

func NewTradeStore(db DB) *TradeStore {
	return &TradeStore{db: db}
}

type TradeInput struct {
	ID     string
	UserID string
	Symbol string
	Shares int64
	Price  int64
}

// Insert appends one trade to the ledger. Rows are never updated or
// deleted afterwards.
func (s *TradeStore) Insert(ctx context.Context, tx Execer, input TradeInput) error {
	query := `
		INSERT INTO trades (id, user_id, symbol, shares, price)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.UserID, input.Symbol, input.Shares, input.Price)
	return err
}

func (s *TradeStore) ListByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	var rows []models.Trade
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, symbol, shares, price, created_at
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PositionsByUser derives current holdings by summing signed share counts
// per symbol. Symbols whose net count is zero or negative are excluded.
func (s *TradeStore) PositionsByUser(ctx context.Context, userID string) ([]models.Position, error) {
	var rows []models.Position
	err := s.db.SelectContext(ctx, &rows, `
		SELECT symbol, SUM(shares) AS shares
		FROM trades
		WHERE user_id = $1
		GROUP BY symbol
		HAVING SUM(shares) > 0
		ORDER BY symbol
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PositionBySymbol returns the net share count for one symbol, zero when
// the user never traded it. Runs on the transaction handle so a sell
// validates against the same snapshot it writes into.
func (s *TradeStore) PositionBySymbol(ctx context.Context, tx Getter, userID, symbol string) (int64, error) {
	var shares int64
	err := tx.GetContext(ctx, &shares, `
		SELECT COALESCE(SUM(shares), 0)
		FROM trades
		WHERE user_id = $1 AND symbol = $2
	`, userID, symbol)
	return shares, err
}
