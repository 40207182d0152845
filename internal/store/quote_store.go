package store

import (
	"context"
	"time"

	"brokerage/internal/models"
)

// QuoteStore caches market quotes looked up from the external price
// service so repeated views of the same symbol do not hammer it.
type QuoteStore struct {
	db DB
}

func NewQuoteStore(db DB) *QuoteStore {
	return &QuoteStore{db: db}
}

func (s *QuoteStore) Upsert(ctx context.Context, symbol, name string, price int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (symbol, name, price, fetched_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (symbol) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, fetched_at = NOW()
	`, symbol, name, price)
	return err
}

// GetFresh returns the cached quote only when it was fetched within maxAge.
func (s *QuoteStore) GetFresh(ctx context.Context, symbol string, maxAge time.Duration) (models.Quote, error) {
	var row models.Quote
	err := s.db.GetContext(ctx, &row, `
		SELECT symbol, name, price, fetched_at
		FROM quotes
		WHERE symbol = $1 AND fetched_at >= $2
	`, symbol, time.Now().Add(-maxAge).UTC())
	if err != nil {
		return models.Quote{}, err
	}
	return row, nil
}

func (s *QuoteStore) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.SelectContext(ctx, &symbols, `
		SELECT symbol
		FROM quotes
		ORDER BY symbol
	`)
	if err != nil {
		return nil, err
	}
	return symbols, nil
}
