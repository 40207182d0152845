package quotes

import (
	"context"
	"log"
	"time"

	"brokerage/internal/models"
)

type LookupClient interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

type QuoteCache interface {
	Upsert(ctx context.Context, symbol, name string, price int64) error
	GetFresh(ctx context.Context, symbol string, maxAge time.Duration) (models.Quote, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// Service serves quotes from the cache while they are fresh and falls
// through to the external API otherwise.
type Service struct {
	client LookupClient
	cache  QuoteCache
	ttl    time.Duration
}

func NewService(client LookupClient, cache QuoteCache, ttl time.Duration) *Service {
	return &Service{client: client, cache: cache, ttl: ttl}
}

func (s *Service) Lookup(ctx context.Context, symbol string) (Quote, error) {
	canonical := canonicalSymbol(symbol)
	if cached, err := s.cache.GetFresh(ctx, canonical, s.ttl); err == nil {
		return Quote{Symbol: cached.Symbol, Name: cached.Name, Price: cached.Price}, nil
	}
	quote, err := s.client.Lookup(ctx, canonical)
	if err != nil {
		return Quote{}, err
	}
	// A failed cache write degrades future lookups, not this one.
	if err := s.cache.Upsert(ctx, quote.Symbol, quote.Name, quote.Price); err != nil {
		log.Printf("failed to cache quote for %s: %v", quote.Symbol, err)
	}
	return quote, nil
}
