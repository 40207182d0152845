package quotes

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher keeps cached quotes warm by re-fetching every symbol in the
// cache once a minute, so portfolio views mostly hit fresh rows.
type Refresher struct {
	cron   *cron.Cron
	client LookupClient
	cache  QuoteCache
}

func NewRefresher(client LookupClient, cache QuoteCache) *Refresher {
	return &Refresher{
		cron:   cron.New(),
		client: client,
		cache:  cache,
	}
}

func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc("@every 1m", r.refreshAll); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Refresher) Stop() {
	r.cron.Stop()
}

func (r *Refresher) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	symbols, err := r.cache.ListSymbols(ctx)
	if err != nil {
		log.Printf("quote refresh: failed to list symbols: %v", err)
		return
	}
	for _, symbol := range symbols {
		quote, err := r.client.Lookup(ctx, symbol)
		if err != nil {
			log.Printf("quote refresh: lookup %s failed: %v", symbol, err)
			continue
		}
		if err := r.cache.Upsert(ctx, quote.Symbol, quote.Name, quote.Price); err != nil {
			log.Printf("quote refresh: cache %s failed: %v", quote.Symbol, err)
		}
	}
}
