package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"brokerage/internal/money"
)

// ErrNotFound is the lookup service's not-found signal for an unknown
// symbol.
var ErrNotFound = errors.New("symbol not found")

// Quote is a point-in-time market quote. Price is in cents.
type Quote struct {
	Symbol string
	Name   string
	Price  int64
}

// Client fetches quotes from the external market-data HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func canonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (c *Client) Lookup(ctx context.Context, symbol string) (Quote, error) {
	canonical := canonicalSymbol(symbol)
	url := fmt.Sprintf("%s/quote/%s", c.baseURL, canonical)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("quote API error: status=%d", resp.StatusCode)
	}

	var payload struct {
		Symbol string      `json:"symbol"`
		Name   string      `json:"name"`
		Price  json.Number `json:"price"`
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("failed to decode quote response: %w", err)
	}
	price, err := decimal.NewFromString(payload.Price.String())
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return Quote{}, fmt.Errorf("quote API returned invalid price %q", payload.Price)
	}
	if payload.Symbol == "" {
		payload.Symbol = canonical
	}
	return Quote{
		Symbol: strings.ToUpper(payload.Symbol),
		Name:   payload.Name,
		Price:  money.CentsFromDecimal(price),
	}, nil
}
