package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"brokerage/internal/models"
	"brokerage/internal/quotes"
	"brokerage/internal/store"
	"brokerage/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubUserStore struct {
	getByIDFn      func(ctx context.Context, userID string) (models.User, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, userID string) (models.User, error)
	updateCashFn   func(ctx context.Context, tx store.Execer, userID string, cash int64) error
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.User, error) {
	if s.getForUpdateFn == nil {
		return models.User{}, nil
	}
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubUserStore) UpdateCash(ctx context.Context, tx store.Execer, userID string, cash int64) error {
	if s.updateCashFn == nil {
		return nil
	}
	return s.updateCashFn(ctx, tx, userID, cash)
}

type stubTradeStore struct {
	insertFn           func(ctx context.Context, tx store.Execer, input store.TradeInput) error
	positionsByUserFn  func(ctx context.Context, userID string) ([]models.Position, error)
	positionBySymbolFn func(ctx context.Context, tx store.Getter, userID, symbol string) (int64, error)
}

func (s stubTradeStore) Insert(ctx context.Context, tx store.Execer, input store.TradeInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubTradeStore) PositionsByUser(ctx context.Context, userID string) ([]models.Position, error) {
	if s.positionsByUserFn == nil {
		return nil, nil
	}
	return s.positionsByUserFn(ctx, userID)
}

func (s stubTradeStore) PositionBySymbol(ctx context.Context, tx store.Getter, userID, symbol string) (int64, error) {
	if s.positionBySymbolFn == nil {
		return 0, nil
	}
	return s.positionBySymbolFn(ctx, tx, userID, symbol)
}

type stubQuoteLookup struct {
	lookupFn func(ctx context.Context, symbol string) (quotes.Quote, error)
}

func (s stubQuoteLookup) Lookup(ctx context.Context, symbol string) (quotes.Quote, error) {
	if s.lookupFn == nil {
		return quotes.Quote{Symbol: symbol, Name: symbol, Price: 10000}, nil
	}
	return s.lookupFn(ctx, symbol)
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

type stubHub struct {
	calls []websocket.AccountUpdate
}

func (s *stubHub) BroadcastAccount(_ string, update websocket.AccountUpdate) {
	s.calls = append(s.calls, update)
}

func newService(users UserStore, trades TradeStore, lookup QuoteLookup, hub AccountHub) *TradingService {
	return NewTradingService(fakeTxRunner{}, users, trades, lookup, stubAuditStore{}, hub)
}

func TestBuyInvalidShares(t *testing.T) {
	service := newService(stubUserStore{}, stubTradeStore{}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			t.Fatalf("unexpected lookup call")
			return quotes.Quote{}, nil
		},
	}, &stubHub{})
	_, err := service.Buy(context.Background(), TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 0})
	if err != ErrInvalidShares {
		t.Fatalf("expected ErrInvalidShares, got %v", err)
	}
}

func TestBuyUnknownSymbol(t *testing.T) {
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			t.Fatalf("unexpected store call")
			return models.User{}, nil
		},
	}, stubTradeStore{}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{}, quotes.ErrNotFound
		},
	}, &stubHub{})
	_, err := service.Buy(context.Background(), TradeRequest{UserID: "user-1", Symbol: "ZZZZ", Shares: 1})
	if err != ErrLookupFailed {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	inserted := false
	cashWritten := false
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 50000}, nil
		},
		updateCashFn: func(context.Context, store.Execer, string, int64) error {
			cashWritten = true
			return nil
		},
	}, stubTradeStore{
		insertFn: func(context.Context, store.Execer, store.TradeInput) error {
			inserted = true
			return nil
		},
	}, stubQuoteLookup{}, &stubHub{})
	_, err := service.Buy(context.Background(), TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 10})
	if err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if inserted || cashWritten {
		t.Fatalf("expected no mutation on rejected buy")
	}
}

func TestBuySuccess(t *testing.T) {
	var cashAfter int64
	var trade store.TradeInput
	hub := &stubHub{}
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 1000000}, nil
		},
		updateCashFn: func(_ context.Context, _ store.Execer, _ string, cash int64) error {
			cashAfter = cash
			return nil
		},
	}, stubTradeStore{
		insertFn: func(_ context.Context, _ store.Execer, input store.TradeInput) error {
			trade = input
			return nil
		},
	}, stubQuoteLookup{
		lookupFn: func(_ context.Context, symbol string) (quotes.Quote, error) {
			return quotes.Quote{Symbol: "AAA", Name: "Triple A Corp", Price: 10000}, nil
		},
	}, hub)

	id, err := service.Buy(context.Background(), TradeRequest{UserID: "user-1", Symbol: "aaa", Shares: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" || trade.ID != id {
		t.Fatalf("unexpected trade id: %q vs %q", id, trade.ID)
	}
	if cashAfter != 900000 {
		t.Fatalf("expected cash 900000, got %d", cashAfter)
	}
	if trade.Symbol != "AAA" || trade.Shares != 10 || trade.Price != 10000 {
		t.Fatalf("unexpected trade: %#v", trade)
	}
	if len(hub.calls) != 1 || hub.calls[0].Cash != "9000.00" {
		t.Fatalf("unexpected broadcasts: %#v", hub.calls)
	}
}

func TestBuyOverflowingCostRejected(t *testing.T) {
	inserted := false
	cashWritten := false
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 1000000}, nil
		},
		updateCashFn: func(context.Context, store.Execer, string, int64) error {
			cashWritten = true
			return nil
		},
	}, stubTradeStore{
		insertFn: func(context.Context, store.Execer, store.TradeInput) error {
			inserted = true
			return nil
		},
	}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{Symbol: "AAA", Name: "Triple A Corp", Price: 4}, nil
		},
	}, &stubHub{})

	// price*shares wraps past int64 here; the wrapped cost of zero must
	// not slip under the balance check.
	_, err := service.Buy(context.Background(), TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 1 << 62})
	if err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if inserted || cashWritten {
		t.Fatalf("expected no mutation on overflowing buy")
	}
}

func TestSellOverflowingProceedsRejected(t *testing.T) {
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			t.Fatalf("unexpected store call")
			return models.User{}, nil
		},
	}, stubTradeStore{}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{Symbol: "AAA", Name: "Triple A Corp", Price: 4}, nil
		},
	}, &stubHub{})

	_, err := service.Sell(context.Background(), TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 1 << 62})
	if err != ErrInvalidShares {
		t.Fatalf("expected ErrInvalidShares, got %v", err)
	}
}

func TestDepositOverflowingBalanceRejected(t *testing.T) {
	cashWritten := false
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: math.MaxInt64 - 100}, nil
		},
		updateCashFn: func(context.Context, store.Execer, string, int64) error {
			cashWritten = true
			return nil
		},
	}, stubTradeStore{}, stubQuoteLookup{}, &stubHub{})

	err := service.Deposit(context.Background(), DepositRequest{UserID: "user-1", Amount: 101})
	if err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if cashWritten {
		t.Fatalf("expected no cash change on overflowing deposit")
	}
}

func TestSellInsufficientShares(t *testing.T) {
	inserted := false
	cashWritten := false
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 944000}, nil
		},
		updateCashFn: func(context.Context, store.Execer, string, int64) error {
			cashWritten = true
			return nil
		},
	}, stubTradeStore{
		positionBySymbolFn: func(context.Context, store.Getter, string, string) (int64, error) {
			return 6, nil
		},
		insertFn: func(context.Context, store.Execer, store.TradeInput) error {
			inserted = true
			return nil
		},
	}, stubQuoteLookup{}, &stubHub{})

	_, err := service.Sell(context.Background(), TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 7})
	if err != ErrInsufficientShares {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if inserted || cashWritten {
		t.Fatalf("expected no mutation on rejected sell")
	}
}

func TestSellSuccess(t *testing.T) {
	var cashAfter int64
	var trade store.TradeInput
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 900000}, nil
		},
		updateCashFn: func(_ context.Context, _ store.Execer, _ string, cash int64) error {
			cashAfter = cash
			return nil
		},
	}, stubTradeStore{
		positionBySymbolFn: func(context.Context, store.Getter, string, string) (int64, error) {
			return 10, nil
		},
		insertFn: func(_ context.Context, _ store.Execer, input store.TradeInput) error {
			trade = input
			return nil
		},
	}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{Symbol: "AAA", Name: "Triple A Corp", Price: 11000}, nil
		},
	}, &stubHub{})

	_, err := service.Sell(context.Background(), TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cashAfter != 944000 {
		t.Fatalf("expected cash 944000, got %d", cashAfter)
	}
	if trade.Shares != -4 || trade.Price != 11000 {
		t.Fatalf("expected negative ledger entry at execution price, got %#v", trade)
	}
}

func TestSellUnknownSymbol(t *testing.T) {
	service := newService(stubUserStore{}, stubTradeStore{}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{}, quotes.ErrNotFound
		},
	}, &stubHub{})
	_, err := service.Sell(context.Background(), TradeRequest{UserID: "user-1", Symbol: "ZZZZ", Shares: 1})
	if err != ErrLookupFailed {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	cashWritten := false
	service := newService(stubUserStore{
		updateCashFn: func(context.Context, store.Execer, string, int64) error {
			cashWritten = true
			return nil
		},
	}, stubTradeStore{}, stubQuoteLookup{}, &stubHub{})

	for _, amount := range []int64{0, -500} {
		if err := service.Deposit(context.Background(), DepositRequest{UserID: "user-1", Amount: amount}); err != ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount for %d, got %v", amount, err)
		}
	}
	if cashWritten {
		t.Fatalf("expected no cash change on rejected deposit")
	}
}

func TestDepositSuccess(t *testing.T) {
	var cashAfter int64
	insertedTrade := false
	hub := &stubHub{}
	service := newService(stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 100000}, nil
		},
		updateCashFn: func(_ context.Context, _ store.Execer, _ string, cash int64) error {
			cashAfter = cash
			return nil
		},
	}, stubTradeStore{
		insertFn: func(context.Context, store.Execer, store.TradeInput) error {
			insertedTrade = true
			return nil
		},
	}, stubQuoteLookup{}, hub)

	if err := service.Deposit(context.Background(), DepositRequest{UserID: "user-1", Amount: 5000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cashAfter != 105000 {
		t.Fatalf("expected cash 105000, got %d", cashAfter)
	}
	if insertedTrade {
		t.Fatalf("deposits must not write trade ledger entries")
	}
	if len(hub.calls) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(hub.calls))
	}
}

func TestPortfolioTotals(t *testing.T) {
	service := newService(stubUserStore{
		getByIDFn: func(context.Context, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: 944000}, nil
		},
	}, stubTradeStore{
		positionsByUserFn: func(context.Context, string) ([]models.Position, error) {
			return []models.Position{{Symbol: "AAA", Shares: 6}}, nil
		},
	}, stubQuoteLookup{
		lookupFn: func(_ context.Context, symbol string) (quotes.Quote, error) {
			return quotes.Quote{Symbol: symbol, Name: "Triple A Corp", Price: 11000}, nil
		},
	}, &stubHub{})

	view, err := service.Portfolio(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Holdings) != 1 {
		t.Fatalf("unexpected holdings: %#v", view.Holdings)
	}
	holding := view.Holdings[0]
	if holding.Shares != 6 || holding.Price != 11000 || holding.Value != 66000 {
		t.Fatalf("unexpected holding: %#v", holding)
	}
	if view.Cash != 944000 || view.Total != 1010000 {
		t.Fatalf("unexpected totals: cash=%d total=%d", view.Cash, view.Total)
	}
}

func TestQuotePassesThroughLookupErrors(t *testing.T) {
	boom := errors.New("upstream down")
	service := newService(stubUserStore{}, stubTradeStore{}, stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{}, boom
		},
	}, &stubHub{})
	if _, err := service.Quote(context.Background(), "AAA"); err != boom {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestBuySellScenario(t *testing.T) {
	// Start with 10000.00 cash: buy 10 AAA at 100.00, sell 4 at 110.00,
	// then a 7-share sell must be rejected without touching state.
	cash := int64(1000000)
	position := int64(0)
	price := int64(10000)
	users := stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Cash: cash}, nil
		},
		updateCashFn: func(_ context.Context, _ store.Execer, _ string, next int64) error {
			cash = next
			return nil
		},
	}
	trades := stubTradeStore{
		positionBySymbolFn: func(context.Context, store.Getter, string, string) (int64, error) {
			return position, nil
		},
		insertFn: func(_ context.Context, _ store.Execer, input store.TradeInput) error {
			position += input.Shares
			return nil
		},
	}
	lookup := stubQuoteLookup{
		lookupFn: func(context.Context, string) (quotes.Quote, error) {
			return quotes.Quote{Symbol: "AAA", Name: "Triple A Corp", Price: price}, nil
		},
	}
	service := newService(users, trades, lookup, &stubHub{})
	ctx := context.Background()

	if _, err := service.Buy(ctx, TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 10}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if cash != 900000 || position != 10 {
		t.Fatalf("after buy: cash=%d position=%d", cash, position)
	}

	price = 11000
	if _, err := service.Sell(ctx, TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 4}); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if cash != 944000 || position != 6 {
		t.Fatalf("after sell: cash=%d position=%d", cash, position)
	}

	if _, err := service.Sell(ctx, TradeRequest{UserID: "user-1", Symbol: "AAA", Shares: 7}); err != ErrInsufficientShares {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if cash != 944000 || position != 6 {
		t.Fatalf("rejected sell mutated state: cash=%d position=%d", cash, position)
	}
}
