package ledger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/internal/storage/memory"
	"github.com/vibetrade/papertrader/models"
)

func newTestLedger() *Ledger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	l := New(log)
	fixed := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	return l.WithClock(func() time.Time { return fixed })
}

func newTrader(t *testing.T, store *memory.Store, balance string, risk models.RiskTolerance) *models.Trader {
	t.Helper()
	b, err := decimal.NewFromString(balance)
	if err != nil {
		t.Fatalf("bad balance literal: %v", err)
	}
	tr := &models.Trader{
		Name:            "Test Trader",
		Status:          models.TraderActive,
		InitialBalance:  b,
		CurrentBalance:  b,
		RiskTolerance:   risk,
		TradingTimezone: "America/New_York",
	}
	if err := store.CreateTrader(context.Background(), tr); err != nil {
		t.Fatalf("create trader: %v", err)
	}
	return tr
}

func buyDecision(price string) *models.Decision {
	p, _ := decimal.NewFromString(price)
	return &models.Decision{
		Ticker:     "AAPL",
		Price:      p,
		Action:     models.ActionBuy,
		Confidence: 75,
		Signals:    []string{"Strong uptrend"},
	}
}

func TestExecuteBuyMediumRisk(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	tr := newTrader(t, store, "10000", models.RiskMedium)

	trade, err := l.ExecuteBuy(context.Background(), store, tr, "AAPL", buyDecision("100"), "morning")
	if err != nil {
		t.Fatalf("ExecuteBuy: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade")
	}
	if trade.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", trade.Quantity)
	}
	if !trade.TotalAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("total = %s, want 1000", trade.TotalAmount)
	}
	if !tr.CurrentBalance.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("balance = %s, want 9000", tr.CurrentBalance)
	}
	if tr.LastTradeAt == nil {
		t.Fatal("last_trade_at not stamped")
	}

	// the persisted trader must match the in-memory mutation
	stored, err := store.GetTrader(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("get trader: %v", err)
	}
	if !stored.CurrentBalance.Equal(tr.CurrentBalance) {
		t.Fatalf("stored balance %s != in-memory %s", stored.CurrentBalance, tr.CurrentBalance)
	}

	h, err := store.GetHolding(context.Background(), tr.ID, "AAPL")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if h.Quantity != 10 || !h.AveragePrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("holding = %d @ %s", h.Quantity, h.AveragePrice)
	}
	if trade.Notes != "Automated morning trade: Strong uptrend" {
		t.Fatalf("notes = %q", trade.Notes)
	}
}

func TestExecuteBuyMergesCostBasis(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	tr := newTrader(t, store, "10000", models.RiskMedium)
	ctx := context.Background()

	if _, err := l.ExecuteBuy(ctx, store, tr, "AAPL", buyDecision("100"), "morning"); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	// balance 9000, 10% = 900, price 50 -> 18 shares
	if _, err := l.ExecuteBuy(ctx, store, tr, "AAPL", buyDecision("50"), "midday"); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	h, err := store.GetHolding(ctx, tr.ID, "AAPL")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if h.Quantity != 28 {
		t.Fatalf("quantity = %d, want 28", h.Quantity)
	}
	if !h.TotalCost.Equal(decimal.NewFromInt(1900)) {
		t.Fatalf("total cost = %s, want 1900", h.TotalCost)
	}
	wantAvg := decimal.NewFromInt(1900).Div(decimal.NewFromInt(28))
	if !h.AveragePrice.Equal(wantAvg) {
		t.Fatalf("avg = %s, want %s", h.AveragePrice, wantAvg)
	}
	assertReconciled(t, h)
}

func TestExecuteBuyNoTradeOutcomes(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	ctx := context.Background()

	// 5% of 100 = 5, price 100 -> quantity 0
	tr := newTrader(t, store, "100", models.RiskLow)
	trade, err := l.ExecuteBuy(ctx, store, tr, "AAPL", buyDecision("100"), "morning")
	if err != nil {
		t.Fatalf("ExecuteBuy: %v", err)
	}
	if trade != nil {
		t.Fatal("expected no trade for zero quantity")
	}
	if !tr.CurrentBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance mutated on no-trade: %s", tr.CurrentBalance)
	}
	if _, err := store.GetHolding(ctx, tr.ID, "AAPL"); err == nil {
		t.Fatal("holding created on no-trade")
	}

	// non-positive price is refused
	trade, err = l.ExecuteBuy(ctx, store, tr, "AAPL", buyDecision("0"), "morning")
	if err != nil || trade != nil {
		t.Fatalf("zero price: trade=%v err=%v", trade, err)
	}
}

func TestExecuteSellHalvesLargePosition(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	ctx := context.Background()
	tr := newTrader(t, store, "1000", models.RiskMedium)

	seedHolding(t, store, tr.ID, "AAPL", 3, "50")

	trade, err := l.ExecuteSell(ctx, store, tr, "AAPL", buyDecision("60"), "midday")
	if err != nil {
		t.Fatalf("ExecuteSell: %v", err)
	}
	if trade == nil || trade.Quantity != 1 {
		t.Fatalf("trade = %+v, want 1 share sold", trade)
	}
	if !trade.TotalAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("proceeds = %s, want 60", trade.TotalAmount)
	}
	if !tr.CurrentBalance.Equal(decimal.NewFromInt(1060)) {
		t.Fatalf("balance = %s, want 1060", tr.CurrentBalance)
	}

	h, err := store.GetHolding(ctx, tr.ID, "AAPL")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if h.Quantity != 2 {
		t.Fatalf("remaining quantity = %d, want 2", h.Quantity)
	}
	if !h.TotalCost.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("remaining cost = %s, want 100", h.TotalCost)
	}
	assertReconciled(t, h)
}

func TestExecuteSellLiquidatesSmallPosition(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	ctx := context.Background()
	tr := newTrader(t, store, "1000", models.RiskMedium)

	seedHolding(t, store, tr.ID, "AAPL", 2, "50")

	trade, err := l.ExecuteSell(ctx, store, tr, "AAPL", buyDecision("55"), "close")
	if err != nil {
		t.Fatalf("ExecuteSell: %v", err)
	}
	if trade == nil || trade.Quantity != 2 {
		t.Fatalf("trade = %+v, want full liquidation of 2 shares", trade)
	}
	if _, err := store.GetHolding(ctx, tr.ID, "AAPL"); err == nil {
		t.Fatal("holding should be deleted at zero quantity")
	}
	if !tr.CurrentBalance.Equal(decimal.NewFromInt(1110)) {
		t.Fatalf("balance = %s, want 1110", tr.CurrentBalance)
	}
}

func TestExecuteSellWithoutPosition(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	tr := newTrader(t, store, "1000", models.RiskMedium)

	trade, err := l.ExecuteSell(context.Background(), store, tr, "MSFT", buyDecision("100"), "morning")
	if err != nil {
		t.Fatalf("ExecuteSell: %v", err)
	}
	if trade != nil {
		t.Fatal("expected no trade without a position")
	}
}

func TestBuySellRoundTripIsExact(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	ctx := context.Background()

	// 5% of 1000 = 50; price 30 buys exactly one share, so the sell
	// takes the full-liquidation branch and the round trip is exact.
	tr := newTrader(t, store, "1000", models.RiskLow)
	start := tr.CurrentBalance

	buy, err := l.ExecuteBuy(ctx, store, tr, "AAPL", buyDecision("30"), "morning")
	if err != nil || buy == nil {
		t.Fatalf("buy: trade=%v err=%v", buy, err)
	}
	if buy.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", buy.Quantity)
	}

	sell, err := l.ExecuteSell(ctx, store, tr, "AAPL", buyDecision("30"), "midday")
	if err != nil || sell == nil {
		t.Fatalf("sell: trade=%v err=%v", sell, err)
	}
	if !tr.CurrentBalance.Equal(start) {
		t.Fatalf("round trip balance = %s, want %s", tr.CurrentBalance, start)
	}
}

func TestLedgerInvariantAcrossSequence(t *testing.T) {
	store := memory.New()
	l := newTestLedger()
	ctx := context.Background()
	tr := newTrader(t, store, "25000", models.RiskHigh)

	prices := []string{"101.37", "97.12", "103.45", "95.01"}
	for _, p := range prices {
		if _, err := l.ExecuteBuy(ctx, store, tr, "AAPL", buyDecision(p), "auto"); err != nil {
			t.Fatalf("buy at %s: %v", p, err)
		}
	}
	if _, err := l.ExecuteSell(ctx, store, tr, "AAPL", buyDecision("99.99"), "auto"); err != nil {
		t.Fatalf("sell: %v", err)
	}

	if tr.CurrentBalance.Sign() < 0 {
		t.Fatalf("balance went negative: %s", tr.CurrentBalance)
	}
	holdings, err := store.ListHoldings(ctx, tr.ID)
	if err != nil {
		t.Fatalf("list holdings: %v", err)
	}
	for _, h := range holdings {
		assertReconciled(t, h)
	}

	trades, err := store.ListTrades(ctx, tr.ID, 0)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 5 {
		t.Fatalf("trade count = %d, want 5", len(trades))
	}
}

func seedHolding(t *testing.T, store *memory.Store, traderID int64, ticker string, quantity int64, avgPrice string) {
	t.Helper()
	avg, _ := decimal.NewFromString(avgPrice)
	h := &models.Holding{
		TraderID:     traderID,
		Ticker:       ticker,
		Quantity:     quantity,
		AveragePrice: avg,
		TotalCost:    avg.Mul(decimal.NewFromInt(quantity)),
	}
	if err := store.UpsertHolding(context.Background(), h); err != nil {
		t.Fatalf("seed holding: %v", err)
	}
}

func assertReconciled(t *testing.T, h *models.Holding) {
	t.Helper()
	expected := h.AveragePrice.Mul(decimal.NewFromInt(h.Quantity))
	drift := h.TotalCost.Sub(expected).Abs()
	if drift.GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Fatalf("holding %s does not reconcile: cost %s vs %s", h.Ticker, h.TotalCost, expected)
	}
}
