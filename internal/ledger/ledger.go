// Package ledger executes paper-trade settlements: position sizing,
// weighted-average cost basis, and balance accounting. All currency math
// is decimal; float prices never touch a balance directly.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/internal/decision"
	"github.com/vibetrade/papertrader/internal/storage"
	"github.com/vibetrade/papertrader/models"
)

// reconcileTolerance is the maximum drift allowed between a holding's
// total cost and quantity*average_price after any settlement.
var reconcileTolerance = decimal.NewFromFloat(0.01)

// Ledger settles buy and sell decisions against a store. Now is
// injectable for deterministic tests.
type Ledger struct {
	log *logrus.Logger
	now func() time.Time
}

func New(log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{log: log, now: time.Now}
}

// WithClock overrides the timestamp source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// ExecuteBuy sizes a position from the trader's risk profile and settles
// it. A nil trade with nil error means "no trade": zero quantity or
// insufficient balance, which is a normal outcome. Errors are persistence
// failures only and must roll back the enclosing transaction.
//
// The trader struct is mutated in place so later tickers in the same
// session see the reduced balance.
func (l *Ledger) ExecuteBuy(ctx context.Context, store storage.Store, trader *models.Trader, ticker string, dec *models.Decision, contextLabel string) (*models.Trade, error) {
	profile := decision.ProfileFor(trader.RiskTolerance)
	if dec.Price.Sign() <= 0 {
		return nil, nil
	}

	maxInvestment := trader.CurrentBalance.Mul(profile.PositionSize)
	quantity := maxInvestment.Div(dec.Price).IntPart()
	if quantity <= 0 {
		l.log.WithFields(logrus.Fields{"trader": trader.Name, "ticker": ticker}).
			Info("insufficient funds for buy")
		return nil, nil
	}

	totalCost := dec.Price.Mul(decimal.NewFromInt(quantity))
	if totalCost.GreaterThan(trader.CurrentBalance) {
		l.log.WithFields(logrus.Fields{"trader": trader.Name, "ticker": ticker}).
			Info("insufficient balance for buy")
		return nil, nil
	}

	newBalance := trader.CurrentBalance.Sub(totalCost)
	now := l.now()

	holding, err := store.GetHolding(ctx, trader.ID, ticker)
	switch {
	case err == nil:
		newQuantity := holding.Quantity + quantity
		newTotalCost := holding.TotalCost.Add(totalCost)
		holding.Quantity = newQuantity
		holding.TotalCost = newTotalCost
		holding.AveragePrice = newTotalCost.Div(decimal.NewFromInt(newQuantity))
	case errors.Is(err, storage.ErrNotFound):
		holding = &models.Holding{
			TraderID:         trader.ID,
			Ticker:           ticker,
			Quantity:         quantity,
			AveragePrice:     dec.Price,
			TotalCost:        totalCost,
			FirstPurchasedAt: now,
		}
	default:
		return nil, fmt.Errorf("load holding %s: %w", ticker, err)
	}

	if err := checkReconciled(holding); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{"trader": trader.Name, "ticker": ticker}).
			Warn("buy rejected: holding would not reconcile")
		return nil, nil
	}

	if err := store.UpsertHolding(ctx, holding); err != nil {
		return nil, fmt.Errorf("upsert holding %s: %w", ticker, err)
	}

	trade := &models.Trade{
		TraderID:       trader.ID,
		Ticker:         ticker,
		Action:         models.TradeBuy,
		Quantity:       quantity,
		Price:          dec.Price,
		TotalAmount:    totalCost,
		BalanceAfter:   newBalance,
		RSI:            dec.RSI,
		MACD:           dec.MACD,
		SMA20:          dec.SMA20,
		SMA50:          dec.SMA50,
		Recommendation: "BUY",
		Confidence:     dec.Confidence,
		Notes:          tradeNotes(contextLabel, dec.Signals),
		ExecutedAt:     now,
	}
	if err := store.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	if err := store.UpdateTraderBalance(ctx, trader.ID, newBalance, &now); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	trader.CurrentBalance = newBalance
	trader.LastTradeAt = &now

	l.log.WithFields(logrus.Fields{
		"trader":   trader.Name,
		"ticker":   ticker,
		"quantity": quantity,
		"price":    dec.Price.String(),
	}).Info("executed buy")
	return trade, nil
}

// ExecuteSell settles a sell decision against an open holding. Positions
// larger than two shares sell half (rounded down); at two shares or
// fewer the whole position is liquidated so partial sells never strand a
// dust position. A nil trade with nil error means no position to sell.
func (l *Ledger) ExecuteSell(ctx context.Context, store storage.Store, trader *models.Trader, ticker string, dec *models.Decision, contextLabel string) (*models.Trade, error) {
	holding, err := store.GetHolding(ctx, trader.ID, ticker)
	if errors.Is(err, storage.ErrNotFound) {
		l.log.WithFields(logrus.Fields{"trader": trader.Name, "ticker": ticker}).
			Info("no position to sell")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load holding %s: %w", ticker, err)
	}
	if holding.Quantity <= 0 {
		return nil, nil
	}

	quantity := holding.Quantity
	if holding.Quantity > 2 {
		quantity = holding.Quantity / 2
	}
	proceeds := dec.Price.Mul(decimal.NewFromInt(quantity))
	newBalance := trader.CurrentBalance.Add(proceeds)
	now := l.now()

	holding.Quantity -= quantity
	holding.TotalCost = holding.TotalCost.Sub(holding.AveragePrice.Mul(decimal.NewFromInt(quantity)))

	if holding.Quantity == 0 {
		if err := store.DeleteHolding(ctx, trader.ID, ticker); err != nil {
			return nil, fmt.Errorf("delete holding %s: %w", ticker, err)
		}
	} else {
		if err := checkReconciled(holding); err != nil {
			l.log.WithError(err).WithFields(logrus.Fields{"trader": trader.Name, "ticker": ticker}).
				Warn("sell rejected: holding would not reconcile")
			return nil, nil
		}
		if err := store.UpsertHolding(ctx, holding); err != nil {
			return nil, fmt.Errorf("upsert holding %s: %w", ticker, err)
		}
	}

	trade := &models.Trade{
		TraderID:       trader.ID,
		Ticker:         ticker,
		Action:         models.TradeSell,
		Quantity:       quantity,
		Price:          dec.Price,
		TotalAmount:    proceeds,
		BalanceAfter:   newBalance,
		RSI:            dec.RSI,
		MACD:           dec.MACD,
		SMA20:          dec.SMA20,
		SMA50:          dec.SMA50,
		Recommendation: "SELL",
		Confidence:     dec.Confidence,
		Notes:          tradeNotes(contextLabel, dec.Signals),
		ExecutedAt:     now,
	}
	if err := store.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	if err := store.UpdateTraderBalance(ctx, trader.ID, newBalance, &now); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	trader.CurrentBalance = newBalance
	trader.LastTradeAt = &now

	l.log.WithFields(logrus.Fields{
		"trader":   trader.Name,
		"ticker":   ticker,
		"quantity": quantity,
		"price":    dec.Price.String(),
	}).Info("executed sell")
	return trade, nil
}

func checkReconciled(h *models.Holding) error {
	if h.Quantity < 0 {
		return fmt.Errorf("negative quantity %d for %s", h.Quantity, h.Ticker)
	}
	expected := h.AveragePrice.Mul(decimal.NewFromInt(h.Quantity))
	drift := h.TotalCost.Sub(expected).Abs()
	if drift.GreaterThan(reconcileTolerance) {
		return fmt.Errorf("holding %s does not reconcile: total_cost %s vs %s", h.Ticker, h.TotalCost, expected)
	}
	return nil
}

func tradeNotes(contextLabel string, signals []string) string {
	return fmt.Sprintf("Automated %s trade: %s", contextLabel, strings.Join(signals, ", "))
}
