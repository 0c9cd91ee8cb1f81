// Package storage defines the persistence contract shared by the sqlite
// implementation and the in-memory test store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/models"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("storage: not found")

// Store is the persistence surface the trading core depends on. A Store
// handed to a Transact callback is scoped to that transaction; settlement
// writes for one trader must go through Transact so a failed trade never
// leaves partial state behind.
type Store interface {
	// Traders.
	ListTraders(ctx context.Context) ([]*models.Trader, error)
	ListActiveTradersByTimezone(ctx context.Context, timezone string) ([]*models.Trader, error)
	GetTrader(ctx context.Context, id int64) (*models.Trader, error)
	CreateTrader(ctx context.Context, t *models.Trader) error
	UpdateTraderBalance(ctx context.Context, id int64, balance decimal.Decimal, lastTradeAt *time.Time) error
	UpdateTraderWatchlist(ctx context.Context, t *models.Trader) error

	// Holdings.
	GetHolding(ctx context.Context, traderID int64, ticker string) (*models.Holding, error)
	ListHoldings(ctx context.Context, traderID int64) ([]*models.Holding, error)
	ListHeldTickers(ctx context.Context, traderID int64) ([]string, error)
	DistinctHeldTickers(ctx context.Context) ([]string, error)
	UpsertHolding(ctx context.Context, h *models.Holding) error
	DeleteHolding(ctx context.Context, traderID int64, ticker string) error

	// Trades.
	InsertTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context, traderID int64, limit int) ([]*models.Trade, error)

	// Ticker pool and rotation bookkeeping.
	UpsertTickerPoolEntry(ctx context.Context, e *models.TickerPoolEntry) error
	ListActivePool(ctx context.Context, timezone string) ([]*models.TickerPoolEntry, error)
	RecordRotation(ctx context.Context, ticker, timezone string, traderID int64) error
	RotationHistory(ctx context.Context, timezone string, limit int) ([]*models.TickerRotation, error)

	// Price cache.
	UpsertTickerPrice(ctx context.Context, p *models.TickerPrice) error
	GetTickerPrice(ctx context.Context, ticker string) (*models.TickerPrice, error)

	// API usage counters. IncrementUsage must be a single atomic
	// statement so concurrent sessions never race on the daily cap.
	IncrementUsage(ctx context.Context, day string) error
	GetUsage(ctx context.Context, day string) (*models.APIUsage, error)
	UsageSince(ctx context.Context, day string) ([]*models.APIUsage, error)

	// Transact runs fn against a transaction-scoped Store, committing on
	// nil and rolling back on error.
	Transact(ctx context.Context, fn func(Store) error) error
}
