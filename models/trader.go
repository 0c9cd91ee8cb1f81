package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TraderStatus is the lifecycle state of a trader.
type TraderStatus string

const (
	TraderActive   TraderStatus = "active"
	TraderPaused   TraderStatus = "paused"
	TraderArchived TraderStatus = "archived"
)

// RiskTolerance selects the risk profile used for execution thresholds
// and position sizing.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// Trader is an automated paper-trading agent. The ledger is the only
// component allowed to mutate its balance.
type Trader struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	TradingEthos    string          `json:"trading_ethos,omitempty"`
	Status          TraderStatus    `json:"status"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	RiskTolerance   RiskTolerance   `json:"risk_tolerance"`
	TradingTimezone string          `json:"trading_timezone"`

	// Custom watchlist configuration. WatchlistSize is the number of
	// discovery tickers selected per session.
	CustomWatchlist    []string `json:"custom_watchlist,omitempty"`
	WatchlistSize      int      `json:"watchlist_size"`
	UseCustomWatchlist bool     `json:"use_custom_watchlist"`

	CreatedAt   time.Time  `json:"created_at"`
	LastTradeAt *time.Time `json:"last_trade_at,omitempty"`
}

// IsActive reports whether the trader participates in trading sessions.
func (t *Trader) IsActive() bool {
	return t.Status == TraderActive
}
