package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerPrice is the cached latest market price for a symbol, the single
// source of truth for market-value reporting. Settlement uses the price
// supplied at decision time, never this cache.
type TickerPrice struct {
	Ticker       string          `json:"ticker"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// TickerPoolEntry is one known tradeable symbol in the shared discovery
// pool, scoped to an exchange and its market timezone.
type TickerPoolEntry struct {
	ID       int64  `json:"id"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange"`
	Timezone string `json:"timezone"`
	Sector   string `json:"sector,omitempty"`
	IsActive bool   `json:"is_active"`

	// Source tags where the entry came from (sp500, ftse100, nikkei225,
	// custom).
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// TickerRotation tracks how often a discovery ticker has been analyzed,
// per trader and timezone. Advisory bookkeeping only.
type TickerRotation struct {
	ID             int64     `json:"id"`
	Ticker         string    `json:"ticker"`
	Timezone       string    `json:"timezone"`
	TraderID       *int64    `json:"trader_id,omitempty"`
	LastAnalyzedAt time.Time `json:"last_analyzed_at"`
	AnalysisCount  int       `json:"analysis_count"`
}
