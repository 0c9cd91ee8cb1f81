package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one open position: a single row per (trader, ticker).
// Invariant: TotalCost == Quantity * AveragePrice within rounding
// tolerance, and a holding with Quantity == 0 must not exist.
type Holding struct {
	ID       int64  `json:"id"`
	TraderID int64  `json:"trader_id"`
	Ticker   string `json:"ticker"`

	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	TotalCost    decimal.Decimal `json:"total_cost"`

	FirstPurchasedAt time.Time `json:"first_purchased_at"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// MarketValue returns the holding's value at the given price.
func (h *Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(h.Quantity))
}
