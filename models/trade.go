package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the direction of an executed trade.
type TradeAction string

const (
	TradeBuy  TradeAction = "buy"
	TradeSell TradeAction = "sell"
)

// Trade is an immutable, append-only record of one executed settlement,
// including the indicator snapshot that motivated it.
type Trade struct {
	ID       int64       `json:"id"`
	TraderID int64       `json:"trader_id"`
	Ticker   string      `json:"ticker"`
	Action   TradeAction `json:"action"`
	Quantity int64       `json:"quantity"`

	Price        decimal.Decimal `json:"price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`

	// Indicator snapshot at decision time. Nil when the indicator was
	// undefined for the series.
	RSI   *float64 `json:"rsi,omitempty"`
	MACD  *float64 `json:"macd,omitempty"`
	SMA20 *float64 `json:"sma_20,omitempty"`
	SMA50 *float64 `json:"sma_50,omitempty"`

	Recommendation string `json:"recommendation,omitempty"`
	Confidence     int    `json:"confidence"`
	Notes          string `json:"notes,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
}
