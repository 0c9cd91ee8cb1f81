package models

import "github.com/shopspring/decimal"

// Action is what the execution policy tells the ledger to do.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Decision is the outcome of analyzing one ticker: the execution action,
// the display recommendation tier, and the indicator snapshot both were
// derived from. Price is the settlement price (latest close), carried as
// an exact decimal.
type Decision struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"current_price"`

	Action         Action `json:"action"`
	Confidence     int    `json:"confidence"`
	Recommendation string `json:"recommendation"`
	Score          int    `json:"score"`

	Signals []string `json:"signals"`

	RSI      *float64 `json:"rsi,omitempty"`
	MACD     *float64 `json:"macd,omitempty"`
	SMA20    *float64 `json:"sma_20,omitempty"`
	SMA50    *float64 `json:"sma_50,omitempty"`
	Momentum *float64 `json:"momentum,omitempty"`
}
