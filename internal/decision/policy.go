// Package decision maps signal scores to actions. The same score feeds
// two consumers: a display recommendation tier for read-only surfaces and
// an execution decision that moves money, gated by risk tolerance.
package decision

import (
	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/models"
)

// Display tier boundaries.
const (
	DisplayStrongBuyThreshold  = 30
	DisplayBuyThreshold        = 15
	DisplaySellThreshold       = -15
	DisplayStrongSellThreshold = -30
)

// RiskProfile holds the execution parameters for one risk tier.
type RiskProfile struct {
	BuyThreshold  int
	SellThreshold int
	// PositionSize is the fraction of current balance committed per buy.
	PositionSize decimal.Decimal
}

var riskProfiles = map[models.RiskTolerance]RiskProfile{
	models.RiskLow:    {BuyThreshold: 35, SellThreshold: -35, PositionSize: decimal.NewFromFloat(0.05)},
	models.RiskMedium: {BuyThreshold: 18, SellThreshold: -18, PositionSize: decimal.NewFromFloat(0.10)},
	models.RiskHigh:   {BuyThreshold: 15, SellThreshold: -15, PositionSize: decimal.NewFromFloat(0.15)},
}

// ProfileFor returns the execution parameters for a risk tier. Unknown
// tiers fall back to medium.
func ProfileFor(risk models.RiskTolerance) RiskProfile {
	if p, ok := riskProfiles[risk]; ok {
		return p
	}
	return riskProfiles[models.RiskMedium]
}

// Recommend maps a score to a display recommendation and its confidence.
// Display thresholds are looser than execution thresholds so read-only
// surfaces give actionable feedback more often.
func Recommend(score int) (recommendation string, confidence int) {
	switch {
	case score >= DisplayStrongBuyThreshold:
		return "STRONG BUY", capped(80 + (score - DisplayStrongBuyThreshold))
	case score >= DisplayBuyThreshold:
		return "BUY", 65 + (score - DisplayBuyThreshold)
	case score <= DisplayStrongSellThreshold:
		return "STRONG SELL", capped(80 + abs(score-DisplayStrongSellThreshold))
	case score <= DisplaySellThreshold:
		return "SELL", 65 + abs(score-DisplaySellThreshold)
	default:
		return "HOLD", 50 + abs(score)
	}
}

// Decide maps a score to an execution action for the given risk tier.
func Decide(score int, risk models.RiskTolerance) (action models.Action, confidence int) {
	p := ProfileFor(risk)
	switch {
	case score >= p.BuyThreshold:
		return models.ActionBuy, capped(70 + (score - p.BuyThreshold))
	case score <= p.SellThreshold:
		return models.ActionSell, capped(70 + abs(score-p.SellThreshold))
	default:
		return models.ActionHold, 50 + abs(score)
	}
}

func capped(c int) int {
	if c > 95 {
		return 95
	}
	return c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
