// Package signal converts indicator snapshots into a signed score and a
// human-readable list of the rules that fired.
package signal

import (
	"fmt"
	"math"

	"github.com/vibetrade/papertrader/internal/indicators"
)

// Rule weights. Each rule is evaluated independently and its weight added
// to the total, except the trend branches which are mutually exclusive.
const (
	ScoreStrongTrend    = 20
	ScoreWeakTrend      = 10
	ScoreRSIExtreme     = 15
	ScoreMACDCrossover  = 15
	ScoreStrongMomentum = 10

	RSIOversold   = 30
	RSIOverbought = 70
	RSINeutralLow = 40
	RSINeutralHi  = 60

	MomentumStrongPositive = 5.0
	MomentumStrongNegative = -5.0
)

// Verbosity selects the signal text register. It never changes the score.
type Verbosity int

const (
	// Plain produces terse messages suited for trade notes.
	Plain Verbosity = iota
	// Decorated produces the emoji-annotated messages shown to users.
	Decorated
)

// Result is the scorer output for one ticker at one bar.
type Result struct {
	Score   int
	Signals []string
}

// Score evaluates the rule set against the latest snapshot, using the
// previous snapshot only for crossover detection. Undefined indicators
// (NaN) contribute nothing.
func Score(latest, prev indicators.Snapshot, verbosity Verbosity) Result {
	r := Result{}
	decorated := verbosity == Decorated

	if !math.IsNaN(latest.SMA20) && !math.IsNaN(latest.SMA50) {
		switch {
		case latest.Close > latest.SMA20 && latest.SMA20 > latest.SMA50:
			r.add(ScoreStrongTrend, pick(decorated,
				"✅ Strong uptrend: Price above both moving averages", "Strong uptrend"))
		case latest.Close > latest.SMA20:
			r.add(ScoreWeakTrend, pick(decorated,
				"↗️ Uptrend: Price above 20-day MA", "Uptrend"))
		case latest.Close < latest.SMA20 && latest.SMA20 < latest.SMA50:
			r.add(-ScoreStrongTrend, pick(decorated,
				"❌ Strong downtrend: Price below both moving averages", "Strong downtrend"))
		case latest.Close < latest.SMA20:
			r.add(-ScoreWeakTrend, pick(decorated,
				"↘️ Downtrend: Price below 20-day MA", "Downtrend"))
		}
	}

	if !math.IsNaN(latest.RSI) {
		switch {
		case latest.RSI < RSIOversold:
			r.add(ScoreRSIExtreme, pick(decorated,
				fmt.Sprintf("🔥 Oversold (RSI: %.1f) - potential buy opportunity", latest.RSI),
				fmt.Sprintf("Oversold (RSI: %.1f)", latest.RSI)))
		case latest.RSI > RSIOverbought:
			r.add(-ScoreRSIExtreme, pick(decorated,
				fmt.Sprintf("⚠️ Overbought (RSI: %.1f) - potential sell signal", latest.RSI),
				fmt.Sprintf("Overbought (RSI: %.1f)", latest.RSI)))
		case latest.RSI >= RSINeutralLow && latest.RSI <= RSINeutralHi && decorated:
			// informational only, no score contribution
			r.Signals = append(r.Signals, fmt.Sprintf("⚖️ Neutral momentum (RSI: %.1f)", latest.RSI))
		}
	}

	if !math.IsNaN(latest.MACD) && !math.IsNaN(latest.SignalLine) &&
		!math.IsNaN(prev.MACD) && !math.IsNaN(prev.SignalLine) {
		switch {
		case latest.MACD > latest.SignalLine && prev.MACD <= prev.SignalLine:
			r.add(ScoreMACDCrossover, pick(decorated,
				"📈 MACD bullish crossover - buy signal", "MACD bullish crossover"))
		case latest.MACD < latest.SignalLine && prev.MACD >= prev.SignalLine:
			r.add(-ScoreMACDCrossover, pick(decorated,
				"📉 MACD bearish crossover - sell signal", "MACD bearish crossover"))
		}
	}

	if !math.IsNaN(latest.Momentum) {
		switch {
		case latest.Momentum > MomentumStrongPositive:
			r.add(ScoreStrongMomentum,
				fmt.Sprintf("%sStrong positive momentum (%.1f%%)", pick(decorated, "🚀 ", ""), latest.Momentum))
		case latest.Momentum < MomentumStrongNegative:
			r.add(-ScoreStrongMomentum,
				fmt.Sprintf("%sStrong negative momentum (%.1f%%)", pick(decorated, "⬇️ ", ""), latest.Momentum))
		}
	}

	return r
}

func (r *Result) add(delta int, msg string) {
	r.Score += delta
	r.Signals = append(r.Signals, msg)
}

func pick(decorated bool, rich, plain string) string {
	if decorated {
		return rich
	}
	return plain
}
