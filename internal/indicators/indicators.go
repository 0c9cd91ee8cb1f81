package indicators

import (
	"math"
)

// Window sizes for the indicator set. Momentum is the lookback in trading
// days; MinBars is the sufficiency floor below which analysis is refused.
const (
	SMAShortPeriod = 20
	SMALongPeriod  = 50
	EMAFastPeriod  = 12
	EMASlowPeriod  = 26
	MACDSignalSpan = 9
	RSIPeriod      = 14
	MomentumPeriod = 10
	MinBars        = 50
)

// Set holds every derived series for one close-price history. All series
// are index-aligned with Close; positions where a window is not yet full
// carry NaN.
type Set struct {
	Close      []float64
	SMA20      []float64
	SMA50      []float64
	EMA12      []float64
	EMA26      []float64
	MACD       []float64
	SignalLine []float64
	RSI        []float64
	Momentum   []float64
}

// Snapshot is the value of every indicator at a single bar.
type Snapshot struct {
	Close      float64
	SMA20      float64
	SMA50      float64
	MACD       float64
	SignalLine float64
	RSI        float64
	Momentum   float64
}

// HasSufficientData reports whether a close series is long enough to
// compute the full indicator set.
func HasSufficientData(closes []float64) bool {
	return len(closes) >= MinBars
}

// Compute derives the full indicator set from a chronologically ordered
// close series (oldest first). The input must satisfy HasSufficientData;
// shorter inputs return nil.
func Compute(closes []float64) *Set {
	if !HasSufficientData(closes) {
		return nil
	}
	s := &Set{
		Close:    closes,
		SMA20:    SMA(closes, SMAShortPeriod),
		SMA50:    SMA(closes, SMALongPeriod),
		EMA12:    EMA(closes, EMAFastPeriod),
		EMA26:    EMA(closes, EMASlowPeriod),
		RSI:      RSI(closes, RSIPeriod),
		Momentum: Momentum(closes, MomentumPeriod),
	}
	s.MACD = sub(s.EMA12, s.EMA26)
	s.SignalLine = EMA(s.MACD, MACDSignalSpan)
	return s
}

// Latest returns the snapshots at the final and penultimate bars. ok is
// false when the set holds fewer than two bars.
func (s *Set) Latest() (latest, prev Snapshot, ok bool) {
	n := len(s.Close)
	if n < 2 {
		return Snapshot{}, Snapshot{}, false
	}
	return s.at(n - 1), s.at(n - 2), true
}

func (s *Set) at(i int) Snapshot {
	return Snapshot{
		Close:      s.Close[i],
		SMA20:      s.SMA20[i],
		SMA50:      s.SMA50[i],
		MACD:       s.MACD[i],
		SignalLine: s.SignalLine[i],
		RSI:        s.RSI[i],
		Momentum:   s.Momentum[i],
	}
}

// SMA computes the simple moving average over the given window. The first
// period-1 positions are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with smoothing
// 2/(period+1), seeded with the first value of the series. NaN inputs are
// carried through until the first defined value, which then seeds the
// average.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	seeded := false
	var ema float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			ema = v
			seeded = true
		} else {
			ema = alpha*v + (1-alpha)*ema
		}
		out[i] = ema
	}
	return out
}

// RSI computes the relative strength index using simple rolling averages
// of the clamped per-bar gains and losses. A window with zero average
// loss yields RSI 100.
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	var gainSum, lossSum float64
	for i := 1; i < len(values); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i >= period {
			avgGain := gainSum / float64(period)
			avgLoss := lossSum / float64(period)
			if avgLoss == 0 {
				out[i] = 100
			} else {
				rs := avgGain / avgLoss
				out[i] = 100 - 100/(1+rs)
			}
		}
	}
	return out
}

// Momentum computes the percentage change over the lookback window.
func Momentum(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period; i < len(values); i++ {
		base := values[i-period]
		if base == 0 {
			continue
		}
		out[i] = (values[i] - base) / base * 100
	}
	return out
}

func sub(a, b []float64) []float64 {
	out := nanSlice(len(a))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		out[i] = a[i] - b[i]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
