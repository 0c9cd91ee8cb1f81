package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestHasSufficientData(t *testing.T) {
	short := make([]float64, MinBars-1)
	if HasSufficientData(short) {
		t.Fatalf("expected %d bars to be insufficient", len(short))
	}
	if Compute(short) != nil {
		t.Fatal("Compute should return nil for insufficient data")
	}
	exact := make([]float64, MinBars)
	if !HasSufficientData(exact) {
		t.Fatalf("expected %d bars to be sufficient", len(exact))
	}
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := SMA(values, 3)
	if !math.IsNaN(sma[0]) || !math.IsNaN(sma[1]) {
		t.Fatal("positions before the window fills must be NaN")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(sma[i+2], w) {
			t.Fatalf("sma[%d] = %v, want %v", i+2, sma[i+2], w)
		}
	}
}

func TestEMASeededByFirstValue(t *testing.T) {
	values := []float64{10, 11, 12, 13}
	ema := EMA(values, 3)
	if !almostEqual(ema[0], 10) {
		t.Fatalf("ema[0] = %v, want the first value 10", ema[0])
	}
	// alpha = 0.5 for period 3
	if !almostEqual(ema[1], 10.5) {
		t.Fatalf("ema[1] = %v, want 10.5", ema[1])
	}
	if !almostEqual(ema[2], 11.25) {
		t.Fatalf("ema[2] = %v, want 11.25", ema[2])
	}
}

func TestEMASkipsLeadingNaN(t *testing.T) {
	values := []float64{math.NaN(), math.NaN(), 5, 7}
	ema := EMA(values, 3)
	if !math.IsNaN(ema[0]) || !math.IsNaN(ema[1]) {
		t.Fatal("leading NaN inputs must stay NaN")
	}
	if !almostEqual(ema[2], 5) {
		t.Fatalf("ema[2] = %v, want seed 5", ema[2])
	}
	if !almostEqual(ema[3], 6) {
		t.Fatalf("ema[3] = %v, want 6", ema[3])
	}
}

func TestRSIBounds(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		// oscillating series keeps both gains and losses in the window
		values[i] = 100 + float64(i%7) - float64(i%3)
	}
	rsi := RSI(values, RSIPeriod)
	for i := RSIPeriod; i < len(rsi); i++ {
		if math.IsNaN(rsi[i]) {
			t.Fatalf("rsi[%d] unexpectedly NaN", i)
		}
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Fatalf("rsi[%d] = %v out of [0,100]", i, rsi[i])
		}
	}
	for i := 0; i < RSIPeriod; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Fatalf("rsi[%d] = %v, want NaN before the window fills", i, rsi[i])
		}
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	rsi := RSI(values, RSIPeriod)
	last := rsi[len(rsi)-1]
	if !almostEqual(last, 100) {
		t.Fatalf("monotonically rising series should give RSI 100, got %v", last)
	}
}

func TestRSIAllLossesIsZero(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 - float64(i)
	}
	rsi := RSI(values, RSIPeriod)
	last := rsi[len(rsi)-1]
	if !almostEqual(last, 0) {
		t.Fatalf("monotonically falling series should give RSI 0, got %v", last)
	}
}

func TestMomentum(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		values[i] = 100
	}
	values[14] = 110
	m := Momentum(values, MomentumPeriod)
	if !almostEqual(m[14], 10) {
		t.Fatalf("momentum = %v, want 10%%", m[14])
	}
	if !math.IsNaN(m[9]) {
		t.Fatal("momentum before the lookback fills must be NaN")
	}
}

func TestComputeAndLatest(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i) + 2*math.Sin(float64(i)/3)
	}
	set := Compute(closes)
	if set == nil {
		t.Fatal("Compute returned nil for sufficient data")
	}
	latest, prev, ok := set.Latest()
	if !ok {
		t.Fatal("Latest should succeed")
	}
	if math.IsNaN(latest.SMA20) || math.IsNaN(latest.SMA50) {
		t.Fatal("latest moving averages should be defined on 60 bars")
	}
	if math.IsNaN(latest.MACD) || math.IsNaN(latest.SignalLine) {
		t.Fatal("latest MACD and signal line should be defined")
	}
	if math.IsNaN(latest.RSI) || math.IsNaN(latest.Momentum) {
		t.Fatal("latest RSI and momentum should be defined")
	}
	if prev.Close != closes[len(closes)-2] {
		t.Fatalf("prev close = %v, want %v", prev.Close, closes[len(closes)-2])
	}
	// MACD is the fast/slow EMA difference at every aligned position.
	i := len(closes) - 1
	if !almostEqual(set.MACD[i], set.EMA12[i]-set.EMA26[i]) {
		t.Fatalf("macd[%d] = %v, want ema12-ema26 = %v", i, set.MACD[i], set.EMA12[i]-set.EMA26[i])
	}
}
