package dataflows

import (
	"errors"
	"testing"
	"time"
)

func TestValidateSymbol(t *testing.T) {
	if err := ValidateSymbol(" aapl "); err != nil {
		t.Fatalf("valid symbol rejected: %v", err)
	}
	if err := ValidateSymbol(""); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("empty symbol error = %v", err)
	}
	if err := ValidateSymbol("TOOLONGSYMBOL"); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("long symbol error = %v", err)
	}
	if got := NormalizeSymbol("  msft "); got != "MSFT" {
		t.Fatalf("normalized = %q", got)
	}
}

func TestCacheManagerRoundTrip(t *testing.T) {
	cm := NewCacheManager(t.TempDir(), time.Hour, true)

	type payload struct {
		Value string `json:"value"`
	}
	if err := cm.Set("test", "method", "KEY", payload{Value: "hello"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	if !cm.Get("test", "method", "KEY", &got) {
		t.Fatal("cache miss for fresh entry")
	}
	if got.Value != "hello" {
		t.Fatalf("value = %q", got.Value)
	}

	// different params miss
	if cm.Get("test", "method", "OTHER", &got) {
		t.Fatal("unexpected hit for different params")
	}
}

func TestCacheManagerDisabled(t *testing.T) {
	cm := NewCacheManager(t.TempDir(), time.Hour, false)
	if err := cm.Set("test", "m", "K", "data"); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out string
	if cm.Get("test", "m", "K", &out) {
		t.Fatal("disabled cache returned a hit")
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := WithRetry(&RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}, func() error {
		calls++
		return ErrInvalidSymbol
	})
	if !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error retried %d times", calls)
	}
}

func TestWithRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := WithRetry(&RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestParseDailySeriesOrdersOldestFirst(t *testing.T) {
	series := map[string]map[string]string{
		"2025-06-02": {"1. open": "101.0", "2. high": "102.5", "3. low": "100.1", "4. close": "102.0", "5. volume": "1200"},
		"2025-05-30": {"1. open": "99.0", "2. high": "100.0", "3. low": "98.5", "4. close": "99.5", "5. volume": "900"},
		"2025-06-03": {"1. open": "102.0", "2. high": "103.0", "3. low": "101.0", "4. close": "102.8", "5. volume": "1500"},
	}
	bars, err := parseDailySeries("AAPL", series)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars", len(bars))
	}
	if !bars[0].Date.Before(bars[1].Date) || !bars[1].Date.Before(bars[2].Date) {
		t.Fatal("bars not ordered oldest first")
	}
	if bars[0].Close.String() != "99.5" {
		t.Fatalf("first close = %s", bars[0].Close)
	}
	if bars[2].Volume != 1500 {
		t.Fatalf("last volume = %d", bars[2].Volume)
	}
}

func TestAvEnvelopeErrors(t *testing.T) {
	e := avEnvelope{ErrorMessage: "Invalid API call"}
	if err := e.err(); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("error message classified as %v", err)
	}
	e = avEnvelope{Note: "API call frequency exceeded"}
	if err := e.err(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("note classified as %v", err)
	}
	e = avEnvelope{Information: "premium endpoint"}
	if err := e.err(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("information classified as %v", err)
	}
	e = avEnvelope{}
	if err := e.err(); err != nil {
		t.Fatalf("clean envelope errored: %v", err)
	}
}
