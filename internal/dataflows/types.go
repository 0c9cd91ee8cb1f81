// Package dataflows fetches market data from external providers behind a
// single PriceProvider interface. Alpha Vantage is the quota-limited
// default; Yahoo Finance is the unmetered alternative.
package dataflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/models"
)

// Provider failure classes the trading core cares about. Anything else
// is a transport error; all of them mean "skip this ticker."
var (
	ErrInvalidSymbol = errors.New("dataflows: invalid symbol")
	ErrRateLimited   = errors.New("dataflows: provider rate limited")
)

// PriceProvider serves daily history and live quotes for one symbol at a
// time. Implementations normalize symbols and return bars oldest-first.
type PriceProvider interface {
	FetchDailySeries(ctx context.Context, symbol string) ([]*models.PriceBar, error)
	FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "alphavantage" or "yahoo".
	Provider           string
	AlphaVantageAPIKey string
	DataCacheDir       string
	CacheEnabled       bool
}

// NewProvider builds the configured PriceProvider.
func NewProvider(cfg *Config) (PriceProvider, error) {
	switch cfg.Provider {
	case "", "alphavantage":
		if cfg.AlphaVantageAPIKey == "" {
			return nil, fmt.Errorf("alpha vantage api key not configured")
		}
		return NewAlphaVantageClient(cfg), nil
	case "yahoo":
		return NewYahooClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Provider)
	}
}
