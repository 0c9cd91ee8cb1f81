package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/models"
)

// historyWindowDays is generous enough that weekends and holidays still
// leave the 50 trading days the indicator engine needs.
const historyWindowDays = 160

// YahooClient serves the PriceProvider interface from Yahoo Finance. It
// has no hard daily quota, so there is no client-side limiter; the quota
// governor still meters calls for uniform accounting.
type YahooClient struct {
	cache *CacheManager
}

func NewYahooClient(cfg *Config) *YahooClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "yahoo")
	return &YahooClient{
		cache: NewCacheManager(cacheDir, seriesCacheTTL, cfg.CacheEnabled),
	}
}

func (y *YahooClient) FetchDailySeries(ctx context.Context, symbol string) ([]*models.PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached []*models.PriceBar
	if y.cache.Get("yahoo", "daily", symbol, &cached) {
		return cached, nil
	}

	end := time.Now()
	start := end.AddDate(0, 0, -historyWindowDays)

	var bars []*models.PriceBar
	err := WithRetry(DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)
		bars = bars[:0]
		for iter.Next() {
			bar := iter.Bar()
			bars = append(bars, &models.PriceBar{
				Symbol:   symbol,
				Date:     time.Unix(int64(bar.Timestamp), 0),
				Open:     bar.Open,
				High:     bar.High,
				Low:      bar.Low,
				Close:    bar.Close,
				AdjClose: bar.AdjClose,
				Volume:   int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("fetch daily series for %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return fmt.Errorf("%w: no daily series for %s", ErrInvalidSymbol, symbol)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	y.cache.Set("yahoo", "daily", symbol, bars)
	return bars, nil
}

func (y *YahooClient) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return decimal.Zero, err
	}
	symbol = NormalizeSymbol(symbol)

	var price decimal.Decimal
	err := WithRetry(DefaultRetryConfig(), func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("fetch quote for %s: %w", symbol, err)
		}
		if q == nil {
			return fmt.Errorf("%w: no quote for %s", ErrInvalidSymbol, symbol)
		}
		// the quote arrives as a float; NewFromFloat converts via the
		// shortest decimal representation, keeping balance math exact
		price = decimal.NewFromFloat(q.RegularMarketPrice)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}
