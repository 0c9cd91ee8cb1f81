package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/vibetrade/papertrader/models"
)

// seriesCacheTTL keeps repeated intraday lookups of the same symbol from
// burning quota. 15 minutes matches the staleness the analysis tolerates.
const seriesCacheTTL = 15 * time.Minute

// AlphaVantageClient fetches daily bars and quotes from the Alpha
// Vantage REST API. The client-side limiter spaces requests to one per
// 12 seconds, matching the free tier's 5/minute burst limit; the quota
// governor remains the authority on daily budget.
type AlphaVantageClient struct {
	client  *resty.Client
	cache   *CacheManager
	limiter *rate.Limiter
	apiKey  string
}

func NewAlphaVantageClient(cfg *Config) *AlphaVantageClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "alphavantage")

	client := resty.New()
	client.SetBaseURL("https://www.alphavantage.co")
	client.SetTimeout(30 * time.Second)

	return &AlphaVantageClient{
		client:  client,
		cache:   NewCacheManager(cacheDir, seriesCacheTTL, cfg.CacheEnabled),
		limiter: rate.NewLimiter(rate.Every(12*time.Second), 1),
		apiKey:  cfg.AlphaVantageAPIKey,
	}
}

// avEnvelope carries the provider's out-of-band failure fields, which
// arrive as HTTP 200 with a JSON message instead of an error status.
type avEnvelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (e *avEnvelope) err() error {
	if e.ErrorMessage != "" {
		return fmt.Errorf("%w: %s", ErrInvalidSymbol, e.ErrorMessage)
	}
	if e.Note != "" {
		return fmt.Errorf("%w: %s", ErrRateLimited, e.Note)
	}
	if e.Information != "" {
		return fmt.Errorf("%w: %s", ErrRateLimited, e.Information)
	}
	return nil
}

// FetchDailySeries returns the last ~100 daily bars for symbol,
// oldest first.
func (av *AlphaVantageClient) FetchDailySeries(ctx context.Context, symbol string) ([]*models.PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached []*models.PriceBar
	if av.cache.Get("alphavantage", "daily", symbol, &cached) {
		return cached, nil
	}

	if err := av.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var bars []*models.PriceBar
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := av.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"function":   "TIME_SERIES_DAILY",
				"symbol":     symbol,
				"outputsize": "compact",
				"apikey":     av.apiKey,
			}).
			Get("/query")
		if err != nil {
			return fmt.Errorf("fetch daily series for %s: %w", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("alpha vantage error %d: %s", resp.StatusCode(), resp.String())
		}

		var payload struct {
			avEnvelope
			Series map[string]map[string]string `json:"Time Series (Daily)"`
		}
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			return fmt.Errorf("parse daily series for %s: %w", symbol, err)
		}
		if err := payload.err(); err != nil {
			return err
		}
		if len(payload.Series) == 0 {
			return fmt.Errorf("%w: no daily series for %s", ErrInvalidSymbol, symbol)
		}

		bars, err = parseDailySeries(symbol, payload.Series)
		return err
	})
	if err != nil {
		return nil, err
	}

	av.cache.Set("alphavantage", "daily", symbol, bars)
	return bars, nil
}

// FetchQuote returns the latest traded price for symbol.
func (av *AlphaVantageClient) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return decimal.Zero, err
	}
	symbol = NormalizeSymbol(symbol)

	if err := av.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("rate limiter: %w", err)
	}

	var price decimal.Decimal
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := av.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"function": "GLOBAL_QUOTE",
				"symbol":   symbol,
				"apikey":   av.apiKey,
			}).
			Get("/query")
		if err != nil {
			return fmt.Errorf("fetch quote for %s: %w", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("alpha vantage error %d: %s", resp.StatusCode(), resp.String())
		}

		var payload struct {
			avEnvelope
			Quote map[string]string `json:"Global Quote"`
		}
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			return fmt.Errorf("parse quote for %s: %w", symbol, err)
		}
		if err := payload.err(); err != nil {
			return err
		}

		raw, ok := payload.Quote["05. price"]
		if !ok || raw == "" {
			return fmt.Errorf("%w: no quote for %s", ErrInvalidSymbol, symbol)
		}
		price, err = decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("parse quote price %q: %w", raw, err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

func parseDailySeries(symbol string, series map[string]map[string]string) ([]*models.PriceBar, error) {
	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	bars := make([]*models.PriceBar, 0, len(dates))
	for _, d := range dates {
		fields := series[d]
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, fmt.Errorf("parse bar date %q: %w", d, err)
		}
		bar := &models.PriceBar{Symbol: symbol, Date: date}
		if bar.Open, err = decimal.NewFromString(fields["1. open"]); err != nil {
			return nil, fmt.Errorf("parse open for %s: %w", d, err)
		}
		if bar.High, err = decimal.NewFromString(fields["2. high"]); err != nil {
			return nil, fmt.Errorf("parse high for %s: %w", d, err)
		}
		if bar.Low, err = decimal.NewFromString(fields["3. low"]); err != nil {
			return nil, fmt.Errorf("parse low for %s: %w", d, err)
		}
		if bar.Close, err = decimal.NewFromString(fields["4. close"]); err != nil {
			return nil, fmt.Errorf("parse close for %s: %w", d, err)
		}
		bar.AdjClose = bar.Close
		if v := fields["5. volume"]; v != "" {
			if bar.Volume, err = strconv.ParseInt(v, 10, 64); err != nil {
				return nil, fmt.Errorf("parse volume for %s: %w", d, err)
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
