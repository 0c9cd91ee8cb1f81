// Package session orchestrates a trading run: per trader, select a
// watchlist, fetch price series under quota, score signals, and settle
// the resulting decisions. Traders and tickers are processed serially
// because the external provider's rate limit is the bottleneck.
package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/internal/dataflows"
	"github.com/vibetrade/papertrader/internal/decision"
	"github.com/vibetrade/papertrader/internal/indicators"
	"github.com/vibetrade/papertrader/internal/ledger"
	"github.com/vibetrade/papertrader/internal/quota"
	"github.com/vibetrade/papertrader/internal/signal"
	"github.com/vibetrade/papertrader/internal/storage"
	"github.com/vibetrade/papertrader/internal/watchlist"
	"github.com/vibetrade/papertrader/models"
)

// Session outcome statuses. Aborted means the quota ran out before the
// session finished; trades committed before the abort are preserved.
const (
	StatusSuccess = "success"
	StatusAborted = "aborted"
)

// defaultAvgTickersPerTrader sizes the up-front capacity estimate: held
// positions plus the default discovery sample.
const defaultAvgTickersPerTrader = 8

// Result summarizes one trading session.
type Result struct {
	Status           string          `json:"status"`
	Timezone         string          `json:"timezone"`
	TimeOfDay        string          `json:"time_of_day"`
	TradersProcessed int             `json:"traders_processed"`
	TradesExecuted   int             `json:"trades_executed"`
	APICallsMade     int             `json:"api_calls_made"`
	Trades           []*models.Trade `json:"trades"`
	Message          string          `json:"message,omitempty"`
}

// Valuation is one trader's mark-to-market snapshot.
type Valuation struct {
	TraderID       int64               `json:"trader_id"`
	Name           string              `json:"name"`
	Status         models.TraderStatus `json:"status"`
	CashBalance    decimal.Decimal     `json:"cash_balance"`
	HoldingsValue  decimal.Decimal     `json:"holdings_value"`
	TotalValue     decimal.Decimal     `json:"total_value"`
	InitialBalance decimal.Decimal     `json:"initial_balance"`
	ReturnPct      decimal.Decimal     `json:"return_pct"`
	Positions      int                 `json:"positions"`
}

// HealthReport is the output of a health check across all traders.
type HealthReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Traders     []*Valuation `json:"traders"`
}

// RefreshResult reports a price-cache refresh pass.
type RefreshResult struct {
	UpdatedCount int      `json:"updated_count"`
	Errors       []string `json:"errors,omitempty"`
}

// Runner wires the trading pipeline together. Settlements for one trader
// commit in a single transaction, so a crash loses at most the current
// trader's trades.
type Runner struct {
	store    storage.Store
	provider dataflows.PriceProvider
	governor *quota.Governor
	selector *watchlist.Selector
	ledger   *ledger.Ledger
	log      *logrus.Logger

	avgTickersPerTrader int
	now                 func() time.Time
}

func NewRunner(store storage.Store, provider dataflows.PriceProvider, governor *quota.Governor, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		store:               store,
		provider:            provider,
		governor:            governor,
		selector:            watchlist.New(log),
		ledger:              ledger.New(log),
		log:                 log,
		avgTickersPerTrader: defaultAvgTickersPerTrader,
		now:                 time.Now,
	}
}

// WithSelector overrides the watchlist selector.
func (r *Runner) WithSelector(s *watchlist.Selector) *Runner {
	r.selector = s
	return r
}

// WithLedger overrides the settlement ledger.
func (r *Runner) WithLedger(l *ledger.Ledger) *Runner {
	r.ledger = l
	return r
}

// WithClock overrides the timestamp source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// WithAvgTickersPerTrader overrides the fan-out used for the capacity
// pre-check.
func (r *Runner) WithAvgTickersPerTrader(n int) *Runner {
	if n > 0 {
		r.avgTickersPerTrader = n
	}
	return r
}

// RunSession evaluates every active trader in the timezone for one
// time-of-day slot. Individual ticker failures are skipped; quota
// exhaustion aborts the remainder of the session with StatusAborted.
// Only persistence failures return an error.
func (r *Runner) RunSession(ctx context.Context, timezone, timeOfDay string) (*Result, error) {
	result := &Result{
		Status:    StatusSuccess,
		Timezone:  timezone,
		TimeOfDay: timeOfDay,
	}

	traders, err := r.store.ListActiveTradersByTimezone(ctx, timezone)
	if err != nil {
		return nil, fmt.Errorf("list traders for %s: %w", timezone, err)
	}
	if len(traders) == 0 {
		result.Message = "no active traders in timezone"
		return result, nil
	}

	capacity, err := r.governor.EstimateCapacity(ctx, len(traders), r.avgTickersPerTrader)
	if err != nil {
		return nil, err
	}
	if !capacity.CanProceed {
		result.Status = StatusAborted
		result.Message = capacity.Message
		r.log.WithField("capacity", capacity.Message).Warn("session aborted before start")
		return result, nil
	}

	r.log.WithFields(logrus.Fields{
		"timezone": timezone,
		"slot":     timeOfDay,
		"traders":  len(traders),
	}).Info("starting trading session")

	for _, trader := range traders {
		aborted, err := r.processTrader(ctx, trader, timezone, timeOfDay, result)
		if err != nil {
			return nil, err
		}
		result.TradersProcessed++
		if aborted {
			result.Status = StatusAborted
			break
		}
	}

	r.log.WithFields(logrus.Fields{
		"status":  result.Status,
		"traders": result.TradersProcessed,
		"trades":  result.TradesExecuted,
		"calls":   result.APICallsMade,
	}).Info("trading session finished")
	return result, nil
}

// processTrader analyzes one trader's watchlist and settles the resulting
// decisions in a single transaction. It reports aborted=true when the
// quota ran out mid-watchlist; analysis stops but decisions gathered so
// far are still settled.
func (r *Runner) processTrader(ctx context.Context, trader *models.Trader, timezone, timeOfDay string, result *Result) (aborted bool, err error) {
	tickers, err := r.selector.PriorityTickers(ctx, r.store, trader, timezone)
	if err != nil {
		r.log.WithError(err).WithField("trader", trader.Name).Warn("watchlist selection failed, skipping trader")
		return false, nil
	}

	var decisions []*models.Decision
	for _, ticker := range tickers {
		ok, reason, err := r.governor.CanMakeRequest(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			result.Message = reason
			r.log.WithField("reason", reason).Warn("quota exhausted mid-session")
			aborted = true
			break
		}

		dec, err := r.analyzeTicker(ctx, ticker, trader.RiskTolerance, result)
		if err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"trader": trader.Name, "ticker": ticker}).
				Warn("skipping ticker")
			continue
		}
		if dec == nil {
			continue
		}
		if dec.Action != models.ActionHold {
			decisions = append(decisions, dec)
		}
	}

	if len(decisions) == 0 {
		return aborted, nil
	}

	err = r.store.Transact(ctx, func(tx storage.Store) error {
		for _, dec := range decisions {
			var trade *models.Trade
			var err error
			switch dec.Action {
			case models.ActionBuy:
				trade, err = r.ledger.ExecuteBuy(ctx, tx, trader, dec.Ticker, dec, timeOfDay)
			case models.ActionSell:
				trade, err = r.ledger.ExecuteSell(ctx, tx, trader, dec.Ticker, dec, timeOfDay)
			}
			if err != nil {
				return err
			}
			if trade != nil {
				result.Trades = append(result.Trades, trade)
				result.TradesExecuted++
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("settle trades for %s: %w", trader.Name, err)
	}
	return aborted, nil
}

// analyzeTicker fetches the price series and runs the indicator, scoring
// and policy pipeline. A nil decision with nil error means insufficient
// history. The caller has already cleared the request with the governor.
func (r *Runner) analyzeTicker(ctx context.Context, ticker string, risk models.RiskTolerance, result *Result) (*models.Decision, error) {
	r.governor.Throttle()
	bars, fetchErr := r.provider.FetchDailySeries(ctx, ticker)

	// the call is spent whether or not it succeeded
	result.APICallsMade++
	if err := r.governor.RecordCall(ctx); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	closes := models.Closes(bars)
	if !indicators.HasSufficientData(closes) {
		r.log.WithFields(logrus.Fields{"ticker": ticker, "bars": len(closes)}).
			Debug("insufficient history")
		return nil, nil
	}

	set := indicators.Compute(closes)
	latest, prev, ok := set.Latest()
	if !ok {
		return nil, nil
	}

	price := bars[len(bars)-1].Close
	if err := r.store.UpsertTickerPrice(ctx, &models.TickerPrice{
		Ticker:       ticker,
		CurrentPrice: price,
		LastUpdated:  r.now(),
	}); err != nil {
		return nil, fmt.Errorf("cache price for %s: %w", ticker, err)
	}

	scored := signal.Score(latest, prev, signal.Plain)
	action, confidence := decision.Decide(scored.Score, risk)
	recommendation, _ := decision.Recommend(scored.Score)

	return &models.Decision{
		Ticker:         ticker,
		Price:          price,
		Action:         action,
		Confidence:     confidence,
		Recommendation: recommendation,
		Score:          scored.Score,
		Signals:        scored.Signals,
		RSI:            definedPtr(latest.RSI),
		MACD:           definedPtr(latest.MACD),
		SMA20:          definedPtr(latest.SMA20),
		SMA50:          definedPtr(latest.SMA50),
		Momentum:       definedPtr(latest.Momentum),
	}, nil
}

// Analyze runs the full pipeline for a single symbol without settling
// anything, with decorated signal text for interactive display.
func (r *Runner) Analyze(ctx context.Context, symbol string) (*models.Decision, error) {
	symbol = dataflows.NormalizeSymbol(symbol)
	ok, reason, err := r.governor.CanMakeRequest(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("quota exhausted: %s", reason)
	}

	r.governor.Throttle()
	bars, fetchErr := r.provider.FetchDailySeries(ctx, symbol)
	if err := r.governor.RecordCall(ctx); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	closes := models.Closes(bars)
	if !indicators.HasSufficientData(closes) {
		return nil, fmt.Errorf("insufficient history for %s: %d bars, need %d", symbol, len(closes), indicators.MinBars)
	}

	set := indicators.Compute(closes)
	latest, prev, ok := set.Latest()
	if !ok {
		return nil, fmt.Errorf("insufficient history for %s", symbol)
	}

	scored := signal.Score(latest, prev, signal.Decorated)
	recommendation, confidence := decision.Recommend(scored.Score)
	action, _ := decision.Decide(scored.Score, models.RiskMedium)

	return &models.Decision{
		Ticker:         symbol,
		Price:          bars[len(bars)-1].Close,
		Action:         action,
		Confidence:     confidence,
		Recommendation: recommendation,
		Score:          scored.Score,
		Signals:        scored.Signals,
		RSI:            definedPtr(latest.RSI),
		MACD:           definedPtr(latest.MACD),
		SMA20:          definedPtr(latest.SMA20),
		SMA50:          definedPtr(latest.SMA50),
		Momentum:       definedPtr(latest.Momentum),
	}, nil
}

// HealthCheck values every trader: cash plus holdings marked at the
// cached price, falling back to cost basis for tickers with no cached
// quote. Read-only, no external calls.
func (r *Runner) HealthCheck(ctx context.Context) (*HealthReport, error) {
	traders, err := r.store.ListTraders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list traders: %w", err)
	}

	report := &HealthReport{GeneratedAt: r.now()}
	for _, trader := range traders {
		holdings, err := r.store.ListHoldings(ctx, trader.ID)
		if err != nil {
			return nil, fmt.Errorf("list holdings for %s: %w", trader.Name, err)
		}

		holdingsValue := decimal.Zero
		for _, h := range holdings {
			price := h.AveragePrice
			if cached, err := r.store.GetTickerPrice(ctx, h.Ticker); err == nil {
				price = cached.CurrentPrice
			}
			holdingsValue = holdingsValue.Add(h.MarketValue(price))
		}

		total := trader.CurrentBalance.Add(holdingsValue)
		returnPct := decimal.Zero
		if trader.InitialBalance.Sign() > 0 {
			returnPct = total.Sub(trader.InitialBalance).
				Div(trader.InitialBalance).
				Mul(decimal.NewFromInt(100)).
				Round(2)
		}

		report.Traders = append(report.Traders, &Valuation{
			TraderID:       trader.ID,
			Name:           trader.Name,
			Status:         trader.Status,
			CashBalance:    trader.CurrentBalance,
			HoldingsValue:  holdingsValue,
			TotalValue:     total,
			InitialBalance: trader.InitialBalance,
			ReturnPct:      returnPct,
			Positions:      len(holdings),
		})
	}
	return report, nil
}

// RefreshPrices re-quotes every ticker held by any trader and updates the
// price cache. Stops early if the quota runs out; per-ticker failures are
// collected, not fatal.
func (r *Runner) RefreshPrices(ctx context.Context) (*RefreshResult, error) {
	tickers, err := r.store.DistinctHeldTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list held tickers: %w", err)
	}

	result := &RefreshResult{}
	for _, ticker := range tickers {
		ok, reason, err := r.governor.CanMakeRequest(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("stopped: %s", reason))
			break
		}

		r.governor.Throttle()
		price, fetchErr := r.provider.FetchQuote(ctx, ticker)
		if err := r.governor.RecordCall(ctx); err != nil {
			return nil, err
		}
		if fetchErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ticker, fetchErr))
			continue
		}

		if err := r.store.UpsertTickerPrice(ctx, &models.TickerPrice{
			Ticker:       ticker,
			CurrentPrice: price,
			LastUpdated:  r.now(),
		}); err != nil {
			return nil, fmt.Errorf("cache price for %s: %w", ticker, err)
		}
		result.UpdatedCount++
	}
	return result, nil
}

func definedPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
