// Package quota keeps external API usage inside the provider's free-tier
// limits: a durable calendar-day cap shared across processes, an
// in-memory rolling minute window, and a minimum inter-request spacing.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/internal/storage"
	"github.com/vibetrade/papertrader/models"
)

// Free-tier defaults. SafetyBuffer is subtracted from the usable daily
// limit so a miscount never burns the last calls of the day.
const (
	DefaultDailyLimit   = 25
	DefaultMinuteLimit  = 5
	DefaultSafetyBuffer = 2
)

// Limits configures a Governor.
type Limits struct {
	Daily        int
	PerMinute    int
	SafetyBuffer int
}

func DefaultLimits() Limits {
	return Limits{
		Daily:        DefaultDailyLimit,
		PerMinute:    DefaultMinuteLimit,
		SafetyBuffer: DefaultSafetyBuffer,
	}
}

// Capacity is the result of a pre-session capacity estimate.
type Capacity struct {
	CanProceed     bool
	CurrentUsage   int
	EstimatedCalls int
	Remaining      int
	Buffer         int
	Message        string
}

// UsageStats summarizes recent usage for reporting surfaces.
// RemainingToday is the usable remainder, net of the safety buffer.
type UsageStats struct {
	Today          *models.APIUsage
	RemainingToday int
	Recent         []*models.APIUsage
	Limits         Limits
}

// Governor gates every external API call. The clock and sleep functions
// are injectable so throttling is testable without real time passing.
// The daily counter lives in the store; the minute window is process
// local, matching the scope of the provider's burst limit.
type Governor struct {
	store  storage.Store
	limits Limits
	log    *logrus.Logger

	now   func() time.Time
	sleep func(time.Duration)

	lastRequest      time.Time
	minuteStart      time.Time
	requestsInMinute int
}

func NewGovernor(store storage.Store, limits Limits, log *logrus.Logger) *Governor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if limits.Daily <= 0 {
		limits.Daily = DefaultDailyLimit
	}
	if limits.PerMinute <= 0 {
		limits.PerMinute = DefaultMinuteLimit
	}
	return &Governor{
		store:  store,
		limits: limits,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// WithClock overrides the time source and sleep function.
func (g *Governor) WithClock(now func() time.Time, sleep func(time.Duration)) *Governor {
	g.now = now
	g.sleep = sleep
	return g
}

// MinInterval is the spacing Throttle enforces between requests.
func (g *Governor) MinInterval() time.Duration {
	return time.Minute / time.Duration(g.limits.PerMinute)
}

// CanMakeRequest reports whether one more external call fits inside both
// windows, with a human-readable reason either way.
func (g *Governor) CanMakeRequest(ctx context.Context) (bool, string, error) {
	day := g.now().Format(models.DateLayout)
	count, err := g.dailyCount(ctx, day)
	if err != nil {
		return false, "", err
	}

	remaining := g.limits.Daily - count - g.limits.SafetyBuffer
	if remaining <= 0 {
		return false, fmt.Sprintf("daily limit reached (%d/%d calls)", count, g.limits.Daily), nil
	}

	now := g.now()
	if g.minuteStart.IsZero() || now.Sub(g.minuteStart) >= time.Minute {
		g.minuteStart = now
		g.requestsInMinute = 0
	}
	if g.requestsInMinute >= g.limits.PerMinute {
		return false, fmt.Sprintf("minute limit reached (%d/%d calls)", g.requestsInMinute, g.limits.PerMinute), nil
	}

	return true, fmt.Sprintf("ok (%d/%d daily, %d/%d per minute)", count, g.limits.Daily, g.requestsInMinute, g.limits.PerMinute), nil
}

// Throttle blocks until the minimum inter-request spacing has elapsed,
// then counts the request against the minute window. Call immediately
// before the external request.
func (g *Governor) Throttle() {
	interval := g.MinInterval()
	if !g.lastRequest.IsZero() {
		elapsed := g.now().Sub(g.lastRequest)
		if elapsed < interval {
			wait := interval - elapsed
			g.log.WithField("wait", wait.Round(100*time.Millisecond)).Info("throttling before request")
			g.sleep(wait)
		}
	}
	g.lastRequest = g.now()
	g.requestsInMinute++
}

// RecordCall durably increments today's usage counter. The increment is
// a single atomic statement so concurrent sessions never race.
func (g *Governor) RecordCall(ctx context.Context) error {
	day := g.now().Format(models.DateLayout)
	if err := g.store.IncrementUsage(ctx, day); err != nil {
		return fmt.Errorf("record api call: %w", err)
	}
	return nil
}

// EstimateCapacity checks whether the anticipated trader*ticker fan-out
// fits in today's remaining quota, so a session can abort up-front
// instead of stalling mid-loop.
func (g *Governor) EstimateCapacity(ctx context.Context, tradersCount, tickersPerTrader int) (*Capacity, error) {
	day := g.now().Format(models.DateLayout)
	count, err := g.dailyCount(ctx, day)
	if err != nil {
		return nil, err
	}

	estimated := tradersCount * tickersPerTrader
	remaining := g.limits.Daily - count
	canProceed := estimated <= remaining-g.limits.SafetyBuffer

	verdict := "sufficient"
	if !canProceed {
		verdict = "insufficient"
	}
	return &Capacity{
		CanProceed:     canProceed,
		CurrentUsage:   count,
		EstimatedCalls: estimated,
		Remaining:      remaining,
		Buffer:         g.limits.SafetyBuffer,
		Message:        fmt.Sprintf("%s capacity: %d calls needed, %d remaining", verdict, estimated, remaining),
	}, nil
}

// Stats reports today's usage plus the last days of history.
func (g *Governor) Stats(ctx context.Context, days int) (*UsageStats, error) {
	now := g.now()
	today := now.Format(models.DateLayout)
	since := now.AddDate(0, 0, -days).Format(models.DateLayout)

	recent, err := g.store.UsageSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load usage history: %w", err)
	}

	stats := &UsageStats{
		Recent:         recent,
		Limits:         g.limits,
		RemainingToday: g.usableRemaining(0),
	}
	for _, u := range recent {
		if u.Date == today {
			stats.Today = u
			stats.RemainingToday = g.usableRemaining(u.CallCount)
		}
	}
	return stats, nil
}

func (g *Governor) usableRemaining(count int) int {
	remaining := g.limits.Daily - count - g.limits.SafetyBuffer
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *Governor) dailyCount(ctx context.Context, day string) (int, error) {
	usage, err := g.store.GetUsage(ctx, day)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load usage for %s: %w", day, err)
	}
	return usage.CallCount, nil
}
