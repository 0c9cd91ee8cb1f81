package quota

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/internal/storage/memory"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGovernor(t *testing.T, limits Limits) (*Governor, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	log := logrus.New()
	log.SetOutput(io.Discard)
	g := NewGovernor(store, limits, log).WithClock(clock.Now, clock.Sleep)
	return g, store, clock
}

func TestDailyLimitWithBuffer(t *testing.T) {
	g, _, _ := newTestGovernor(t, Limits{Daily: 25, PerMinute: 100, SafetyBuffer: 2})
	ctx := context.Background()

	// usable calls = 25 - 2 = 23
	for i := 0; i < 23; i++ {
		ok, reason, err := g.CanMakeRequest(ctx)
		if err != nil {
			t.Fatalf("CanMakeRequest: %v", err)
		}
		if !ok {
			t.Fatalf("call %d refused: %s", i, reason)
		}
		if err := g.RecordCall(ctx); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}

	ok, reason, err := g.CanMakeRequest(ctx)
	if err != nil {
		t.Fatalf("CanMakeRequest: %v", err)
	}
	if ok {
		t.Fatal("request allowed past the buffered daily limit")
	}
	if !strings.Contains(reason, "daily limit reached") {
		t.Fatalf("reason = %q", reason)
	}
}

func TestDailyCounterRollsOverAtMidnight(t *testing.T) {
	g, _, clock := newTestGovernor(t, Limits{Daily: 5, PerMinute: 100, SafetyBuffer: 2})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := g.RecordCall(ctx); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}
	if ok, _, _ := g.CanMakeRequest(ctx); ok {
		t.Fatal("expected exhaustion before midnight")
	}

	clock.Advance(24 * time.Hour)
	ok, reason, err := g.CanMakeRequest(ctx)
	if err != nil {
		t.Fatalf("CanMakeRequest: %v", err)
	}
	if !ok {
		t.Fatalf("new day should reset the daily count: %s", reason)
	}
}

func TestMinuteWindow(t *testing.T) {
	g, _, clock := newTestGovernor(t, Limits{Daily: 1000, PerMinute: 5, SafetyBuffer: 0})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, reason, err := g.CanMakeRequest(ctx)
		if err != nil {
			t.Fatalf("CanMakeRequest: %v", err)
		}
		if !ok {
			t.Fatalf("call %d refused: %s", i, reason)
		}
		g.requestsInMinute++ // simulate the throttle counting the request
	}

	ok, reason, _ := g.CanMakeRequest(ctx)
	if ok {
		t.Fatal("sixth call in the same minute allowed")
	}
	if !strings.Contains(reason, "minute limit reached") {
		t.Fatalf("reason = %q", reason)
	}

	clock.Advance(61 * time.Second)
	if ok, reason, _ := g.CanMakeRequest(ctx); !ok {
		t.Fatalf("window should reset after a minute: %s", reason)
	}
}

func TestThrottleSpacing(t *testing.T) {
	g, _, clock := newTestGovernor(t, Limits{Daily: 1000, PerMinute: 5, SafetyBuffer: 0})

	// first request never sleeps
	g.Throttle()
	if len(clock.slept) != 0 {
		t.Fatalf("first request slept %v", clock.slept)
	}

	// immediate second request waits the full 12s interval
	g.Throttle()
	if len(clock.slept) != 1 || clock.slept[0] != 12*time.Second {
		t.Fatalf("slept %v, want one 12s wait", clock.slept)
	}

	// a request after 7s only waits the 5s difference
	clock.Advance(7 * time.Second)
	g.Throttle()
	if len(clock.slept) != 2 || clock.slept[1] != 5*time.Second {
		t.Fatalf("slept %v, want a 5s wait", clock.slept)
	}

	// no sleep needed once the interval has fully elapsed
	clock.Advance(13 * time.Second)
	g.Throttle()
	if len(clock.slept) != 2 {
		t.Fatalf("slept %v, want no extra wait", clock.slept)
	}
}

func TestEstimateCapacity(t *testing.T) {
	g, _, _ := newTestGovernor(t, Limits{Daily: 25, PerMinute: 5, SafetyBuffer: 2})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := g.RecordCall(ctx); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}

	// remaining 15, buffer 2 -> at most 13 estimated calls fit
	cap13, err := g.EstimateCapacity(ctx, 1, 13)
	if err != nil {
		t.Fatalf("EstimateCapacity: %v", err)
	}
	if !cap13.CanProceed {
		t.Fatalf("13 calls should fit: %+v", cap13)
	}

	cap14, err := g.EstimateCapacity(ctx, 2, 7)
	if err != nil {
		t.Fatalf("EstimateCapacity: %v", err)
	}
	if cap14.CanProceed {
		t.Fatalf("14 calls should not fit: %+v", cap14)
	}
	if cap14.Remaining != 15 || cap14.EstimatedCalls != 14 {
		t.Fatalf("capacity = %+v", cap14)
	}
}

func TestStats(t *testing.T) {
	g, store, clock := newTestGovernor(t, DefaultLimits())
	ctx := context.Background()

	// two calls yesterday, three today
	clock.Advance(-24 * time.Hour)
	yesterday := clock.Now().Format("2006-01-02")
	store.IncrementUsage(ctx, yesterday)
	store.IncrementUsage(ctx, yesterday)
	clock.Advance(24 * time.Hour)
	for i := 0; i < 3; i++ {
		if err := g.RecordCall(ctx); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}

	stats, err := g.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Today == nil || stats.Today.CallCount != 3 {
		t.Fatalf("today = %+v", stats.Today)
	}
	// usable remainder is net of the safety buffer
	if want := DefaultDailyLimit - 3 - DefaultSafetyBuffer; stats.RemainingToday != want {
		t.Fatalf("remaining = %d, want %d", stats.RemainingToday, want)
	}
	if len(stats.Recent) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(stats.Recent))
	}
}

func TestStatsRemainingNetOfBuffer(t *testing.T) {
	g, _, _ := newTestGovernor(t, Limits{Daily: 10, PerMinute: 100, SafetyBuffer: 3})
	ctx := context.Background()

	stats, err := g.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RemainingToday != 7 {
		t.Fatalf("untouched day remaining = %d, want 7", stats.RemainingToday)
	}

	// burn past the usable limit; the remainder clamps at zero
	for i := 0; i < 9; i++ {
		if err := g.RecordCall(ctx); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}
	stats, err = g.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RemainingToday != 0 {
		t.Fatalf("remaining = %d, want 0", stats.RemainingToday)
	}
}
