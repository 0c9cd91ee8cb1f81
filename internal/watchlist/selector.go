// Package watchlist picks the tickers a trader analyzes in a session:
// every open position first, then a random discovery sample from either
// the trader's custom list or the shared timezone pool.
package watchlist

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/internal/storage"
	"github.com/vibetrade/papertrader/models"
)

// DefaultDiscoveryLimit is used when a trader has no watchlist size set.
const DefaultDiscoveryLimit = 6

// Selector draws per-session watchlists. The random source is injectable
// so tests are deterministic.
type Selector struct {
	log *logrus.Logger
	rng *rand.Rand
}

func New(log *logrus.Logger) *Selector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Selector{
		log: log,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand overrides the random source.
func (s *Selector) WithRand(rng *rand.Rand) *Selector {
	s.rng = rng
	return s
}

// PriorityTickers returns the tickers to analyze for one trader.
// Held tickers are always included regardless of the discovery limit;
// discovery tickers are sampled without replacement and each sampled
// ticker gets a rotation entry. An empty discovery source just yields
// the held tickers.
func (s *Selector) PriorityTickers(ctx context.Context, store storage.Store, trader *models.Trader, timezone string) ([]string, error) {
	held, err := store.ListHeldTickers(ctx, trader.ID)
	if err != nil {
		return nil, fmt.Errorf("list held tickers: %w", err)
	}
	heldSet := make(map[string]bool, len(held))
	for _, t := range held {
		heldSet[t] = true
	}

	limit := trader.WatchlistSize
	if limit <= 0 {
		limit = DefaultDiscoveryLimit
	}

	var candidates []string
	if trader.UseCustomWatchlist && len(trader.CustomWatchlist) > 0 {
		for _, t := range trader.CustomWatchlist {
			if !heldSet[t] {
				candidates = append(candidates, t)
			}
		}
		s.log.WithFields(logrus.Fields{"trader": trader.Name, "candidates": len(candidates)}).
			Debug("sampling from custom watchlist")
	} else {
		pool, err := store.ListActivePool(ctx, timezone)
		if err != nil {
			return nil, fmt.Errorf("list ticker pool: %w", err)
		}
		for _, e := range pool {
			if !heldSet[e.Ticker] {
				candidates = append(candidates, e.Ticker)
			}
		}
		s.log.WithFields(logrus.Fields{"trader": trader.Name, "timezone": timezone, "candidates": len(candidates)}).
			Debug("sampling from timezone pool")
	}

	discovery := s.sample(candidates, limit)
	for _, t := range discovery {
		if err := store.RecordRotation(ctx, t, timezone, trader.ID); err != nil {
			return nil, fmt.Errorf("record rotation for %s: %w", t, err)
		}
	}

	out := append(append([]string(nil), held...), discovery...)
	s.log.WithFields(logrus.Fields{
		"trader":    trader.Name,
		"portfolio": len(held),
		"discovery": len(discovery),
	}).Info("watchlist selected")
	return out, nil
}

func (s *Selector) sample(candidates []string, limit int) []string {
	if len(candidates) == 0 || limit <= 0 {
		return nil
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}
	idx := s.rng.Perm(len(candidates))[:limit]
	out := make([]string, 0, limit)
	for _, i := range idx {
		out = append(out, candidates[i])
	}
	return out
}

// SetCustom replaces a trader's custom watchlist, normalizing symbols to
// upper case and dropping duplicates, and enables custom selection.
func (s *Selector) SetCustom(ctx context.Context, store storage.Store, trader *models.Trader, tickers []string) error {
	seen := map[string]bool{}
	var cleaned []string
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	sort.Strings(cleaned)

	trader.CustomWatchlist = cleaned
	trader.UseCustomWatchlist = true
	if err := store.UpdateTraderWatchlist(ctx, trader); err != nil {
		return fmt.Errorf("update watchlist: %w", err)
	}
	s.log.WithFields(logrus.Fields{"trader": trader.Name, "tickers": len(cleaned)}).
		Info("custom watchlist set")
	return nil
}

// ClearCustom removes the custom watchlist and reverts the trader to the
// timezone pool.
func (s *Selector) ClearCustom(ctx context.Context, store storage.Store, trader *models.Trader) error {
	trader.CustomWatchlist = nil
	trader.UseCustomWatchlist = false
	if err := store.UpdateTraderWatchlist(ctx, trader); err != nil {
		return fmt.Errorf("update watchlist: %w", err)
	}
	s.log.WithField("trader", trader.Name).Info("custom watchlist cleared")
	return nil
}
