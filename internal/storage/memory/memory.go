// Package memory is an in-memory storage.Store used by tests. Transact
// takes a snapshot of the whole state and restores it when the callback
// fails, giving the same all-or-nothing behavior as a real transaction.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/internal/storage"
	"github.com/vibetrade/papertrader/models"
)

type holdingKey struct {
	traderID int64
	ticker   string
}

type state struct {
	traders   map[int64]*models.Trader
	holdings  map[holdingKey]*models.Holding
	trades    []*models.Trade
	pool      map[string]*models.TickerPoolEntry
	rotations map[string]*models.TickerRotation
	prices    map[string]*models.TickerPrice
	usage     map[string]*models.APIUsage

	nextTraderID  int64
	nextHoldingID int64
	nextTradeID   int64
	nextPoolID    int64
}

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu sync.Mutex
	st *state

	// Now lets tests pin timestamps. Defaults to time.Now.
	Now func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: &state{
			traders:   map[int64]*models.Trader{},
			holdings:  map[holdingKey]*models.Holding{},
			pool:      map[string]*models.TickerPoolEntry{},
			rotations: map[string]*models.TickerRotation{},
			prices:    map[string]*models.TickerPrice{},
			usage:     map[string]*models.APIUsage{},
		},
		Now: time.Now,
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) ListTraders(ctx context.Context) ([]*models.Trader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Trader, 0, len(s.st.traders))
	for _, t := range s.st.traders {
		out = append(out, copyTrader(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveTradersByTimezone(ctx context.Context, timezone string) ([]*models.Trader, error) {
	all, _ := s.ListTraders(ctx)
	out := all[:0]
	for _, t := range all {
		if t.IsActive() && t.TradingTimezone == timezone {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetTrader(ctx context.Context, id int64) (*models.Trader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.traders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyTrader(t), nil
}

func (s *Store) CreateTrader(ctx context.Context, t *models.Trader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextTraderID++
	t.ID = s.st.nextTraderID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.st.traders[t.ID] = copyTrader(t)
	return nil
}

func (s *Store) UpdateTraderBalance(ctx context.Context, id int64, balance decimal.Decimal, lastTradeAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.traders[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.CurrentBalance = balance
	if lastTradeAt != nil {
		at := *lastTradeAt
		t.LastTradeAt = &at
	}
	return nil
}

func (s *Store) UpdateTraderWatchlist(ctx context.Context, t *models.Trader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.st.traders[t.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored.CustomWatchlist = append([]string(nil), t.CustomWatchlist...)
	stored.UseCustomWatchlist = t.UseCustomWatchlist
	stored.WatchlistSize = t.WatchlistSize
	return nil
}

func (s *Store) GetHolding(ctx context.Context, traderID int64, ticker string) (*models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.st.holdings[holdingKey{traderID, ticker}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *Store) ListHoldings(ctx context.Context, traderID int64) ([]*models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Holding
	for k, h := range s.st.holdings {
		if k.traderID == traderID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *Store) ListHeldTickers(ctx context.Context, traderID int64) ([]string, error) {
	holdings, _ := s.ListHoldings(ctx, traderID)
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, h.Ticker)
	}
	return out, nil
}

func (s *Store) DistinctHeldTickers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for k := range s.st.holdings {
		if !seen[k.ticker] {
			seen[k.ticker] = true
			out = append(out, k.ticker)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) UpsertHolding(ctx context.Context, h *models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holdingKey{h.TraderID, h.Ticker}
	if existing, ok := s.st.holdings[key]; ok {
		h.ID = existing.ID
		h.FirstPurchasedAt = existing.FirstPurchasedAt
	} else {
		s.st.nextHoldingID++
		h.ID = s.st.nextHoldingID
		if h.FirstPurchasedAt.IsZero() {
			h.FirstPurchasedAt = s.now()
		}
	}
	h.LastUpdatedAt = s.now()
	cp := *h
	s.st.holdings[key] = &cp
	return nil
}

func (s *Store) DeleteHolding(ctx context.Context, traderID int64, ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.holdings, holdingKey{traderID, ticker})
	return nil
}

func (s *Store) InsertTrade(ctx context.Context, t *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextTradeID++
	t.ID = s.st.nextTradeID
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = s.now()
	}
	cp := *t
	s.st.trades = append(s.st.trades, &cp)
	return nil
}

func (s *Store) ListTrades(ctx context.Context, traderID int64, limit int) ([]*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Trade
	for i := len(s.st.trades) - 1; i >= 0; i-- {
		t := s.st.trades[i]
		if traderID != 0 && t.TraderID != traderID {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpsertTickerPoolEntry(ctx context.Context, e *models.TickerPoolEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.Ticker + "|" + e.Timezone
	if existing, ok := s.st.pool[key]; ok {
		e.ID = existing.ID
	} else {
		s.st.nextPoolID++
		e.ID = s.st.nextPoolID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now()
		}
	}
	e.LastUpdated = s.now()
	cp := *e
	s.st.pool[key] = &cp
	return nil
}

func (s *Store) ListActivePool(ctx context.Context, timezone string) ([]*models.TickerPoolEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TickerPoolEntry
	for _, e := range s.st.pool {
		if e.IsActive && e.Timezone == timezone {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *Store) RecordRotation(ctx context.Context, ticker, timezone string, traderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticker + "|" + timezone + "|" + strconv.FormatInt(traderID, 10)
	r, ok := s.st.rotations[key]
	if !ok {
		r = &models.TickerRotation{Ticker: ticker, Timezone: timezone}
		if traderID != 0 {
			id := traderID
			r.TraderID = &id
		}
		s.st.rotations[key] = r
	}
	r.AnalysisCount++
	r.LastAnalyzedAt = s.now()
	return nil
}

func (s *Store) RotationHistory(ctx context.Context, timezone string, limit int) ([]*models.TickerRotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TickerRotation
	for _, r := range s.st.rotations {
		if timezone == "" || r.Timezone == timezone {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAnalyzedAt.After(out[j].LastAnalyzedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpsertTickerPrice(ctx context.Context, p *models.TickerPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	if cp.LastUpdated.IsZero() {
		cp.LastUpdated = s.now()
	}
	s.st.prices[p.Ticker] = &cp
	return nil
}

func (s *Store) GetTickerPrice(ctx context.Context, ticker string) (*models.TickerPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.prices[ticker]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) IncrementUsage(ctx context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.usage[day]
	if !ok {
		u = &models.APIUsage{Date: day, CreatedAt: s.now(), LastReset: s.now()}
		s.st.usage[day] = u
	}
	u.CallCount++
	return nil
}

func (s *Store) GetUsage(ctx context.Context, day string) (*models.APIUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.usage[day]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UsageSince(ctx context.Context, day string) ([]*models.APIUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIUsage
	for _, u := range s.st.usage {
		if u.Date >= day {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Transact snapshots the state, runs fn, and restores the snapshot when
// fn returns an error.
func (s *Store) Transact(ctx context.Context, fn func(storage.Store) error) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (st *state) clone() *state {
	cp := &state{
		traders:       make(map[int64]*models.Trader, len(st.traders)),
		holdings:      make(map[holdingKey]*models.Holding, len(st.holdings)),
		trades:        make([]*models.Trade, len(st.trades)),
		pool:          make(map[string]*models.TickerPoolEntry, len(st.pool)),
		rotations:     make(map[string]*models.TickerRotation, len(st.rotations)),
		prices:        make(map[string]*models.TickerPrice, len(st.prices)),
		usage:         make(map[string]*models.APIUsage, len(st.usage)),
		nextTraderID:  st.nextTraderID,
		nextHoldingID: st.nextHoldingID,
		nextTradeID:   st.nextTradeID,
		nextPoolID:    st.nextPoolID,
	}
	for k, v := range st.traders {
		cp.traders[k] = copyTrader(v)
	}
	for k, v := range st.holdings {
		h := *v
		cp.holdings[k] = &h
	}
	for i, v := range st.trades {
		t := *v
		cp.trades[i] = &t
	}
	for k, v := range st.pool {
		e := *v
		cp.pool[k] = &e
	}
	for k, v := range st.rotations {
		r := *v
		cp.rotations[k] = &r
	}
	for k, v := range st.prices {
		p := *v
		cp.prices[k] = &p
	}
	for k, v := range st.usage {
		u := *v
		cp.usage[k] = &u
	}
	return cp
}

func copyTrader(t *models.Trader) *models.Trader {
	cp := *t
	cp.CustomWatchlist = append([]string(nil), t.CustomWatchlist...)
	if t.LastTradeAt != nil {
		at := *t.LastTradeAt
		cp.LastTradeAt = &at
	}
	return &cp
}
