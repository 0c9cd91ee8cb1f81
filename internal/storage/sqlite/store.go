// Package sqlite is the durable storage.Store backed by SQLite. Currency
// values are stored as decimal strings, never floats, so balances survive
// round trips exactly.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/internal/storage"
	"github.com/vibetrade/papertrader/models"
	"github.com/vibetrade/papertrader/pkg/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query method
// works inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB // nil for transaction-scoped stores
	q  dbtx
}

var _ storage.Store = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, q: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS traders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    trading_ethos TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    initial_balance TEXT NOT NULL,
    current_balance TEXT NOT NULL,
    risk_tolerance TEXT NOT NULL DEFAULT 'medium',
    trading_timezone TEXT NOT NULL,
    custom_watchlist TEXT,
    watchlist_size INTEGER NOT NULL DEFAULT 6,
    use_custom_watchlist INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_trade_at DATETIME
);

CREATE TABLE IF NOT EXISTS portfolio (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trader_id INTEGER NOT NULL REFERENCES traders(id) ON DELETE CASCADE,
    ticker TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    average_price TEXT NOT NULL,
    total_cost TEXT NOT NULL,
    first_purchased_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(trader_id, ticker)
);

CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trader_id INTEGER NOT NULL REFERENCES traders(id) ON DELETE CASCADE,
    ticker TEXT NOT NULL,
    action TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    price TEXT NOT NULL,
    total_amount TEXT NOT NULL,
    balance_after TEXT NOT NULL,
    rsi REAL,
    macd REAL,
    sma_20 REAL,
    sma_50 REAL,
    recommendation TEXT,
    confidence INTEGER NOT NULL DEFAULT 50,
    notes TEXT,
    executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_trader_executed ON trades(trader_id, executed_at);

CREATE TABLE IF NOT EXISTS ticker_prices (
    ticker TEXT PRIMARY KEY,
    current_price TEXT NOT NULL,
    last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ticker_pool (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    name TEXT,
    exchange TEXT NOT NULL,
    timezone TEXT NOT NULL,
    sector TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    source TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(ticker, timezone)
);

CREATE TABLE IF NOT EXISTS ticker_rotation (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    timezone TEXT NOT NULL,
    trader_id INTEGER,
    last_analyzed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    analysis_count INTEGER NOT NULL DEFAULT 0,
    UNIQUE(ticker, timezone, trader_id)
);

CREATE TABLE IF NOT EXISTS api_usage (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL UNIQUE,
    call_count INTEGER NOT NULL DEFAULT 0,
    last_reset DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Transact runs fn inside a transaction. Nested calls reuse the current
// transaction rather than opening a second one.
func (s *Store) Transact(ctx context.Context, fn func(storage.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const traderColumns = `id, name, trading_ethos, status, initial_balance, current_balance,
risk_tolerance, trading_timezone, custom_watchlist, watchlist_size, use_custom_watchlist,
created_at, last_trade_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrader(row rowScanner) (*models.Trader, error) {
	var (
		t             models.Trader
		ethos         sql.NullString
		initial       string
		current       string
		watchlistJSON sql.NullString
		lastTradeAt   sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &ethos, &t.Status, &initial, &current,
		&t.RiskTolerance, &t.TradingTimezone, &watchlistJSON, &t.WatchlistSize,
		&t.UseCustomWatchlist, &t.CreatedAt, &lastTradeAt)
	if err != nil {
		return nil, err
	}
	t.TradingEthos = ethos.String
	if t.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("parse initial balance: %w", err)
	}
	if t.CurrentBalance, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parse current balance: %w", err)
	}
	if watchlistJSON.Valid && watchlistJSON.String != "" {
		if err := json.Unmarshal([]byte(watchlistJSON.String), &t.CustomWatchlist); err != nil {
			return nil, fmt.Errorf("parse custom watchlist: %w", err)
		}
	}
	if lastTradeAt.Valid {
		at := lastTradeAt.Time
		t.LastTradeAt = &at
	}
	return &t, nil
}

func (s *Store) ListTraders(ctx context.Context) ([]*models.Trader, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+traderColumns+` FROM traders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list traders: %w", err)
	}
	defer rows.Close()
	return collectTraders(rows)
}

func (s *Store) ListActiveTradersByTimezone(ctx context.Context, timezone string) ([]*models.Trader, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT `+traderColumns+` FROM traders
WHERE status = 'active' AND trading_timezone = ?
ORDER BY id
`, timezone)
	if err != nil {
		return nil, fmt.Errorf("list active traders: %w", err)
	}
	defer rows.Close()
	return collectTraders(rows)
}

func collectTraders(rows *sql.Rows) ([]*models.Trader, error) {
	var out []*models.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trader: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTrader(ctx context.Context, id int64) (*models.Trader, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+traderColumns+` FROM traders WHERE id = ?`, id)
	t, err := scanTrader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trader %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) CreateTrader(ctx context.Context, t *models.Trader) error {
	watchlistJSON, err := marshalWatchlist(t.CustomWatchlist)
	if err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = models.TraderActive
	}
	res, err := s.q.ExecContext(ctx, `
INSERT INTO traders (name, trading_ethos, status, initial_balance, current_balance,
    risk_tolerance, trading_timezone, custom_watchlist, watchlist_size,
    use_custom_watchlist, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, t.Name, t.TradingEthos, t.Status, t.InitialBalance.String(), t.CurrentBalance.String(),
		t.RiskTolerance, t.TradingTimezone, watchlistJSON, t.WatchlistSize,
		t.UseCustomWatchlist, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trader: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("trader id: %w", err)
	}
	return nil
}

func (s *Store) UpdateTraderBalance(ctx context.Context, id int64, balance decimal.Decimal, lastTradeAt *time.Time) error {
	var res sql.Result
	var err error
	if lastTradeAt != nil {
		res, err = s.q.ExecContext(ctx, `
UPDATE traders SET current_balance = ?, last_trade_at = ? WHERE id = ?
`, balance.String(), lastTradeAt.UTC(), id)
	} else {
		res, err = s.q.ExecContext(ctx, `
UPDATE traders SET current_balance = ? WHERE id = ?
`, balance.String(), id)
	}
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateTraderWatchlist(ctx context.Context, t *models.Trader) error {
	watchlistJSON, err := marshalWatchlist(t.CustomWatchlist)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
UPDATE traders SET custom_watchlist = ?, use_custom_watchlist = ?, watchlist_size = ?
WHERE id = ?
`, watchlistJSON, t.UseCustomWatchlist, t.WatchlistSize, t.ID)
	if err != nil {
		return fmt.Errorf("update watchlist: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func marshalWatchlist(tickers []string) (any, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tickers)
	if err != nil {
		return nil, fmt.Errorf("marshal watchlist: %w", err)
	}
	return string(data), nil
}

const holdingColumns = `id, trader_id, ticker, quantity, average_price, total_cost,
first_purchased_at, last_updated_at`

func scanHolding(row rowScanner) (*models.Holding, error) {
	var (
		h     models.Holding
		avg   string
		total string
	)
	err := row.Scan(&h.ID, &h.TraderID, &h.Ticker, &h.Quantity, &avg, &total,
		&h.FirstPurchasedAt, &h.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	if h.AveragePrice, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("parse average price: %w", err)
	}
	if h.TotalCost, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total cost: %w", err)
	}
	return &h, nil
}

func (s *Store) GetHolding(ctx context.Context, traderID int64, ticker string) (*models.Holding, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT `+holdingColumns+` FROM portfolio WHERE trader_id = ? AND ticker = ?
`, traderID, ticker)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s: %w", ticker, err)
	}
	return h, nil
}

func (s *Store) ListHoldings(ctx context.Context, traderID int64) ([]*models.Holding, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT `+holdingColumns+` FROM portfolio WHERE trader_id = ? ORDER BY ticker
`, traderID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []*models.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) ListHeldTickers(ctx context.Context, traderID int64) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT ticker FROM portfolio WHERE trader_id = ? AND quantity > 0 ORDER BY ticker
`, traderID)
	if err != nil {
		return nil, fmt.Errorf("list held tickers: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (s *Store) DistinctHeldTickers(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT DISTINCT ticker FROM portfolio WHERE quantity > 0 ORDER BY ticker
`)
	if err != nil {
		return nil, fmt.Errorf("distinct held tickers: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *Store) UpsertHolding(ctx context.Context, h *models.Holding) error {
	if h.FirstPurchasedAt.IsZero() {
		h.FirstPurchasedAt = time.Now().UTC()
	}
	h.LastUpdatedAt = time.Now().UTC()
	_, err := s.q.ExecContext(ctx, `
INSERT INTO portfolio (trader_id, ticker, quantity, average_price, total_cost,
    first_purchased_at, last_updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(trader_id, ticker) DO UPDATE SET
    quantity = excluded.quantity,
    average_price = excluded.average_price,
    total_cost = excluded.total_cost,
    last_updated_at = excluded.last_updated_at
`, h.TraderID, h.Ticker, h.Quantity, h.AveragePrice.String(), h.TotalCost.String(),
		h.FirstPurchasedAt, h.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", h.Ticker, err)
	}
	return nil
}

func (s *Store) DeleteHolding(ctx context.Context, traderID int64, ticker string) error {
	_, err := s.q.ExecContext(ctx, `
DELETE FROM portfolio WHERE trader_id = ? AND ticker = ?
`, traderID, ticker)
	if err != nil {
		return fmt.Errorf("delete holding %s: %w", ticker, err)
	}
	return nil
}

func (s *Store) InsertTrade(ctx context.Context, t *models.Trade) error {
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
INSERT INTO trades (trader_id, ticker, action, quantity, price, total_amount,
    balance_after, rsi, macd, sma_20, sma_50, recommendation, confidence, notes, executed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, t.TraderID, t.Ticker, t.Action, t.Quantity, t.Price.String(), t.TotalAmount.String(),
		t.BalanceAfter.String(), nullFloat(t.RSI), nullFloat(t.MACD), nullFloat(t.SMA20),
		nullFloat(t.SMA50), t.Recommendation, t.Confidence, t.Notes, t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("trade id: %w", err)
	}
	return nil
}

func (s *Store) ListTrades(ctx context.Context, traderID int64, limit int) ([]*models.Trade, error) {
	query := `
SELECT id, trader_id, ticker, action, quantity, price, total_amount, balance_after,
    rsi, macd, sma_20, sma_50, recommendation, confidence, notes, executed_at
FROM trades`
	var args []any
	if traderID != 0 {
		query += ` WHERE trader_id = ?`
		args = append(args, traderID)
	}
	query += ` ORDER BY executed_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		var (
			t                       models.Trade
			price, total, balance   string
			rsi, macd, sma20, sma50 sql.NullFloat64
			recommendation, notes   sql.NullString
		)
		err := rows.Scan(&t.ID, &t.TraderID, &t.Ticker, &t.Action, &t.Quantity,
			&price, &total, &balance, &rsi, &macd, &sma20, &sma50,
			&recommendation, &t.Confidence, &notes, &t.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse trade price: %w", err)
		}
		if t.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse trade total: %w", err)
		}
		if t.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse trade balance: %w", err)
		}
		t.RSI = floatPtr(rsi)
		t.MACD = floatPtr(macd)
		t.SMA20 = floatPtr(sma20)
		t.SMA50 = floatPtr(sma50)
		t.Recommendation = recommendation.String
		t.Notes = notes.String
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) UpsertTickerPoolEntry(ctx context.Context, e *models.TickerPoolEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.LastUpdated = time.Now().UTC()
	_, err := s.q.ExecContext(ctx, `
INSERT INTO ticker_pool (ticker, name, exchange, timezone, sector, is_active, source,
    created_at, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(ticker, timezone) DO UPDATE SET
    name = excluded.name,
    exchange = excluded.exchange,
    sector = excluded.sector,
    is_active = excluded.is_active,
    source = excluded.source,
    last_updated = excluded.last_updated
`, e.Ticker, e.Name, e.Exchange, e.Timezone, e.Sector, e.IsActive, e.Source,
		e.CreatedAt, e.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert pool entry %s: %w", e.Ticker, err)
	}
	return nil
}

func (s *Store) ListActivePool(ctx context.Context, timezone string) ([]*models.TickerPoolEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT id, ticker, name, exchange, timezone, sector, is_active, source, created_at, last_updated
FROM ticker_pool
WHERE timezone = ? AND is_active = 1
ORDER BY ticker
`, timezone)
	if err != nil {
		return nil, fmt.Errorf("list ticker pool: %w", err)
	}
	defer rows.Close()

	var out []*models.TickerPoolEntry
	for rows.Next() {
		var (
			e            models.TickerPoolEntry
			name, sector sql.NullString
			source       sql.NullString
		)
		err := rows.Scan(&e.ID, &e.Ticker, &name, &e.Exchange, &e.Timezone, &sector,
			&e.IsActive, &source, &e.CreatedAt, &e.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("scan pool entry: %w", err)
		}
		e.Name = name.String
		e.Sector = sector.String
		e.Source = source.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) RecordRotation(ctx context.Context, ticker, timezone string, traderID int64) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO ticker_rotation (ticker, timezone, trader_id, last_analyzed_at, analysis_count)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT(ticker, timezone, trader_id) DO UPDATE SET
    analysis_count = analysis_count + 1,
    last_analyzed_at = excluded.last_analyzed_at
`, ticker, timezone, traderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record rotation %s: %w", ticker, err)
	}
	return nil
}

func (s *Store) RotationHistory(ctx context.Context, timezone string, limit int) ([]*models.TickerRotation, error) {
	query := `
SELECT id, ticker, timezone, trader_id, last_analyzed_at, analysis_count
FROM ticker_rotation`
	var args []any
	if timezone != "" {
		query += ` WHERE timezone = ?`
		args = append(args, timezone)
	}
	query += ` ORDER BY last_analyzed_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rotation history: %w", err)
	}
	defer rows.Close()

	var out []*models.TickerRotation
	for rows.Next() {
		var (
			r        models.TickerRotation
			traderID sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.Timezone, &traderID, &r.LastAnalyzedAt, &r.AnalysisCount); err != nil {
			return nil, fmt.Errorf("scan rotation: %w", err)
		}
		if traderID.Valid {
			id := traderID.Int64
			r.TraderID = &id
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertTickerPrice(ctx context.Context, p *models.TickerPrice) error {
	if p.LastUpdated.IsZero() {
		p.LastUpdated = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
INSERT INTO ticker_prices (ticker, current_price, last_updated)
VALUES (?, ?, ?)
ON CONFLICT(ticker) DO UPDATE SET
    current_price = excluded.current_price,
    last_updated = excluded.last_updated
`, p.Ticker, p.CurrentPrice.String(), p.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert ticker price %s: %w", p.Ticker, err)
	}
	return nil
}

func (s *Store) GetTickerPrice(ctx context.Context, ticker string) (*models.TickerPrice, error) {
	var (
		p     models.TickerPrice
		price string
	)
	err := s.q.QueryRowContext(ctx, `
SELECT ticker, current_price, last_updated FROM ticker_prices WHERE ticker = ?
`, ticker).Scan(&p.Ticker, &price, &p.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticker price %s: %w", ticker, err)
	}
	if p.CurrentPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse ticker price: %w", err)
	}
	return &p, nil
}

// IncrementUsage bumps the daily counter in one statement so two
// concurrent sessions cannot lose an increment.
func (s *Store) IncrementUsage(ctx context.Context, day string) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO api_usage (date, call_count, last_reset, created_at)
VALUES (?, 1, ?, ?)
ON CONFLICT(date) DO UPDATE SET call_count = call_count + 1
`, day, time.Now().UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment usage %s: %w", day, err)
	}
	return nil
}

func (s *Store) GetUsage(ctx context.Context, day string) (*models.APIUsage, error) {
	var u models.APIUsage
	err := s.q.QueryRowContext(ctx, `
SELECT id, date, call_count, last_reset, created_at FROM api_usage WHERE date = ?
`, day).Scan(&u.ID, &u.Date, &u.CallCount, &u.LastReset, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get usage %s: %w", day, err)
	}
	return &u, nil
}

func (s *Store) UsageSince(ctx context.Context, day string) ([]*models.APIUsage, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT id, date, call_count, last_reset, created_at FROM api_usage
WHERE date >= ? ORDER BY date
`, day)
	if err != nil {
		return nil, fmt.Errorf("usage since %s: %w", day, err)
	}
	defer rows.Close()

	var out []*models.APIUsage
	for rows.Next() {
		var u models.APIUsage
		if err := rows.Scan(&u.ID, &u.Date, &u.CallCount, &u.LastReset, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
