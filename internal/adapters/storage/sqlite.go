package storage

// sqlite.go — datos de mercado para el backtest.
//
// Tablas de entrada:
//   - `tickers`: universo (ticker_id → código).
//   - `market_snapshots`: una fila por ticker y timestamp de la sesión.
//     ts es texto "YYYY-MM-DD HH:MM:SS" en hora local del mercado.
//   - `historical_data`: cierre diario por ticker, para los extremos.
//
// Los extremos se memorizan por (ticker, día, ventana): dentro de un día
// la ventana no cambia, así que cada combinación va a la DB una sola vez
// y el rate limiter solo frena los misses.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lethanhtung0208/stock/internal/domain"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickers (
    ticker_id INTEGER PRIMARY KEY,
    code      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS market_snapshots (
    ts                 TEXT    NOT NULL,
    ticker_id          INTEGER NOT NULL,
    current_price      REAL    NOT NULL DEFAULT 0,
    volume             REAL    NOT NULL DEFAULT 0,
    ask_quantity_total REAL    NOT NULL DEFAULT 0,
    bid_quantity_total REAL    NOT NULL DEFAULT 0,
    ask_price          REAL    NOT NULL DEFAULT 0,
    bid_price          REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (ts, ticker_id)
);

CREATE TABLE IF NOT EXISTS historical_data (
    ticker_id INTEGER NOT NULL,
    date      TEXT    NOT NULL,
    close     REAL    NOT NULL,
    PRIMARY KEY (ticker_id, date)
);
` + resultsSchema

const tsLayout = time.DateTime // "2006-01-02 15:04:05"

// extremeKey identifica una ventana de cierres.
type extremeKey struct {
	ticker int
	asOf   string
	days   int
}

// closeRange es el máximo y mínimo de cierre de una ventana. ok=false si no hay datos.
type closeRange struct {
	max, min float64
	ok       bool
}

// SQLiteStorage implementa los puertos de datos de mercado y de resultados
// usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db      *sql.DB
	limiter *rate.Limiter

	mu       sync.Mutex
	extremes map[extremeKey]closeRange
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{
		db:       db,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		extremes: make(map[extremeKey]closeRange),
	}, nil
}

// LimitExtremes limita las consultas de extremos que llegan a la DB.
// qps <= 0 las deja sin límite. Se llama antes de empezar a simular.
func (s *SQLiteStorage) LimitExtremes(qps float64) {
	if qps <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(qps), max(1, int(qps)))
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// FetchTickers devuelve el universo completo, ordenado.
func (s *SQLiteStorage) FetchTickers(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker_id FROM tickers ORDER BY ticker_id`)
	if err != nil {
		return nil, fmt.Errorf("storage.FetchTickers: query: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.FetchTickers: scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchSnapshot devuelve las filas del instante at. Si tickers no está
// vacío, solo se incluyen esos. Un instante sin filas da un snapshot vacío.
func (s *SQLiteStorage) FetchSnapshot(ctx context.Context, tickers []int, at time.Time) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker_id, current_price, volume, ask_quantity_total,
		       bid_quantity_total, ask_price, bid_price
		FROM market_snapshots
		WHERE ts = ?
	`, at.Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("storage.FetchSnapshot: query %s: %w", at.Format(tsLayout), err)
	}
	defer rows.Close()

	var wanted map[int]bool
	if len(tickers) > 0 {
		wanted = make(map[int]bool, len(tickers))
		for _, t := range tickers {
			wanted[t] = true
		}
	}

	snap := make(domain.Snapshot)
	for rows.Next() {
		var id int
		var m domain.Metrics
		if err := rows.Scan(&id, &m.CurrentPrice, &m.Volume, &m.AskQtyTotal,
			&m.BidQtyTotal, &m.AskPrice, &m.BidPrice); err != nil {
			return nil, fmt.Errorf("storage.FetchSnapshot: scan row: %w", err)
		}
		if wanted != nil && !wanted[id] {
			continue
		}
		snap[id] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.FetchSnapshot: %w", err)
	}
	return snap, nil
}

// IsHighest: price ≥ max(close) × (1 − threshold) en los últimos days días
// naturales, asOf incluido. Sin datos devuelve false.
func (s *SQLiteStorage) IsHighest(ctx context.Context, ticker int, price float64, asOf time.Time, days int, threshold float64) (bool, error) {
	r, err := s.closeRange(ctx, ticker, asOf, days)
	if err != nil {
		return false, fmt.Errorf("storage.IsHighest: %w", err)
	}
	return r.ok && price >= r.max*(1-threshold), nil
}

// IsLowest: price ≤ min(close) × (1 + threshold) en la misma ventana.
func (s *SQLiteStorage) IsLowest(ctx context.Context, ticker int, price float64, asOf time.Time, days int, threshold float64) (bool, error) {
	r, err := s.closeRange(ctx, ticker, asOf, days)
	if err != nil {
		return false, fmt.Errorf("storage.IsLowest: %w", err)
	}
	return r.ok && price <= r.min*(1+threshold), nil
}

func (s *SQLiteStorage) closeRange(ctx context.Context, ticker int, asOf time.Time, days int) (closeRange, error) {
	key := extremeKey{ticker: ticker, asOf: asOf.Format(time.DateOnly), days: days}

	s.mu.Lock()
	r, ok := s.extremes[key]
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return closeRange{}, fmt.Errorf("rate limit: %w", err)
	}

	from := asOf.AddDate(0, 0, -days).Format(time.DateOnly)
	var hi, lo sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(close), MIN(close)
		FROM historical_data
		WHERE ticker_id = ? AND date >= ? AND date <= ?
	`, ticker, from, key.asOf).Scan(&hi, &lo)
	if err != nil {
		return closeRange{}, fmt.Errorf("ticker %d: %w", ticker, err)
	}

	r = closeRange{max: hi.Float64, min: lo.Float64, ok: hi.Valid && lo.Valid}
	s.mu.Lock()
	s.extremes[key] = r
	s.mu.Unlock()
	return r, nil
}

// --- carga de datos (importadores y tests) ---

// SaveTicker registra un ticker en el universo.
func (s *SQLiteStorage) SaveTicker(ctx context.Context, id int, code string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tickers (ticker_id, code) VALUES (?, ?)
		 ON CONFLICT(ticker_id) DO UPDATE SET code = excluded.code`,
		id, code,
	); err != nil {
		return fmt.Errorf("storage.SaveTicker: %d: %w", id, err)
	}
	return nil
}

// SaveSnapshot guarda (o reemplaza) las filas de un instante en una transacción.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, at time.Time, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO market_snapshots
			(ts, ticker_id, current_price, volume, ask_quantity_total,
			 bid_quantity_total, ask_price, bid_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: prepare: %w", err)
	}
	defer stmt.Close()

	ts := at.Format(tsLayout)
	for id, m := range snap {
		if _, err := stmt.ExecContext(ctx, ts, id, m.CurrentPrice, m.Volume,
			m.AskQtyTotal, m.BidQtyTotal, m.AskPrice, m.BidPrice); err != nil {
			return fmt.Errorf("storage.SaveSnapshot: insert %d@%s: %w", id, ts, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: commit: %w", err)
	}
	return nil
}

// SaveHistoricalClose guarda el cierre diario de un ticker.
func (s *SQLiteStorage) SaveHistoricalClose(ctx context.Context, ticker int, date time.Time, close float64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO historical_data (ticker_id, date, close) VALUES (?, ?, ?)`,
		ticker, date.Format(time.DateOnly), close,
	); err != nil {
		return fmt.Errorf("storage.SaveHistoricalClose: %d: %w", ticker, err)
	}
	return nil
}
