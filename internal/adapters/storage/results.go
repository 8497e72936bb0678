package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lethanhtung0208/stock/internal/domain"
)

const resultsSchema = `
-- Una fila por ejecución del backtester
CREATE TABLE IF NOT EXISTS simulation_runs (
    run_id       TEXT PRIMARY KEY,
    started_at   DATETIME NOT NULL,
    dates        INTEGER  NOT NULL,
    combinations INTEGER  NOT NULL
);

-- Resultado final de cada set por día
CREATE TABLE IF NOT EXISTS param_results (
    run_id             TEXT    NOT NULL,
    date               TEXT    NOT NULL,
    handle             INTEGER NOT NULL,
    param_key          TEXT    NOT NULL,
    params             TEXT    NOT NULL,
    balance            REAL    NOT NULL,
    profit             REAL    NOT NULL,
    real_profit        REAL    NOT NULL,
    max_profit         REAL    NOT NULL,
    max_profit_at      TEXT,
    real_max_profit    REAL    NOT NULL,
    real_max_profit_at TEXT,
    halted             INTEGER NOT NULL DEFAULT 0,
    trades             TEXT    NOT NULL DEFAULT '{}',
    PRIMARY KEY (run_id, date, handle)
);

-- Diario de operaciones, solo en modo single
CREATE TABLE IF NOT EXISTS run_transactions (
    tx_id   TEXT PRIMARY KEY,
    run_id  TEXT    NOT NULL,
    date    TEXT    NOT NULL,
    handle  INTEGER NOT NULL,
    at      TEXT    NOT NULL,
    ticker  INTEGER NOT NULL,
    kind    TEXT    NOT NULL,
    price   REAL    NOT NULL,
    qty     INTEGER NOT NULL,
    cash    REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_rank ON param_results(run_id, date, real_max_profit DESC);
`

// SaveRun registra el inicio de una ejecución.
func (s *SQLiteStorage) SaveRun(ctx context.Context, runID string, dates, combinations int) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO simulation_runs (run_id, started_at, dates, combinations) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC(), dates, combinations,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}
	return nil
}

// SaveDayResults persiste los resultados del día y, si los hay, las transacciones.
func (s *SQLiteStorage) SaveDayResults(ctx context.Context, report domain.DayReport) error {
	if len(report.Results) == 0 {
		return nil
	}
	date := report.Date.Format(time.DateOnly)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveDayResults: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO param_results
			(run_id, date, handle, param_key, params, balance, profit, real_profit,
			 max_profit, max_profit_at, real_max_profit, real_max_profit_at, halted, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveDayResults: prepare: %w", err)
	}
	defer stmt.Close()

	txStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO run_transactions
			(tx_id, run_id, date, handle, at, ticker, kind, price, qty, cash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveDayResults: prepare transactions: %w", err)
	}
	defer txStmt.Close()

	for _, r := range report.Results {
		params, err := json.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("storage.SaveDayResults: encode params %d: %w", r.Handle, err)
		}
		trades, err := json.Marshal(r.Trades)
		if err != nil {
			return fmt.Errorf("storage.SaveDayResults: encode trades %d: %w", r.Handle, err)
		}

		if _, err := stmt.ExecContext(ctx,
			report.RunID, date, r.Handle, r.Params.Key(), string(params),
			r.Balance, r.Profit, r.RealProfit,
			r.MaxProfit.Value, nullTime(r.MaxProfit.At),
			r.RealMaxProfit.Value, nullTime(r.RealMaxProfit.At),
			boolToInt(r.Halted), string(trades),
		); err != nil {
			return fmt.Errorf("storage.SaveDayResults: insert %d: %w", r.Handle, err)
		}

		for _, t := range r.Transactions {
			if _, err := txStmt.ExecContext(ctx,
				t.ID, report.RunID, date, r.Handle, t.At.Format(tsLayout),
				t.Ticker, string(t.Kind), t.Price, t.Qty, t.Cash,
			); err != nil {
				return fmt.Errorf("storage.SaveDayResults: insert transaction %s: %w", t.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveDayResults: commit: %w", err)
	}
	return nil
}

// GetDayResults devuelve los resultados guardados de un día, mejores primero.
// Las transacciones no se cargan.
func (s *SQLiteStorage) GetDayResults(ctx context.Context, runID string, date time.Time) ([]domain.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, params, balance, profit, real_profit,
		       max_profit, COALESCE(max_profit_at, ''),
		       real_max_profit, COALESCE(real_max_profit_at, ''),
		       halted, trades
		FROM param_results
		WHERE run_id = ? AND date = ?
		ORDER BY real_max_profit DESC, handle
	`, runID, date.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("storage.GetDayResults: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		var r domain.Result
		var params, trades, maxAt, realMaxAt string
		var halted int
		if err := rows.Scan(&r.Handle, &params, &r.Balance, &r.Profit, &r.RealProfit,
			&r.MaxProfit.Value, &maxAt, &r.RealMaxProfit.Value, &realMaxAt,
			&halted, &trades); err != nil {
			return nil, fmt.Errorf("storage.GetDayResults: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("storage.GetDayResults: decode params %d: %w", r.Handle, err)
		}
		if err := json.Unmarshal([]byte(trades), &r.Trades); err != nil {
			return nil, fmt.Errorf("storage.GetDayResults: decode trades %d: %w", r.Handle, err)
		}
		r.MaxProfit.At, _ = time.Parse(tsLayout, maxAt)
		r.RealMaxProfit.At, _ = time.Parse(tsLayout, realMaxAt)
		r.Halted = halted == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountTransactions cuenta las operaciones guardadas de una ejecución.
func (s *SQLiteStorage) CountTransactions(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM run_transactions WHERE run_id = ?`, runID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountTransactions: %w", err)
	}
	return n, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(tsLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
