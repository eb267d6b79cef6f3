package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stocks (
	symbol     TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	symbol     TEXT NOT NULL REFERENCES stocks(symbol),
	period     TEXT NOT NULL,
	metrics    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (symbol, period)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	framework  TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol, period DESC);
CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertStock(ctx context.Context, stock model.Stock) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stocks (symbol, name, industry, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, industry = excluded.industry, updated_at = excluded.updated_at`,
		stock.Symbol, stock.Name, stock.Industry, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert stock %s", stock.Symbol)
}

func (s *SQLiteStore) GetStock(ctx context.Context, symbol string) (*model.Stock, error) {
	var st model.Stock
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, name, industry FROM stocks WHERE symbol = ?`, symbol,
	).Scan(&st.Symbol, &st.Name, &st.Industry)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("stock not found: %s", symbol)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get stock %s", symbol)
	}
	return &st, nil
}

func (s *SQLiteStore) ListStocks(ctx context.Context) ([]model.Stock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, name, industry FROM stocks ORDER BY symbol`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stocks")
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		var st model.Stock
		if err := rows.Scan(&st.Symbol, &st.Name, &st.Industry); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stock")
		}
		stocks = append(stocks, st)
	}
	return stocks, eris.Wrap(rows.Err(), "sqlite: list stocks iterate")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, symbol, period string, snap metrics.Snapshot) error {
	metricsJSON, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (symbol, period, metrics, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol, period) DO UPDATE SET metrics = excluded.metrics, created_at = excluded.created_at`,
		symbol, period, string(metricsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save snapshot %s/%s", symbol, period)
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, symbol, period string) (*model.SnapshotRecord, error) {
	var rec model.SnapshotRecord
	var metricsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, period, metrics, created_at FROM snapshots WHERE symbol = ? AND period = ?`,
		symbol, period,
	).Scan(&rec.Symbol, &rec.Period, &metricsJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("snapshot not found: %s/%s", symbol, period)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s/%s", symbol, period)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
	}
	return &rec, nil
}

func (s *SQLiteStore) History(ctx context.Context, symbol string, limit int) (metrics.History, error) {
	query := `SELECT metrics FROM snapshots WHERE symbol = ? ORDER BY period DESC`
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history %s", symbol)
	}
	defer rows.Close()

	var history metrics.History
	for rows.Next() {
		var metricsJSON string
		if err := rows.Scan(&metricsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		var snap metrics.Snapshot
		if err := json.Unmarshal([]byte(metricsJSON), &snap); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
		}
		history = append(history, snap)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: history iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, symbol string, kind model.RunKind, framework string, result []byte) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, symbol, kind, framework, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, symbol, string(kind), framework, string(result), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for %s", symbol)
	}

	return &model.Run{
		ID:        id,
		Symbol:    symbol,
		Kind:      kind,
		Framework: framework,
		Result:    result,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var kind, result string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, kind, framework, result, created_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.Symbol, &kind, &r.Framework, &result, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	r.Kind = model.RunKind(kind)
	r.Result = json.RawMessage(result)
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, symbol, kind, framework, result, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, result string
		if err := rows.Scan(&r.ID, &r.Symbol, &kind, &r.Framework, &result, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Result = json.RawMessage(result)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
