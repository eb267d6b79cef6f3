package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements
// it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_snapshot": `INSERT INTO snapshots (symbol, period, metrics, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, period) DO UPDATE SET metrics = excluded.metrics, created_at = excluded.created_at`,
	"get_snapshot": `SELECT symbol, period, metrics, created_at FROM snapshots WHERE symbol = $1 AND period = $2`,
	"history":      `SELECT metrics FROM snapshots WHERE symbol = $1 ORDER BY period DESC`,
	"insert_run":   `INSERT INTO runs (id, symbol, kind, framework, result, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_run":      `SELECT id, symbol, kind, framework, result, created_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS stocks (
	symbol     TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	symbol     TEXT NOT NULL REFERENCES stocks(symbol),
	period     TEXT NOT NULL,
	metrics    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (symbol, period)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	symbol     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	framework  TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol, period DESC);
CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertStock(ctx context.Context, stock model.Stock) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stocks (symbol, name, industry, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (symbol) DO UPDATE SET name = excluded.name, industry = excluded.industry, updated_at = excluded.updated_at`,
		stock.Symbol, stock.Name, stock.Industry, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert stock %s", stock.Symbol)
}

func (s *PostgresStore) GetStock(ctx context.Context, symbol string) (*model.Stock, error) {
	var st model.Stock
	err := s.pool.QueryRow(ctx,
		`SELECT symbol, name, industry FROM stocks WHERE symbol = $1`, symbol,
	).Scan(&st.Symbol, &st.Name, &st.Industry)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("stock not found: %s", symbol)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get stock %s", symbol)
	}
	return &st, nil
}

func (s *PostgresStore) ListStocks(ctx context.Context) ([]model.Stock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, name, industry FROM stocks ORDER BY symbol`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stocks")
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		var st model.Stock
		if err := rows.Scan(&st.Symbol, &st.Name, &st.Industry); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stock")
		}
		stocks = append(stocks, st)
	}
	return stocks, eris.Wrap(rows.Err(), "postgres: list stocks iterate")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, symbol, period string, snap metrics.Snapshot) error {
	metricsJSON, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["upsert_snapshot"],
		symbol, period, string(metricsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save snapshot %s/%s", symbol, period)
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, symbol, period string) (*model.SnapshotRecord, error) {
	var rec model.SnapshotRecord
	var metricsJSON string
	err := s.pool.QueryRow(ctx, preparedStatements["get_snapshot"], symbol, period).
		Scan(&rec.Symbol, &rec.Period, &metricsJSON, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("snapshot not found: %s/%s", symbol, period)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s/%s", symbol, period)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	return &rec, nil
}

func (s *PostgresStore) History(ctx context.Context, symbol string, limit int) (metrics.History, error) {
	query := preparedStatements["history"]
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: history %s", symbol)
	}
	defer rows.Close()

	var history metrics.History
	for rows.Next() {
		var metricsJSON string
		if err := rows.Scan(&metricsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		var snap metrics.Snapshot
		if err := json.Unmarshal([]byte(metricsJSON), &snap); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
		history = append(history, snap)
	}
	return history, eris.Wrap(rows.Err(), "postgres: history iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, symbol string, kind model.RunKind, framework string, result []byte) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, preparedStatements["insert_run"],
		id, symbol, string(kind), framework, string(result), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for %s", symbol)
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

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var kind, result string
	err := s.pool.QueryRow(ctx, preparedStatements["get_run"], runID).
		Scan(&r.ID, &r.Symbol, &kind, &r.Framework, &result, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Kind = model.RunKind(kind)
	r.Result = json.RawMessage(result)
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, symbol, kind, framework, result, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		query += ` AND symbol = $` + strconv.Itoa(len(args))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, result string
		if err := rows.Scan(&r.ID, &r.Symbol, &kind, &r.Framework, &result, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Result = json.RawMessage(result)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

