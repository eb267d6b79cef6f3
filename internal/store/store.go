package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Symbol string        `json:"symbol,omitempty"`
	Kind   model.RunKind `json:"kind,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}

// Store defines the persistence interface for stocks, metric snapshots,
// and evaluation runs.
type Store interface {
	// Stocks
	UpsertStock(ctx context.Context, stock model.Stock) error
	GetStock(ctx context.Context, symbol string) (*model.Stock, error)
	ListStocks(ctx context.Context) ([]model.Stock, error)

	// Snapshots
	SaveSnapshot(ctx context.Context, symbol, period string, snap metrics.Snapshot) error
	GetSnapshot(ctx context.Context, symbol, period string) (*model.SnapshotRecord, error)
	// History returns up to limit periods for a symbol, most recent
	// first. limit <= 0 means no cap.
	History(ctx context.Context, symbol string, limit int) (metrics.History, error)

	// Runs
	CreateRun(ctx context.Context, symbol string, kind model.RunKind, framework string, result []byte) (*model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the configured backend. driver is "sqlite" or "postgres";
// dsn is the file path or connection string respectively.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
