package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/store"
)

// inputFile is the JSON shape accepted by --input: the current period's
// metrics plus optional history, most recent first.
type inputFile struct {
	Metrics  metrics.Snapshot `json:"metrics"`
	History  metrics.History  `json:"history,omitempty"`
	Industry string           `json:"industry,omitempty"`
}

func loadInputFile(path string) (*inputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read input %s", path)
	}
	var in inputFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "parse input %s", path)
	}
	if in.Metrics == nil && len(in.History) > 0 {
		in.Metrics = in.History[0]
	}
	if in.Metrics == nil {
		return nil, eris.Errorf("input %s: metrics required", path)
	}
	return &in, nil
}

func marshalResult(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	return data, eris.Wrap(err, "marshal result")
}

func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	dsn := cfg.Store.Path
	if cfg.Store.Driver == "postgres" {
		dsn = cfg.Store.DatabaseURL
	}
	return store.Open(ctx, cfg.Store.Driver, dsn)
}

// storeInput fetches a symbol's current metrics, history, and industry
// from the store.
func storeInput(ctx context.Context, st store.Store, symbol string) (*inputFile, error) {
	history, err := st.History(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, eris.Errorf("no snapshots for symbol %s", symbol)
	}
	in := &inputFile{Metrics: history[0], History: history}
	if stock, err := st.GetStock(ctx, symbol); err == nil {
		in.Industry = stock.Industry
	}
	return in, nil
}
