package model

import (
	"encoding/json"
	"time"

	"github.com/fundlens/screener-cli/internal/metrics"
)

// RunKind distinguishes the two evaluation engines.
type RunKind string

const (
	RunKindAnalysis  RunKind = "analysis"
	RunKindScreening RunKind = "screening"
)

// Stock identifies one listed company tracked by the store.
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// SnapshotRecord is one stored reporting period for a symbol. Period is
// a sortable label like "2024FY" or "2025Q2"; lexicographic descending
// order is reverse chronological.
type SnapshotRecord struct {
	Symbol    string           `json:"symbol"`
	Period    string           `json:"period"`
	Metrics   metrics.Snapshot `json:"metrics"`
	CreatedAt time.Time        `json:"created_at"`
}

// Run is one persisted analysis or screening execution. Result holds
// the engine's JSON output verbatim.
type Run struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Kind      RunKind         `json:"kind"`
	Framework string          `json:"framework"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// SnapshotFile is the import payload produced by the external data
// extraction tooling: one stock with any number of reporting periods.
type SnapshotFile struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Industry string `json:"industry,omitempty"`
	Periods  []struct {
		Period  string           `json:"period"`
		Metrics metrics.Snapshot `json:"metrics"`
	} `json:"periods"`
}
