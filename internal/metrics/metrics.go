// Package metrics defines the point-in-time and historical metric
// containers consumed by both evaluation engines. Snapshots are produced
// by an external extraction layer; the engines never mutate them.
package metrics

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Snapshot maps metric names to values for one reporting period.
// A key that is absent means the metric is unavailable. Decoding drops
// explicit nulls, so "null" and "missing" are the same state.
type Snapshot map[string]float64

// Get returns the named metric and whether it is present.
func (s Snapshot) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// History is an ordered sequence of snapshots, index 0 most recent.
type History []Snapshot

// UnmarshalJSON decodes a snapshot, skipping null values so downstream
// lookups see a single "missing" state.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "metrics: decode snapshot")
	}
	out := make(Snapshot, len(raw))
	for k, v := range raw {
		if v != nil {
			out[k] = *v
		}
	}
	*s = out
	return nil
}

// UnmarshalYAML decodes a snapshot from YAML with the same null handling.
func (s *Snapshot) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]*float64
	if err := unmarshal(&raw); err != nil {
		return eris.Wrap(err, "metrics: decode snapshot")
	}
	out := make(Snapshot, len(raw))
	for k, v := range raw {
		if v != nil {
			out[k] = *v
		}
	}
	*s = out
	return nil
}

// CAGR computes the compound annual growth rate of a metric over the
// given number of years: (latest/oldest)^(1/years) - 1. It fails when
// history is too short, either endpoint is missing, or the starting
// value is non-positive.
func CAGR(h History, metric string, years int) (float64, error) {
	if years <= 0 {
		return 0, eris.Errorf("metrics: cagr years must be positive, got %d", years)
	}
	if len(h) < years {
		return 0, eris.Errorf("metrics: cagr needs %d years of history, have %d", years, len(h))
	}
	end, okEnd := h[0].Get(metric)
	start, okStart := h[years-1].Get(metric)
	if !okEnd || !okStart {
		return 0, eris.Errorf("metrics: cagr endpoint missing for %q", metric)
	}
	if start <= 0 {
		return 0, eris.Errorf("metrics: cagr start value for %q is non-positive", metric)
	}
	return math.Pow(end/start, 1/float64(years)) - 1, nil
}

// PositiveSeries collects up to years of strictly positive historical
// values for a metric, most recent first. Missing and non-positive
// entries are skipped, matching the reference's percentile/volatility
// sampling rule.
func PositiveSeries(h History, metric string, years int) []float64 {
	if years > len(h) {
		years = len(h)
	}
	var out []float64
	for _, snap := range h[:years] {
		if v, ok := snap.Get(metric); ok && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the arithmetic mean of values. Zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stdev returns the sample standard deviation (n-1 denominator).
// Zero when fewer than two values are given.
func Stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// Median returns the middle value (mean of the two middle values for an
// even count). Zero for an empty slice.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Quartile returns the lower (q=1) or upper (q=3) quartile using the
// index rule sorted[q*len/4], the same cut the reference engine uses.
func Quartile(values []float64, q int) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := q * n / 4
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
