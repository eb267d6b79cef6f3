package ruleset

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Check types supported by the screening engine.
const (
	CheckSimple               = "simple"
	CheckConsecutiveYears     = "consecutive_years"
	CheckCAGR                 = "cagr"
	CheckLatestQuarter        = "latest_quarter"
	CheckCompareBenchmark     = "compare_benchmark"
	CheckNegativeScreen       = "negative_screen"
	CheckRating               = "rating"
	CheckHistoricalPercentile = "historical_percentile"
	CheckVolatility           = "volatility"
	CheckValuationExpansion   = "valuation_expansion"
)

// Importance tiers for screening criteria.
const (
	ImportanceCritical = "critical"
	ImportanceHigh     = "high"
	ImportanceMedium   = "medium"
)

// Criterion is one pass/fail check within a screening category.
// Which fields are meaningful depends on CheckType.
type Criterion struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	CheckType   string   `yaml:"check_type"`
	Metric      string   `yaml:"metric"`
	Threshold   *float64 `yaml:"threshold"`
	Operator    string   `yaml:"operator"`
	Years       int      `yaml:"years"`
	Importance  string   `yaml:"importance"`

	// historical_percentile
	PercentileType string `yaml:"percentile_type"`

	// compare_benchmark
	BenchmarkValue *float64 `yaml:"benchmark_value"`

	// rating: ordered worst-to-best scale both value and threshold must
	// appear in.
	RatingScale []float64 `yaml:"rating_scale"`

	// valuation_expansion
	MarketCapMetric string `yaml:"market_cap_metric"`
	ProfitMetric    string `yaml:"profit_metric"`
}

// ImportanceOrDefault applies the per-check-type importance defaults:
// negative_screen defaults to critical, everything else to medium.
func (c Criterion) ImportanceOrDefault() string {
	if c.Importance != "" {
		return c.Importance
	}
	if c.CheckType == CheckNegativeScreen {
		return ImportanceCritical
	}
	return ImportanceMedium
}

// ScreeningCategory groups criteria. A required category passes only if
// every criterion passes; an optional one is judged by the tolerance
// policy.
type ScreeningCategory struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Required    *bool       `yaml:"required"`
	Criteria    []Criterion `yaml:"criteria"`
}

// IsRequired defaults to true when the key is absent, matching the
// reference loader.
func (c ScreeningCategory) IsRequired() bool {
	return c.Required == nil || *c.Required
}

// Tolerance controls how leniently optional categories and the overall
// verdict treat failures.
type Tolerance struct {
	CriticalMustPass  *bool    `yaml:"critical_must_pass"`
	HighMinPassRate   *float64 `yaml:"high_min_pass_rate"`
	MediumMinPassRate *float64 `yaml:"medium_min_pass_rate"`
	AllowPartialPass  bool     `yaml:"allow_partial_pass"`
}

// CriticalRequired defaults to true.
func (t Tolerance) CriticalRequired() bool {
	return t.CriticalMustPass == nil || *t.CriticalMustPass
}

// HighRate defaults to 0.8.
func (t Tolerance) HighRate() float64 {
	if t.HighMinPassRate == nil {
		return 0.8
	}
	return *t.HighMinPassRate
}

// MediumRate defaults to 0.6.
func (t Tolerance) MediumRate() float64 {
	if t.MediumMinPassRate == nil {
		return 0.6
	}
	return *t.MediumMinPassRate
}

// IndustryAdjustment is a reserved per-industry override block. The
// schema is parsed and carried through, but the engine does not apply
// it yet; see screener.AdjustmentStrategy for the extension point.
type IndustryAdjustment struct {
	Name      string             `yaml:"name"`
	Overrides map[string]float64 `yaml:"overrides"`
}

// Screener is a screening rule set.
type Screener struct {
	Name                string                        `yaml:"name"`
	Description         string                        `yaml:"description"`
	Kind                Kind                          `yaml:"kind"`
	Categories          []ScreeningCategory           `yaml:"categories"`
	Tolerance           Tolerance                     `yaml:"tolerance"`
	IndustryAdjustments map[string]IndustryAdjustment `yaml:"industry_adjustments"`
}

// ParseScreener decodes and structurally validates a screening rule set.
func ParseScreener(data []byte) (*Screener, error) {
	var s Screener
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "ruleset: decode screener")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScreener reads a screening rule set from a YAML file.
func LoadScreener(path string) (*Screener, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: read %s", path)
	}
	return ParseScreener(data)
}

func (s *Screener) validate() error {
	if s.Name == "" {
		return eris.New("ruleset: screener missing required key: name")
	}
	if s.Description == "" {
		return eris.Errorf("ruleset: screener %q missing required key: description", s.Name)
	}
	if len(s.Categories) == 0 {
		return eris.Errorf("ruleset: screener %q missing required key: categories", s.Name)
	}
	if s.Kind != "" && s.Kind != KindScreening {
		return eris.Errorf("ruleset: screener %q has kind %q, want %q", s.Name, s.Kind, KindScreening)
	}
	for _, c := range s.Categories {
		if c.Name == "" {
			return eris.Errorf("ruleset: screener %q has a category without a name", s.Name)
		}
		if len(c.Criteria) == 0 {
			return eris.Errorf("ruleset: category %q has no criteria", c.Name)
		}
		for _, cr := range c.Criteria {
			if cr.Name == "" {
				return eris.Errorf("ruleset: category %q has a criterion without a name", c.Name)
			}
			if cr.CheckType == "" {
				return eris.Errorf("ruleset: criterion %q missing check_type", cr.Name)
			}
		}
	}
	return nil
}
