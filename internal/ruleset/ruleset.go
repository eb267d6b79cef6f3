// Package ruleset loads and validates the declarative rule-set
// configurations consumed by the analyzer and screener engines.
// Rule sets are YAML documents authored by analysts; structural problems
// fail at load time so an engine is never half-built.
package ruleset

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind distinguishes the two rule-set flavors.
type Kind string

const (
	KindScoring   Kind = "scoring"
	KindScreening Kind = "screening"
)

// Rule is one entry in a metric's ordered rule list. Either Condition
// is set (conditional rule) or Default is set (terminal rule that
// returns its score unconditionally once reached).
type Rule struct {
	Condition string   `yaml:"condition"`
	Score     float64  `yaml:"score"`
	Default   *float64 `yaml:"default"`
	Comment   string   `yaml:"comment"`
}

// IsDefault reports whether this is a terminal default rule.
func (r Rule) IsDefault() bool { return r.Default != nil }

// Metric scores one named metric against an ordered rule list.
type Metric struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"display_name"`
	Weight      float64 `yaml:"weight"`
	Unit        string  `yaml:"unit"`
	Rules       []Rule  `yaml:"rules"`
}

// ScoringCategory groups metrics under a shared point budget.
type ScoringCategory struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Weight      float64  `yaml:"weight"`
	Metrics     []Metric `yaml:"metrics"`
}

// Recommendation maps an inclusive total-score range to an action.
type Recommendation struct {
	ScoreRange [2]float64 `yaml:"score_range"`
	Action     string     `yaml:"action"`
	Reasoning  string     `yaml:"reasoning"`
	RiskLevel  string     `yaml:"risk_level"`
}

// RiskAlert is a cross-metric condition evaluated against the full
// metrics namespace.
type RiskAlert struct {
	Condition string `yaml:"condition"`
	Level     string `yaml:"level"`
	Message   string `yaml:"message"`
}

// Framework is a scoring rule set.
type Framework struct {
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Kind            Kind              `yaml:"kind"`
	Categories      []ScoringCategory `yaml:"categories"`
	Recommendations []Recommendation  `yaml:"recommendations"`
	RiskAlerts      []RiskAlert       `yaml:"risk_alerts"`
}

// MaxScore is the sum of category weights.
func (f *Framework) MaxScore() float64 {
	var sum float64
	for _, c := range f.Categories {
		sum += c.Weight
	}
	return sum
}

// ParseFramework decodes and structurally validates a scoring rule set.
func ParseFramework(data []byte) (*Framework, error) {
	var f Framework
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "ruleset: decode framework")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFramework reads a scoring rule set from a YAML file.
func LoadFramework(path string) (*Framework, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: read %s", path)
	}
	return ParseFramework(data)
}

func (f *Framework) validate() error {
	if f.Name == "" {
		return eris.New("ruleset: framework missing required key: name")
	}
	if f.Description == "" {
		return eris.Errorf("ruleset: framework %q missing required key: description", f.Name)
	}
	if len(f.Categories) == 0 {
		return eris.Errorf("ruleset: framework %q missing required key: categories", f.Name)
	}
	if f.Kind != "" && f.Kind != KindScoring {
		return eris.Errorf("ruleset: framework %q has kind %q, want %q", f.Name, f.Kind, KindScoring)
	}
	for _, c := range f.Categories {
		if c.Name == "" {
			return eris.Errorf("ruleset: framework %q has a category without a name", f.Name)
		}
		for _, m := range c.Metrics {
			if m.Name == "" {
				return eris.Errorf("ruleset: category %q has a metric without a name", c.Name)
			}
			if len(m.Rules) == 0 {
				return eris.Errorf("ruleset: metric %q has no rules", m.Name)
			}
			for i, r := range m.Rules {
				if !r.IsDefault() && r.Condition == "" {
					return eris.Errorf("ruleset: metric %q rule %d has neither condition nor default", m.Name, i)
				}
			}
		}
	}
	return nil
}
