package ruleset

import (
	"fmt"
	"math"

	"github.com/fundlens/screener-cli/internal/condexpr"
)

// Problem is one rule-set authoring issue found by the linter.
type Problem struct {
	Severity string // "error" or "warning"
	Where    string // dotted path into the rule set
	Message  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s: %s", p.Severity, p.Where, p.Message)
}

const (
	sevError   = "error"
	sevWarning = "warning"
)

var knownOperators = map[string]bool{
	">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true,
}

var knownCheckTypes = map[string]bool{
	CheckSimple:               true,
	CheckConsecutiveYears:     true,
	CheckCAGR:                 true,
	CheckLatestQuarter:        true,
	CheckCompareBenchmark:     true,
	CheckNegativeScreen:       true,
	CheckRating:               true,
	CheckHistoricalPercentile: true,
	CheckVolatility:           true,
	CheckValuationExpansion:   true,
}

var knownImportance = map[string]bool{
	ImportanceCritical: true,
	ImportanceHigh:     true,
	ImportanceMedium:   true,
}

var knownPercentiles = map[string]bool{
	"": true, "median": true, "mean": true, "25th": true, "75th": true,
}

// LintFramework runs authoring checks on a scoring rule set. These are
// conventions the engine itself tolerates at runtime; the linter exists
// so a typo is caught before a batch run, not during one.
func LintFramework(f *Framework) []Problem {
	var out []Problem

	for ci, c := range f.Categories {
		where := fmt.Sprintf("categories[%d] %q", ci, c.Name)
		if c.Weight <= 0 {
			out = append(out, Problem{sevError, where, "category weight must be positive"})
		}

		var metricSum float64
		for mi, m := range c.Metrics {
			mwhere := fmt.Sprintf("%s.metrics[%d] %q", where, mi, m.Name)
			metricSum += m.Weight
			if m.Weight <= 0 {
				out = append(out, Problem{sevError, mwhere, "metric weight must be positive"})
			}

			sawDefault := false
			for ri, r := range m.Rules {
				rwhere := fmt.Sprintf("%s.rules[%d]", mwhere, ri)
				if sawDefault {
					out = append(out, Problem{sevWarning, rwhere, "rule after a default is unreachable"})
				}
				if r.IsDefault() {
					sawDefault = true
					continue
				}
				if _, err := condexpr.Parse(r.Condition); err != nil {
					out = append(out, Problem{sevError, rwhere, fmt.Sprintf("condition does not parse: %v", err)})
				}
				if r.Score > m.Weight {
					out = append(out, Problem{sevWarning, rwhere,
						fmt.Sprintf("rule score %.1f exceeds metric weight %.1f", r.Score, m.Weight)})
				}
			}
		}

		if math.Abs(metricSum-c.Weight) > 1e-9 {
			out = append(out, Problem{sevWarning, where,
				fmt.Sprintf("metric weights sum to %.1f, category weight is %.1f", metricSum, c.Weight)})
		}
	}

	maxScore := f.MaxScore()
	for ri, r := range f.Recommendations {
		where := fmt.Sprintf("recommendations[%d]", ri)
		if r.ScoreRange[0] > r.ScoreRange[1] {
			out = append(out, Problem{sevError, where, "score_range min exceeds max"})
		}
		if r.ScoreRange[1] > maxScore {
			out = append(out, Problem{sevWarning, where,
				fmt.Sprintf("score_range max %.1f exceeds framework max score %.1f", r.ScoreRange[1], maxScore)})
		}
	}

	for ai, a := range f.RiskAlerts {
		where := fmt.Sprintf("risk_alerts[%d]", ai)
		if _, err := condexpr.Parse(a.Condition); err != nil {
			out = append(out, Problem{sevError, where, fmt.Sprintf("condition does not parse: %v", err)})
		}
	}

	return out
}

// LintScreener runs authoring checks on a screening rule set.
func LintScreener(s *Screener) []Problem {
	var out []Problem

	for ci, c := range s.Categories {
		for cri, cr := range c.Criteria {
			where := fmt.Sprintf("categories[%d] %q.criteria[%d] %q", ci, c.Name, cri, cr.Name)

			if !knownCheckTypes[cr.CheckType] {
				out = append(out, Problem{sevWarning, where,
					fmt.Sprintf("unknown check_type %q (criterion will always fail)", cr.CheckType)})
				continue
			}
			if cr.Importance != "" && !knownImportance[cr.Importance] {
				out = append(out, Problem{sevError, where,
					fmt.Sprintf("unknown importance %q", cr.Importance)})
			}
			if cr.Operator != "" && !knownOperators[cr.Operator] {
				out = append(out, Problem{sevError, where,
					fmt.Sprintf("unknown operator %q", cr.Operator)})
			}

			switch cr.CheckType {
			case CheckSimple, CheckLatestQuarter:
				if cr.Metric == "" {
					out = append(out, Problem{sevError, where, "metric is required"})
				}
				if cr.Threshold == nil {
					out = append(out, Problem{sevError, where, "threshold is required"})
				}
				if cr.Operator == "" {
					out = append(out, Problem{sevError, where, "operator is required"})
				}
			case CheckConsecutiveYears, CheckCAGR:
				if cr.Metric == "" {
					out = append(out, Problem{sevError, where, "metric is required"})
				}
				if cr.Years <= 0 {
					out = append(out, Problem{sevError, where, "years must be positive"})
				}
			case CheckRating:
				if len(cr.RatingScale) == 0 {
					out = append(out, Problem{sevError, where, "rating_scale must not be empty"})
				}
			case CheckHistoricalPercentile:
				if !knownPercentiles[cr.PercentileType] {
					out = append(out, Problem{sevError, where,
						fmt.Sprintf("unknown percentile_type %q", cr.PercentileType)})
				}
			case CheckVolatility, CheckValuationExpansion:
				if cr.Threshold == nil {
					out = append(out, Problem{sevError, where, "threshold is required"})
				}
			}
		}
	}

	if s.Tolerance.HighRate() < 0 || s.Tolerance.HighRate() > 1 {
		out = append(out, Problem{sevError, "tolerance.high_min_pass_rate", "must be between 0 and 1"})
	}
	if s.Tolerance.MediumRate() < 0 || s.Tolerance.MediumRate() > 1 {
		out = append(out, Problem{sevError, "tolerance.medium_min_pass_rate", "must be between 0 and 1"})
	}

	return out
}

// HasErrors reports whether any problem is an error (as opposed to a
// warning).
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == sevError {
			return true
		}
	}
	return false
}
