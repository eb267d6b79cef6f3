package screener

// Result types for a screening run.

// Overall result classifications.
const (
	ResultPass    = "pass"
	ResultPartial = "partial"
	ResultFail    = "fail"
)

// CriterionResult is the outcome of one criterion check.
// ActualValue and Threshold are nil when the check could not produce a
// meaningful number (missing data, degenerate ratio).
type CriterionResult struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Passed      bool     `json:"passed"`
	ActualValue *float64 `json:"actual_value"`
	Threshold   *float64 `json:"threshold"`
	Operator    string   `json:"operator"`
	Importance  string   `json:"importance"`
	Reason      string   `json:"reason"`

	// Degenerate marks checks whose measured ratio was undefined
	// (zero-mean volatility, non-positive profit CAGR). These fail by
	// policy rather than by numeric comparison.
	Degenerate bool `json:"degenerate,omitempty"`
}

// StatusIcon renders the pass/fail marker used by the text reports.
func (c CriterionResult) StatusIcon() string {
	if c.Passed {
		return "✅"
	}
	return "❌"
}

// CategoryResult aggregates the criterion results of one category.
type CategoryResult struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Required        bool              `json:"required"`
	Passed          bool              `json:"passed"`
	CriteriaResults []CriterionResult `json:"criteria_results"`
}

// PassRate is the fraction of criteria in this category that passed.
func (c CategoryResult) PassRate() float64 {
	if len(c.CriteriaResults) == 0 {
		return 0
	}
	passed := 0
	for _, cr := range c.CriteriaResults {
		if cr.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(c.CriteriaResults))
}

// StatusIcon renders the category pass/fail marker.
func (c CategoryResult) StatusIcon() string {
	if c.Passed {
		return "✅"
	}
	return "❌"
}

// Result is the complete output of one screening run.
type Result struct {
	FrameworkName        string            `json:"framework_name"`
	FrameworkDescription string            `json:"framework_description"`
	Passed               bool              `json:"passed"`
	ResultType           string            `json:"result_type"`
	CategoryResults      []CategoryResult  `json:"category_results"`
	FailedCriteria       []CriterionResult `json:"failed_criteria,omitempty"`
	Suggestions          []string          `json:"suggestions,omitempty"`
}

// TotalPassRate is the fraction of all criteria across categories that
// passed.
func (r *Result) TotalPassRate() float64 {
	total, passed := 0, 0
	for _, cat := range r.CategoryResults {
		for _, cr := range cat.CriteriaResults {
			total++
			if cr.Passed {
				passed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}

// StatusIcon renders the overall verdict marker.
func (r *Result) StatusIcon() string {
	switch r.ResultType {
	case ResultPass:
		return "✅"
	case ResultPartial:
		return "⚠️"
	default:
		return "❌"
	}
}
