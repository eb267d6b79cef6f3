package analyzer

// MetricScore is the outcome for a single metric. Value is nil when the
// metric was missing from the snapshot.
type MetricScore struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Value       *float64 `json:"value"`
	Score       float64  `json:"score"`
	MaxScore    float64  `json:"max_score"`
	Comment     string   `json:"comment"`
	Unit        string   `json:"unit,omitempty"`
}

// CategoryScore aggregates the metric scores of one category.
// MaxScore is the category's declared weight, not a sum over metrics.
type CategoryScore struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Score       float64       `json:"score"`
	MaxScore    float64       `json:"max_score"`
	Metrics     []MetricScore `json:"metrics"`
}

// ScorePercentage is the category's score as a 0-100 percentage.
func (c CategoryScore) ScorePercentage() float64 {
	if c.MaxScore <= 0 {
		return 0
	}
	return c.Score / c.MaxScore * 100
}

// Result is the complete output of one analysis. It is immutable once
// returned.
type Result struct {
	FrameworkName        string          `json:"framework_name"`
	FrameworkDescription string          `json:"framework_description"`
	TotalScore           float64         `json:"total_score"`
	MaxScore             float64         `json:"max_score"`
	CategoryScores       []CategoryScore `json:"category_scores"`
	Recommendation       string          `json:"recommendation"`
	Reasoning            string          `json:"reasoning"`
	RiskLevel            string          `json:"risk_level"`
	RiskAlerts           []string        `json:"risk_alerts,omitempty"`
}

// ScorePercentage is the total score as a 0-100 percentage.
func (r *Result) ScorePercentage() float64 {
	if r.MaxScore <= 0 {
		return 0
	}
	return r.TotalScore / r.MaxScore * 100
}

// Grade maps the score percentage onto a letter grade.
func (r *Result) Grade() string {
	switch pct := r.ScorePercentage(); {
	case pct >= 90:
		return "A+"
	case pct >= 80:
		return "A"
	case pct >= 70:
		return "B"
	case pct >= 60:
		return "C"
	case pct >= 50:
		return "D"
	default:
		return "F"
	}
}
