package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestLintFramework(t *testing.T) {
	f := &Framework{
		Name:        "bad",
		Description: "deliberately broken",
		Categories: []ScoringCategory{
			{
				Name:   "cat",
				Weight: 50,
				Metrics: []Metric{
					{
						Name:   "roe",
						Weight: 30, // does not sum to category weight
						Rules: []Rule{
							{Condition: "value >>= 1", Score: 30},       // parse error
							{Condition: "value >= 0.1", Score: 45},      // exceeds metric weight
							{Default: floatPtr(0)},
							{Condition: "value >= 0", Score: 1},         // unreachable
						},
					},
				},
			},
		},
		Recommendations: []Recommendation{
			{ScoreRange: [2]float64{80, 20}},  // inverted
			{ScoreRange: [2]float64{0, 200}},  // beyond max score
		},
		RiskAlerts: []RiskAlert{
			{Condition: "pe_ratio >"}, // parse error
		},
	}

	problems := LintFramework(f)
	assert.True(t, HasErrors(problems))

	var messages []string
	for _, p := range problems {
		messages = append(messages, p.String())
	}
	joined := ""
	for _, m := range messages {
		joined += m + "\n"
	}
	assert.Contains(t, joined, "does not parse")
	assert.Contains(t, joined, "exceeds metric weight")
	assert.Contains(t, joined, "unreachable")
	assert.Contains(t, joined, "sum to")
	assert.Contains(t, joined, "min exceeds max")
	assert.Contains(t, joined, "exceeds framework max score")
}

func TestLintFrameworkClean(t *testing.T) {
	f, err := ParseFramework([]byte(minimalFramework))
	require.NoError(t, err)
	problems := LintFramework(f)
	assert.False(t, HasErrors(problems))
}

func TestLintScreener(t *testing.T) {
	s := &Screener{
		Name:        "bad",
		Description: "deliberately broken",
		Categories: []ScreeningCategory{
			{
				Name: "cat",
				Criteria: []Criterion{
					{Name: "a", CheckType: "fortune_telling"},                              // unknown type
					{Name: "b", CheckType: CheckSimple},                                    // missing metric/threshold/operator
					{Name: "c", CheckType: CheckCAGR, Metric: "revenue", Years: 0},         // bad years
					{Name: "d", CheckType: CheckRating, Metric: "rating"},                  // empty scale
					{Name: "e", CheckType: CheckSimple, Metric: "roe",
						Threshold: floatPtr(0.1), Operator: "~=", Importance: "severe"}, // bad operator + importance
				},
			},
		},
		Tolerance: Tolerance{HighMinPassRate: floatPtr(1.5)},
	}

	problems := LintScreener(s)
	assert.True(t, HasErrors(problems))

	joined := ""
	for _, p := range problems {
		joined += p.String() + "\n"
	}
	assert.Contains(t, joined, "unknown check_type")
	assert.Contains(t, joined, "metric is required")
	assert.Contains(t, joined, "years must be positive")
	assert.Contains(t, joined, "rating_scale must not be empty")
	assert.Contains(t, joined, `unknown operator "~="`)
	assert.Contains(t, joined, `unknown importance "severe"`)
	assert.Contains(t, joined, "high_min_pass_rate")
}
