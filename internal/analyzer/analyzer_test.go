package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/ruleset"
)

const testFramework = `
name: test
description: scoring fixture
categories:
  - name: returns
    description: capital returns
    weight: 60
    metrics:
      - name: roe
        display_name: ROE
        weight: 60
        rules:
          - condition: "value >= 0.5"
            score: 60
            comment: top tier
          - condition: "value >= 0.2"
            score: 36
            comment: mid tier
          - default: 6
            comment: floor
  - name: leverage
    description: balance sheet
    weight: 40
    metrics:
      - name: debt_ratio
        display_name: Debt ratio
        weight: 40
        rules:
          - condition: "value <= 0.4"
            score: 40
            comment: conservative
          - default: 10
            comment: levered
recommendations:
  - score_range: [80, 100]
    action: buy
    reasoning: strong all around
    risk_level: low
  - score_range: [50, 80]
    action: hold
    reasoning: mixed picture
    risk_level: medium
risk_alerts:
  - condition: "pe_ratio > 50 and revenue_yoy < 0"
    level: high
    message: expensive and shrinking
  - condition: "debt_ratio > 0.7"
    level: medium
    message: leverage elevated
`

func testEngine(t *testing.T) *Engine {
	t.Helper()
	f, err := ruleset.ParseFramework([]byte(testFramework))
	require.NoError(t, err)
	return New(f, zap.NewNop())
}

func TestAnalyzeFirstMatchWins(t *testing.T) {
	e := testEngine(t)

	// 0.6 satisfies both the 0.5 and 0.2 tiers; the first rule must win.
	result := e.Analyze(metrics.Snapshot{"roe": 0.6, "debt_ratio": 0.3})
	roe := result.CategoryScores[0].Metrics[0]
	assert.InDelta(t, 60, roe.Score, 1e-9)
	assert.Equal(t, "top tier", roe.Comment)

	assert.InDelta(t, 100, result.TotalScore, 1e-9)
	assert.Equal(t, "A+", result.Grade())
	assert.Equal(t, "buy", result.Recommendation)
}

func TestAnalyzeDefaultRule(t *testing.T) {
	e := testEngine(t)

	result := e.Analyze(metrics.Snapshot{"roe": 0.05, "debt_ratio": 0.9})
	roe := result.CategoryScores[0].Metrics[0]
	assert.InDelta(t, 6, roe.Score, 1e-9)
	assert.Equal(t, "floor", roe.Comment)

	debt := result.CategoryScores[1].Metrics[0]
	assert.InDelta(t, 10, debt.Score, 1e-9)
}

func TestAnalyzeMissingData(t *testing.T) {
	e := testEngine(t)

	result := e.Analyze(metrics.Snapshot{})
	assert.InDelta(t, 0, result.TotalScore, 1e-9)
	assert.InDelta(t, 100, result.MaxScore, 1e-9)
	assert.Equal(t, "F", result.Grade())

	for _, cat := range result.CategoryScores {
		for _, m := range cat.Metrics {
			assert.Equal(t, CommentMissingData, m.Comment)
			assert.Nil(t, m.Value)
			assert.Zero(t, m.Score)
		}
	}
}

func TestAnalyzeNoMatchingRule(t *testing.T) {
	yaml := `
name: no_default
description: metric without default rule
categories:
  - name: c
    description: d
    weight: 10
    metrics:
      - name: x
        display_name: X
        weight: 10
        rules:
          - condition: "value >= 100"
            score: 10
            comment: huge
`
	f, err := ruleset.ParseFramework([]byte(yaml))
	require.NoError(t, err)
	e := New(f, zap.NewNop())

	result := e.Analyze(metrics.Snapshot{"x": 1})
	m := result.CategoryScores[0].Metrics[0]
	assert.Zero(t, m.Score)
	assert.Equal(t, CommentNoRuleMatch, m.Comment)
}

func TestAnalyzeBrokenConditionDegrades(t *testing.T) {
	yaml := `
name: broken
description: one bad rule must not blank the report
categories:
  - name: c
    description: d
    weight: 10
    metrics:
      - name: x
        display_name: X
        weight: 10
        rules:
          - condition: "x ?? 1"
            score: 10
            comment: broken
          - condition: "value >= 0"
            score: 7
            comment: fallback tier
`
	f, err := ruleset.ParseFramework([]byte(yaml))
	require.NoError(t, err)
	e := New(f, zap.NewNop())

	result := e.Analyze(metrics.Snapshot{"x": 5})
	m := result.CategoryScores[0].Metrics[0]
	assert.InDelta(t, 7, m.Score, 1e-9)
	assert.Equal(t, "fallback tier", m.Comment)
}

func TestRecommendationFallback(t *testing.T) {
	yaml := `
name: gap
description: recommendation ranges with a hole
categories:
  - name: c
    description: d
    weight: 100
    metrics:
      - name: x
        display_name: X
        weight: 100
        rules:
          - default: 45
            comment: fixed
recommendations:
  - score_range: [80, 100]
    action: buy
    reasoning: strong
    risk_level: low
`
	f, err := ruleset.ParseFramework([]byte(yaml))
	require.NoError(t, err)
	e := New(f, zap.NewNop())

	result := e.Analyze(metrics.Snapshot{"x": 1})
	assert.Equal(t, "观察", result.Recommendation)
	assert.Equal(t, "评分异常，建议人工审核", result.Reasoning)
	assert.Equal(t, "未知", result.RiskLevel)
}

func TestRiskAlerts(t *testing.T) {
	e := testEngine(t)

	result := e.Analyze(metrics.Snapshot{
		"roe":         0.3,
		"debt_ratio":  0.8,
		"pe_ratio":    60,
		"revenue_yoy": -0.05,
	})
	require.Len(t, result.RiskAlerts, 2)
	assert.Equal(t, "[high] expensive and shrinking", result.RiskAlerts[0])
	assert.Equal(t, "[medium] leverage elevated", result.RiskAlerts[1])

	// Missing referenced metrics silently skip the alert.
	result = e.Analyze(metrics.Snapshot{"roe": 0.3, "debt_ratio": 0.3})
	assert.Empty(t, result.RiskAlerts)
}

func TestGradeBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "A+"}, {90, "A+"}, {85, "A"}, {80, "A"}, {75, "B"},
		{65, "C"}, {55, "D"}, {40, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		r := &Result{TotalScore: tt.score, MaxScore: 100}
		assert.Equal(t, tt.want, r.Grade(), "score %.0f", tt.score)
	}
}

func TestScorePercentageZeroMax(t *testing.T) {
	r := &Result{TotalScore: 10, MaxScore: 0}
	assert.Zero(t, r.ScorePercentage())
	assert.Equal(t, "F", r.Grade())
}

func TestValueInvestingEndToEnd(t *testing.T) {
	f, err := ruleset.LoadBuiltinFramework("value_investing")
	require.NoError(t, err)
	e := New(f, zap.NewNop())

	result := e.Analyze(metrics.Snapshot{
		"roe":                   0.28,
		"asset_liability_ratio": 0.20,
		"revenue_yoy":           0.18,
		"pe_ratio":              32,
	})

	assert.InDelta(t, 84, result.TotalScore, 1e-9)
	assert.Equal(t, "A", result.Grade())
	assert.Equal(t, "增持", result.Recommendation)
	assert.Empty(t, result.RiskAlerts)
}
