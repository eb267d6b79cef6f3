package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/ruleset"
)

// qualityHistory is five years of healthy fundamentals, most recent
// first. Revenue grows at (200/100)^(1/5)-1 ≈ 14.9%, net profit is
// stable, and the market cap did not run ahead of profit.
func qualityHistory() metrics.History {
	return metrics.History{
		{"roe": 0.20, "revenue": 200, "pe_ratio": 20, "net_profit": 30, "market_cap": 300},
		{"roe": 0.18, "revenue": 170, "pe_ratio": 25, "net_profit": 28, "market_cap": 280},
		{"roe": 0.16, "revenue": 145, "pe_ratio": 30, "net_profit": 26, "market_cap": 260},
		{"roe": 0.15, "revenue": 120, "pe_ratio": 35, "net_profit": 24, "market_cap": 230},
		{"roe": 0.14, "revenue": 100, "pe_ratio": 40, "net_profit": 22, "market_cap": 200},
	}
}

func qualityCurrent() metrics.Snapshot {
	return metrics.Snapshot{
		"roe":            0.20,
		"gross_margin":   0.40,
		"pe_ratio":       22,
		"dividend_yield": 0.03,
		"analyst_rating": 4,
	}
}

func TestScreenQualityScreenerPass(t *testing.T) {
	cfg, err := ruleset.LoadBuiltinScreener("quality_screener")
	require.NoError(t, err)

	result := New(cfg, zap.NewNop()).Screen(qualityCurrent(), qualityHistory(), "")

	assert.True(t, result.Passed)
	assert.Equal(t, ResultPass, result.ResultType)
	assert.Equal(t, "✅", result.StatusIcon())
	assert.Empty(t, result.FailedCriteria)
	assert.Empty(t, result.Suggestions)
	require.Len(t, result.CategoryResults, 4)
	for _, cat := range result.CategoryResults {
		assert.True(t, cat.Passed, "category %s", cat.Name)
	}
	assert.InDelta(t, 1.0, result.TotalPassRate(), 1e-9)
}

func TestScreenQualityScreenerFail(t *testing.T) {
	cfg, err := ruleset.LoadBuiltinScreener("quality_screener")
	require.NoError(t, err)

	current := metrics.Snapshot{
		"roe":          0.08,
		"gross_margin": 0.20,
		"violations":   1,
	}
	result := New(cfg, zap.NewNop()).Screen(current, nil, "")

	assert.False(t, result.Passed)
	assert.Equal(t, ResultFail, result.ResultType)
	assert.Equal(t, "❌", result.StatusIcon())
	assert.NotEmpty(t, result.FailedCriteria)

	// Both critical misses must land in the suggestion block.
	require.NotEmpty(t, result.Suggestions)
	assert.Equal(t, "⚠️ 关键指标未达标（2项）：", result.Suggestions[0])
	assert.Contains(t, result.Suggestions[1], "ROE达标")
	assert.Contains(t, result.Suggestions[2], "无违规记录")
}

func TestScreenQualityScreenerPartial(t *testing.T) {
	cfg, err := ruleset.LoadBuiltinScreener("quality_screener")
	require.NoError(t, err)

	// A single high-importance miss in a required category blocks the
	// full pass, but the overall pass rate stays above the partial bar.
	current := qualityCurrent()
	current["gross_margin"] = 0.20
	result := New(cfg, zap.NewNop()).Screen(current, qualityHistory(), "")

	assert.False(t, result.Passed)
	assert.Equal(t, ResultPartial, result.ResultType)
	assert.Equal(t, "⚠️", result.StatusIcon())
	require.Len(t, result.FailedCriteria, 1)
	assert.Equal(t, "毛利率达标", result.FailedCriteria[0].Name)
	require.NotEmpty(t, result.Suggestions)
	assert.Equal(t, "📊 重要指标需改善（1项）：", result.Suggestions[0])
}

func simpleCriterion(name string, threshold float64, importance string) ruleset.Criterion {
	return ruleset.Criterion{
		Name: name, Description: "d", CheckType: ruleset.CheckSimple,
		Metric: name, Threshold: &threshold, Operator: ">=", Importance: importance,
	}
}

func TestToleranceCriticalMustPass(t *testing.T) {
	cfg := &ruleset.Screener{
		Name: "tol", Description: "d",
		Categories: []ruleset.ScreeningCategory{{
			Name: "optional", Description: "d", Required: boolPtr(false),
			Criteria: []ruleset.Criterion{
				simpleCriterion("a", 1, ruleset.ImportanceCritical),
				simpleCriterion("b", 1, ruleset.ImportanceMedium),
				simpleCriterion("c", 1, ruleset.ImportanceMedium),
			},
		}},
	}
	e := New(cfg, zap.NewNop())

	// Critical failing sinks the category regardless of the others.
	result := e.Screen(metrics.Snapshot{"a": 0, "b": 2, "c": 2}, nil, "")
	assert.False(t, result.CategoryResults[0].Passed)

	// Critical passing, medium tier at 2 of 3 clears the 0.6 default.
	result = e.Screen(metrics.Snapshot{"a": 2, "b": 2, "c": 0}, nil, "")
	assert.True(t, result.CategoryResults[0].Passed)
	assert.True(t, result.Passed, "no required category failed")
}

func TestToleranceHighTierRate(t *testing.T) {
	cfg := &ruleset.Screener{
		Name: "tol", Description: "d",
		Categories: []ruleset.ScreeningCategory{{
			Name: "optional", Description: "d", Required: boolPtr(false),
			Criteria: []ruleset.Criterion{
				simpleCriterion("a", 1, ruleset.ImportanceHigh),
				simpleCriterion("b", 1, ruleset.ImportanceHigh),
			},
		}},
	}
	e := New(cfg, zap.NewNop())

	// 1 of 2 high criteria is below the 0.8 default rate.
	result := e.Screen(metrics.Snapshot{"a": 2, "b": 0}, nil, "")
	assert.False(t, result.CategoryResults[0].Passed)

	result = e.Screen(metrics.Snapshot{"a": 2, "b": 2}, nil, "")
	assert.True(t, result.CategoryResults[0].Passed)
}

func TestRequiredCategoryIgnoresTolerance(t *testing.T) {
	cfg := &ruleset.Screener{
		Name: "strict", Description: "d",
		Categories: []ruleset.ScreeningCategory{{
			Name: "required", Description: "d",
			Criteria: []ruleset.Criterion{
				simpleCriterion("a", 1, ruleset.ImportanceMedium),
				simpleCriterion("b", 1, ruleset.ImportanceMedium),
			},
		}},
	}
	// Medium tolerance would forgive one miss, but a required category
	// is all-or-nothing.
	result := New(cfg, zap.NewNop()).Screen(metrics.Snapshot{"a": 2, "b": 0}, nil, "")
	assert.False(t, result.CategoryResults[0].Passed)
	assert.False(t, result.Passed)
	assert.Equal(t, ResultFail, result.ResultType)
}

func TestBuildSuggestionsCapsPerTier(t *testing.T) {
	var failed []CriterionResult
	for _, name := range []string{"c1", "c2", "c3", "c4"} {
		failed = append(failed, CriterionResult{
			Name: name, Importance: ruleset.ImportanceCritical, Reason: "r",
		})
	}
	failed = append(failed, CriterionResult{
		Name: "h1", Importance: ruleset.ImportanceHigh, Reason: "r",
	})
	failed = append(failed, CriterionResult{
		Name: "m1", Importance: ruleset.ImportanceMedium, Reason: "r",
	})

	got := buildSuggestions(failed)

	// Header counts all four critical misses, bullets stop at three.
	// Medium misses never appear.
	require.Len(t, got, 6)
	assert.Equal(t, "⚠️ 关键指标未达标（4项）：", got[0])
	assert.Equal(t, "  • c3: r", got[3])
	assert.Equal(t, "📊 重要指标需改善（1项）：", got[4])
	assert.Equal(t, "  • h1: r", got[5])
}

func TestBuildSuggestionsEmpty(t *testing.T) {
	assert.Empty(t, buildSuggestions(nil))
}

func TestIndustryAdjustmentPassthrough(t *testing.T) {
	cfg, err := ruleset.LoadBuiltinScreener("quality_screener")
	require.NoError(t, err)

	e := New(cfg, zap.NewNop())
	with := e.Screen(qualityCurrent(), qualityHistory(), "银行")
	without := e.Screen(qualityCurrent(), qualityHistory(), "")

	// No merge strategy installed: the adjustment is a logged no-op.
	assert.Equal(t, without.ResultType, with.ResultType)
	assert.Equal(t, without.TotalPassRate(), with.TotalPassRate())
}

type thresholdDrop struct{}

func (thresholdDrop) Apply(cfg *ruleset.Screener, industry string) *ruleset.Screener {
	clone := *cfg
	clone.Categories = []ruleset.ScreeningCategory{{
		Name: "adjusted", Description: "d",
		Criteria: []ruleset.Criterion{simpleCriterion("roe", 0.05, ruleset.ImportanceMedium)},
	}}
	return &clone
}

func TestIndustryAdjustmentStrategy(t *testing.T) {
	cfg, err := ruleset.LoadBuiltinScreener("quality_screener")
	require.NoError(t, err)

	e := New(cfg, zap.NewNop()).WithAdjustment(thresholdDrop{})
	result := e.Screen(metrics.Snapshot{"roe": 0.08}, nil, "银行")

	require.Len(t, result.CategoryResults, 1)
	assert.Equal(t, "adjusted", result.CategoryResults[0].Name)
	assert.True(t, result.Passed)
}

func boolPtr(v bool) *bool { return &v }
