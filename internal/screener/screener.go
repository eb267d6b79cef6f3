// Package screener implements the pass/fail screening engine. Each
// criterion dispatches on its check type (point-in-time comparisons,
// multi-year trend checks, stability and valuation ratios), categories
// aggregate criteria under a tolerance policy, and the overall verdict
// is pass, partial, or fail.
package screener

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/ruleset"
)

// partialPassRate is the mean category pass-rate needed for a partial
// verdict when allow_partial_pass is set.
const partialPassRate = 0.70

// AdjustmentStrategy merges per-industry overrides into a screening rule
// set. The config schema reserves industry_adjustments but no merge
// semantics ship yet; callers can install a strategy once they exist.
type AdjustmentStrategy interface {
	Apply(cfg *ruleset.Screener, industry string) *ruleset.Screener
}

// Engine screens metric snapshots against one screening rule set.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	cfg        *ruleset.Screener
	log        *zap.Logger
	adjustment AdjustmentStrategy
}

// New builds a screening engine. A nil logger falls back to the global.
func New(cfg *ruleset.Screener, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.L()
	}
	return &Engine{cfg: cfg, log: log}
}

// WithAdjustment returns a copy of the engine using the given industry
// adjustment strategy.
func (e *Engine) WithAdjustment(s AdjustmentStrategy) *Engine {
	clone := *e
	clone.adjustment = s
	return &clone
}

// Screener returns the rule set this engine evaluates.
func (e *Engine) Screener() *ruleset.Screener { return e.cfg }

// Screen evaluates one stock and always returns a complete result.
// history is ordered most recent first; industry is optional.
func (e *Engine) Screen(current metrics.Snapshot, history metrics.History, industry string) *Result {
	cfg := e.applyIndustryAdjustments(industry)

	var (
		categoryResults []CategoryResult
		failedCriteria  []CriterionResult
	)

	for _, category := range cfg.Categories {
		cr := e.checkCategory(category, current, history)
		categoryResults = append(categoryResults, cr)
		for _, c := range cr.CriteriaResults {
			if !c.Passed {
				failedCriteria = append(failedCriteria, c)
			}
		}
	}

	passed, resultType := e.determineResult(categoryResults)

	result := &Result{
		FrameworkName:        cfg.Name,
		FrameworkDescription: cfg.Description,
		Passed:               passed,
		ResultType:           resultType,
		CategoryResults:      categoryResults,
		FailedCriteria:       failedCriteria,
		Suggestions:          buildSuggestions(failedCriteria),
	}

	e.log.Info("screener: screening complete",
		zap.String("framework", cfg.Name),
		zap.String("result", resultType),
		zap.Float64("pass_rate", result.TotalPassRate()),
	)
	return result
}

// applyIndustryAdjustments resolves the industry's adjustment block and
// hands it to the installed strategy. Without a strategy this logs the
// adjustment name and returns the config unchanged: the adjustment-merge
// semantics are not implemented yet.
func (e *Engine) applyIndustryAdjustments(industry string) *ruleset.Screener {
	if industry == "" || len(e.cfg.IndustryAdjustments) == 0 {
		return e.cfg
	}
	adj, ok := e.cfg.IndustryAdjustments[industry]
	if !ok {
		return e.cfg
	}
	if e.adjustment != nil {
		return e.adjustment.Apply(e.cfg, industry)
	}
	e.log.Info("screener: industry adjustment defined but not applied",
		zap.String("industry", industry),
		zap.String("adjustment", adj.Name),
	)
	return e.cfg
}

func (e *Engine) checkCategory(category ruleset.ScreeningCategory, current metrics.Snapshot, history metrics.History) CategoryResult {
	var results []CriterionResult
	for _, criterion := range category.Criteria {
		results = append(results, e.checkCriterion(criterion, current, history))
	}

	var passed bool
	if category.IsRequired() {
		passed = allPassed(results)
	} else {
		passed = e.checkWithTolerance(results)
	}

	return CategoryResult{
		Name:            category.Name,
		Description:     category.Description,
		Required:        category.IsRequired(),
		Passed:          passed,
		CriteriaResults: results,
	}
}

func allPassed(results []CriterionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// checkWithTolerance judges an optional category: critical criteria are
// all-or-nothing when critical_must_pass is set, then the high and
// medium tiers each need their minimum pass rate. An empty tier is
// vacuously satisfied.
func (e *Engine) checkWithTolerance(results []CriterionResult) bool {
	tol := e.cfg.Tolerance

	byTier := map[string][]CriterionResult{}
	for _, r := range results {
		byTier[r.Importance] = append(byTier[r.Importance], r)
	}

	if tol.CriticalRequired() && !allPassed(byTier[ruleset.ImportanceCritical]) {
		return false
	}
	if rate, ok := passRate(byTier[ruleset.ImportanceHigh]); ok && rate < tol.HighRate() {
		return false
	}
	if rate, ok := passRate(byTier[ruleset.ImportanceMedium]); ok && rate < tol.MediumRate() {
		return false
	}
	return true
}

func passRate(results []CriterionResult) (float64, bool) {
	if len(results) == 0 {
		return 0, false
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(results)), true
}

func (e *Engine) determineResult(categories []CategoryResult) (bool, string) {
	requiredPassed := true
	for _, c := range categories {
		if c.Required && !c.Passed {
			requiredPassed = false
			break
		}
	}
	if requiredPassed {
		return true, ResultPass
	}

	if e.cfg.Tolerance.AllowPartialPass && len(categories) > 0 {
		var sum float64
		for _, c := range categories {
			sum += c.PassRate()
		}
		if sum/float64(len(categories)) >= partialPassRate {
			return false, ResultPartial
		}
	}
	return false, ResultFail
}

// buildSuggestions summarizes the failed criteria by importance tier,
// at most three bullets per tier.
func buildSuggestions(failed []CriterionResult) []string {
	var critical, high []CriterionResult
	for _, c := range failed {
		switch c.Importance {
		case ruleset.ImportanceCritical:
			critical = append(critical, c)
		case ruleset.ImportanceHigh:
			high = append(high, c)
		}
	}

	var suggestions []string
	if len(critical) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("⚠️ 关键指标未达标（%d项）：", len(critical)))
		for _, c := range limitCriteria(critical, 3) {
			suggestions = append(suggestions, fmt.Sprintf("  • %s: %s", c.Name, c.Reason))
		}
	}
	if len(high) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("📊 重要指标需改善（%d项）：", len(high)))
		for _, c := range limitCriteria(high, 3) {
			suggestions = append(suggestions, fmt.Sprintf("  • %s: %s", c.Name, c.Reason))
		}
	}
	return suggestions
}

func limitCriteria(results []CriterionResult, n int) []CriterionResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}

// compare applies operator between value and threshold. An unknown
// operator yields false, never an error.
func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	case "==":
		return value == threshold
	case "!=":
		return value != threshold
	}
	return false
}
