// Package analyzer implements the weighted-points scoring engine.
// It walks a scoring rule set category by category, matches each metric
// against its ordered rule list (first match wins), and aggregates the
// points into a graded, explainable result.
package analyzer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/condexpr"
	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/ruleset"
)

// Reason strings surfaced on metric scores. Kept verbatim from the
// reference rule sets so reports read the same across implementations.
const (
	CommentMissingData = "数据缺失"
	CommentNoRuleMatch = "未匹配到评分规则"
)

// Fallback recommendation when the total score lands outside every
// configured range.
const (
	fallbackAction    = "观察"
	fallbackReasoning = "评分异常，建议人工审核"
	fallbackRiskLevel = "未知"
)

// Engine scores metric snapshots against one scoring rule set.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	cfg *ruleset.Framework
	log *zap.Logger
}

// New builds a scoring engine. A nil logger falls back to the global.
func New(cfg *ruleset.Framework, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.L()
	}
	return &Engine{cfg: cfg, log: log}
}

// Framework returns the rule set this engine evaluates.
func (e *Engine) Framework() *ruleset.Framework { return e.cfg }

// Analyze evaluates one snapshot and always returns a complete result.
// Data-level problems (missing metrics, broken conditions) degrade to
// zero scores with diagnostic comments; they never abort the analysis.
func (e *Engine) Analyze(snap metrics.Snapshot) *Result {
	var (
		categoryScores []CategoryScore
		totalScore     float64
		maxScore       float64
	)

	for _, category := range e.cfg.Categories {
		cs := e.evaluateCategory(category, snap)
		categoryScores = append(categoryScores, cs)
		totalScore += cs.Score
		maxScore += cs.MaxScore
	}

	action, reasoning, riskLevel := e.recommend(totalScore)
	alerts := e.checkRiskAlerts(snap)

	result := &Result{
		FrameworkName:        e.cfg.Name,
		FrameworkDescription: e.cfg.Description,
		TotalScore:           totalScore,
		MaxScore:             maxScore,
		CategoryScores:       categoryScores,
		Recommendation:       action,
		Reasoning:            reasoning,
		RiskLevel:            riskLevel,
		RiskAlerts:           alerts,
	}

	e.log.Info("analyzer: analysis complete",
		zap.String("framework", e.cfg.Name),
		zap.Float64("total_score", totalScore),
		zap.Float64("max_score", maxScore),
		zap.String("grade", result.Grade()),
	)
	return result
}

func (e *Engine) evaluateCategory(category ruleset.ScoringCategory, snap metrics.Snapshot) CategoryScore {
	var (
		metricScores []MetricScore
		score        float64
	)

	for _, mc := range category.Metrics {
		value, ok := snap.Get(mc.Name)

		ms := MetricScore{
			Name:        mc.Name,
			DisplayName: mc.DisplayName,
			MaxScore:    mc.Weight,
			Unit:        mc.Unit,
		}
		if ok {
			v := value
			ms.Value = &v
			ms.Score, ms.Comment = e.evaluateMetric(mc, value)
		} else {
			ms.Comment = CommentMissingData
		}

		metricScores = append(metricScores, ms)
		score += ms.Score
	}

	return CategoryScore{
		Name:        category.Name,
		Description: category.Description,
		Score:       score,
		MaxScore:    category.Weight,
		Metrics:     metricScores,
	}
}

// evaluateMetric walks the rules in declared order. The first matching
// conditional rule wins; a default rule is terminal regardless of what
// follows it. A condition that fails to evaluate counts as unmatched so
// one bad rule cannot blank out the rest of the report.
func (e *Engine) evaluateMetric(mc ruleset.Metric, value float64) (float64, string) {
	for _, rule := range mc.Rules {
		if rule.IsDefault() {
			return *rule.Default, rule.Comment
		}

		matched, err := condexpr.EvalVar(rule.Condition, value)
		if err != nil {
			e.log.Warn("analyzer: condition evaluation failed",
				zap.String("metric", mc.Name),
				zap.String("condition", rule.Condition),
				zap.Float64("value", value),
				zap.Error(err),
			)
			continue
		}
		if matched {
			return rule.Score, rule.Comment
		}
	}
	return 0, CommentNoRuleMatch
}

func (e *Engine) recommend(totalScore float64) (action, reasoning, riskLevel string) {
	for _, rec := range e.cfg.Recommendations {
		if totalScore >= rec.ScoreRange[0] && totalScore <= rec.ScoreRange[1] {
			return rec.Action, rec.Reasoning, rec.RiskLevel
		}
	}
	return fallbackAction, fallbackReasoning, fallbackRiskLevel
}

// checkRiskAlerts evaluates each alert condition against the full
// metrics namespace. A condition referencing a missing metric is an
// expected skip; anything else is logged and skipped.
func (e *Engine) checkRiskAlerts(snap metrics.Snapshot) []string {
	var alerts []string
	ns := map[string]float64(snap)

	for _, alert := range e.cfg.RiskAlerts {
		triggered, err := condexpr.Eval(alert.Condition, ns)
		if err != nil {
			if !condexpr.IsUndefinedVariable(err) {
				e.log.Warn("analyzer: risk alert evaluation failed",
					zap.String("condition", alert.Condition),
					zap.Error(err),
				)
			}
			continue
		}
		if triggered {
			alerts = append(alerts, fmt.Sprintf("[%s] %s", alert.Level, alert.Message))
		}
	}
	return alerts
}
