package screener

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/ruleset"
)

// checkCriterion dispatches on the criterion's check type. An unknown
// type fails with a diagnostic instead of aborting: rule files may be
// newer than the binary.
func (e *Engine) checkCriterion(criterion ruleset.Criterion, current metrics.Snapshot, history metrics.History) CriterionResult {
	switch criterion.CheckType {
	case ruleset.CheckSimple:
		return e.checkSimple(criterion, current)
	case ruleset.CheckConsecutiveYears:
		return e.checkConsecutiveYears(criterion, history)
	case ruleset.CheckCAGR:
		return e.checkCAGR(criterion, history)
	case ruleset.CheckLatestQuarter:
		// No quarterly data source is wired in; the snapshot stands in
		// for the latest quarter.
		return e.checkSimple(criterion, current)
	case ruleset.CheckCompareBenchmark:
		return e.checkCompareBenchmark(criterion, current)
	case ruleset.CheckNegativeScreen:
		return e.checkNegativeScreen(criterion, current)
	case ruleset.CheckRating:
		return e.checkRating(criterion, current)
	case ruleset.CheckHistoricalPercentile:
		return e.checkHistoricalPercentile(criterion, current, history)
	case ruleset.CheckVolatility:
		return e.checkVolatility(criterion, history)
	case ruleset.CheckValuationExpansion:
		return e.checkValuationExpansion(criterion, history)
	}

	e.log.Warn("screener: unsupported check type",
		zap.String("criterion", criterion.Name),
		zap.String("check_type", criterion.CheckType),
	)
	return failResult(criterion, "不支持的检查类型")
}

// failResult builds a failed CriterionResult carrying the criterion's
// configured threshold and operator for diagnostics.
func failResult(criterion ruleset.Criterion, reason string) CriterionResult {
	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      false,
		Threshold:   criterion.Threshold,
		Operator:    criterion.Operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason:      reason,
	}
}

func (e *Engine) checkSimple(criterion ruleset.Criterion, current metrics.Snapshot) CriterionResult {
	value, ok := current.Get(criterion.Metric)
	if !ok {
		return failResult(criterion, "数据缺失")
	}
	if criterion.Threshold == nil {
		return failResult(criterion, "缺少阈值配置")
	}

	passed := compare(value, criterion.Operator, *criterion.Threshold)
	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      passed,
		ActualValue: &value,
		Threshold:   criterion.Threshold,
		Operator:    criterion.Operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason:      fmt.Sprintf("实际值: %s", formatValue(value, criterion.Metric)),
	}
}

// checkConsecutiveYears counts a contiguous run from the most recent
// year backward in which every year satisfies the condition. The count
// stops at the first miss: one recent failure zeroes the streak even if
// older years pass. This is stricter than "N of the last N years".
func (e *Engine) checkConsecutiveYears(criterion ruleset.Criterion, history metrics.History) CriterionResult {
	required := criterion.Years
	if len(history) < required {
		return failResult(criterion, fmt.Sprintf("历史数据不足（需要%d年）", required))
	}
	if criterion.Threshold == nil {
		return failResult(criterion, "缺少阈值配置")
	}

	consecutive := 0
	var values []float64
	for _, snap := range history[:required] {
		value, ok := snap.Get(criterion.Metric)
		if !ok {
			break
		}
		values = append(values, value)
		if !compare(value, criterion.Operator, *criterion.Threshold) {
			break
		}
		consecutive++
	}

	actual := float64(consecutive)
	threshold := float64(required)
	display := values
	if len(display) > 3 {
		display = display[:3]
	}
	formatted := make([]string, len(display))
	for i, v := range display {
		formatted[i] = formatValue(v, criterion.Metric)
	}

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      consecutive >= required,
		ActualValue: &actual,
		Threshold:   &threshold,
		Operator:    ">=",
		Importance:  criterion.ImportanceOrDefault(),
		Reason: fmt.Sprintf("连续%d/%d年满足条件，近年值: [%s]",
			consecutive, required, strings.Join(formatted, ", ")),
	}
}

func (e *Engine) checkCAGR(criterion ruleset.Criterion, history metrics.History) CriterionResult {
	operator := criterion.Operator
	if operator == "" {
		operator = ">"
	}
	if len(history) < criterion.Years {
		r := failResult(criterion, fmt.Sprintf("历史数据不足（需要%d年）", criterion.Years))
		r.Operator = operator
		return r
	}
	if criterion.Threshold == nil {
		return failResult(criterion, "缺少阈值配置")
	}

	cagr, err := metrics.CAGR(history, criterion.Metric, criterion.Years)
	if err != nil {
		r := failResult(criterion, "数据缺失或无效")
		r.Operator = operator
		return r
	}

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      compare(cagr, operator, *criterion.Threshold),
		ActualValue: &cagr,
		Threshold:   criterion.Threshold,
		Operator:    operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason:      fmt.Sprintf("%d年CAGR: %.1f%%", criterion.Years, cagr*100),
	}
}

func (e *Engine) checkCompareBenchmark(criterion ruleset.Criterion, current metrics.Snapshot) CriterionResult {
	benchmark := 0.025
	if criterion.BenchmarkValue != nil {
		benchmark = *criterion.BenchmarkValue
	}

	value, ok := current.Get(criterion.Metric)
	if !ok {
		r := failResult(criterion, "数据缺失")
		r.Threshold = &benchmark
		return r
	}

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      compare(value, criterion.Operator, benchmark),
		ActualValue: &value,
		Threshold:   &benchmark,
		Operator:    criterion.Operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason:      fmt.Sprintf("实际: %.2f%%, 基准: %.2f%%", value*100, benchmark*100),
	}
}

// checkNegativeScreen verifies a violation counter equals its expected
// value (typically zero). A missing counter reads as zero: no record of
// violations is the pass case, not missing data.
func (e *Engine) checkNegativeScreen(criterion ruleset.Criterion, current metrics.Snapshot) CriterionResult {
	value, ok := current.Get(criterion.Metric)
	if !ok {
		value = 0
	}
	threshold := 0.0
	if criterion.Threshold != nil {
		threshold = *criterion.Threshold
	}

	passed := value == threshold
	reason := "无违规记录"
	if !passed {
		reason = fmt.Sprintf("发现%.0f条违规记录", value)
	}

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      passed,
		ActualValue: &value,
		Threshold:   &threshold,
		Operator:    "==",
		Importance:  criterion.ImportanceOrDefault(),
		Reason:      reason,
	}
}

// checkRating compares a rating ordinally: both the value and the
// threshold must appear in the configured scale, and the value's
// position must not be below the threshold's.
func (e *Engine) checkRating(criterion ruleset.Criterion, current metrics.Snapshot) CriterionResult {
	value, ok := current.Get(criterion.Metric)
	if !ok {
		r := failResult(criterion, "无评级数据")
		r.Operator = ">="
		return r
	}
	if criterion.Threshold == nil {
		return failResult(criterion, "缺少阈值配置")
	}

	valueIdx := scaleIndex(criterion.RatingScale, value)
	thresholdIdx := scaleIndex(criterion.RatingScale, *criterion.Threshold)
	if valueIdx < 0 || thresholdIdx < 0 {
		r := failResult(criterion, fmt.Sprintf("评级无效: %v", value))
		r.ActualValue = &value
		r.Operator = ">="
		return r
	}

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      valueIdx >= thresholdIdx,
		ActualValue: &value,
		Threshold:   criterion.Threshold,
		Operator:    ">=",
		Importance:  criterion.ImportanceOrDefault(),
		Reason:      fmt.Sprintf("评级: %v", value),
	}
}

func scaleIndex(scale []float64, v float64) int {
	for i, s := range scale {
		if s == v {
			return i
		}
	}
	return -1
}

// checkHistoricalPercentile compares the current value against a
// percentile of its own history, e.g. "current PE below the 5-year
// median". At least three valid historical points are required.
func (e *Engine) checkHistoricalPercentile(criterion ruleset.Criterion, current metrics.Snapshot, history metrics.History) CriterionResult {
	years := criterion.Years
	if years <= 0 {
		years = 5
	}
	if len(history) < years {
		return failResult(criterion, fmt.Sprintf("历史数据不足（需要%d年）", years))
	}

	value, ok := current.Get(criterion.Metric)
	if !ok {
		return failResult(criterion, "当前数据缺失")
	}

	series := metrics.PositiveSeries(history, criterion.Metric, years)
	if len(series) < 3 {
		r := failResult(criterion, fmt.Sprintf("有效历史数据不足（仅%d个）", len(series)))
		r.ActualValue = &value
		return r
	}

	var threshold float64
	switch criterion.PercentileType {
	case "mean":
		threshold = metrics.Mean(series)
	case "25th":
		threshold = metrics.Quartile(series, 1)
	case "75th":
		threshold = metrics.Quartile(series, 3)
	default: // median
		threshold = metrics.Median(series)
	}

	relative := 0.0
	if threshold > 0 {
		relative = value / threshold
	}
	percentileName := criterion.PercentileType
	if percentileName == "" {
		percentileName = "median"
	}

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      compare(value, criterion.Operator, threshold),
		ActualValue: &value,
		Threshold:   &threshold,
		Operator:    criterion.Operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason: fmt.Sprintf("当前: %s, %d年%s: %s, 相对位置: %.2fx",
			formatValue(value, criterion.Metric), years, percentileName,
			formatValue(threshold, criterion.Metric), relative),
	}
}

// checkVolatility measures the coefficient of variation (stdev/mean)
// over the metric's recent history. A zero mean makes the ratio
// undefined; that case fails by policy rather than by producing a
// sentinel number.
func (e *Engine) checkVolatility(criterion ruleset.Criterion, history metrics.History) CriterionResult {
	years := criterion.Years
	if years <= 0 {
		years = 5
	}
	if len(history) < years {
		return failResult(criterion, fmt.Sprintf("历史数据不足（需要%d年）", years))
	}
	if criterion.Threshold == nil {
		return failResult(criterion, "缺少阈值配置")
	}

	series := metrics.PositiveSeries(history, criterion.Metric, years)
	if len(series) < 3 {
		return failResult(criterion, fmt.Sprintf("有效数据不足（仅%d个）", len(series)))
	}

	mean := metrics.Mean(series)
	if mean == 0 {
		r := failResult(criterion, "均值为0，波动率无法定义")
		r.Degenerate = true
		return r
	}
	stdev := metrics.Stdev(series)
	volatility := stdev / mean

	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      compare(volatility, criterion.Operator, *criterion.Threshold),
		ActualValue: &volatility,
		Threshold:   criterion.Threshold,
		Operator:    criterion.Operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason: fmt.Sprintf("%d年波动率: %.1f%%, 均值: %s, 标准差: %.2f",
			years, volatility*100, formatValue(mean, criterion.Metric), stdev),
	}
}

// checkValuationExpansion compares market-cap CAGR with profit CAGR.
// A ratio above the threshold means the price ran ahead of the
// business. Non-positive profit growth makes the ratio meaningless and
// fails by policy.
func (e *Engine) checkValuationExpansion(criterion ruleset.Criterion, history metrics.History) CriterionResult {
	years := criterion.Years
	if years <= 0 {
		years = 5
	}
	marketCapMetric := criterion.MarketCapMetric
	if marketCapMetric == "" {
		marketCapMetric = "market_cap"
	}
	profitMetric := criterion.ProfitMetric
	if profitMetric == "" {
		profitMetric = "net_profit"
	}

	if len(history) < years {
		return failResult(criterion, fmt.Sprintf("历史数据不足（需要%d年）", years))
	}
	if criterion.Threshold == nil {
		return failResult(criterion, "缺少阈值配置")
	}

	endCap, okEndCap := history[0].Get(marketCapMetric)
	startCap, okStartCap := history[years-1].Get(marketCapMetric)
	endProfit, okEndProfit := history[0].Get(profitMetric)
	startProfit, okStartProfit := history[years-1].Get(profitMetric)
	if !okEndCap || !okStartCap || !okEndProfit || !okStartProfit {
		return failResult(criterion, "市值或利润数据缺失")
	}
	if startCap <= 0 || startProfit <= 0 {
		return failResult(criterion, "起始数据无效（≤0）")
	}

	marketCapCAGR := math.Pow(endCap/startCap, 1/float64(years)) - 1
	profitCAGR := math.Pow(endProfit/startProfit, 1/float64(years)) - 1

	if profitCAGR <= 0 {
		r := failResult(criterion, fmt.Sprintf("利润负增长（%.1f%%），估值扩张率无意义", profitCAGR*100))
		r.Degenerate = true
		return r
	}

	ratio := marketCapCAGR / profitCAGR
	return CriterionResult{
		Name:        criterion.Name,
		Description: criterion.Description,
		Passed:      compare(ratio, criterion.Operator, *criterion.Threshold),
		ActualValue: &ratio,
		Threshold:   criterion.Threshold,
		Operator:    criterion.Operator,
		Importance:  criterion.ImportanceOrDefault(),
		Reason: fmt.Sprintf("市值CAGR: %.1f%%, 利润CAGR: %.1f%%, 扩张率: %.2fx",
			marketCapCAGR*100, profitCAGR*100, ratio),
	}
}

// formatValue renders a metric value the way the reports do: ratios and
// margins as percentages (debt ratios excepted, they can exceed 1),
// everything else with two decimals.
func formatValue(v float64, metricName string) string {
	percentish := strings.Contains(metricName, "rate") ||
		strings.Contains(metricName, "margin") ||
		strings.Contains(metricName, "ratio") ||
		strings.Contains(metricName, "yoy") ||
		strings.Contains(metricName, "roe")
	if percentish && !strings.Contains(metricName, "debt") && !strings.Contains(metricName, "pe") {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return fmt.Sprintf("%.2f", v)
}
