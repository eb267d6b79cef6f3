package report

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/fundlens/screener-cli/internal/analyzer"
	"github.com/fundlens/screener-cli/internal/screener"
)

func f64(v float64) *float64 { return &v }

func sampleAnalysis() *analyzer.Result {
	return &analyzer.Result{
		FrameworkName:        "value_investing",
		FrameworkDescription: "价值投资评分",
		TotalScore:           84,
		MaxScore:             100,
		CategoryScores: []analyzer.CategoryScore{
			{
				Name: "盈利能力", Description: "d", Score: 30, MaxScore: 40,
				Metrics: []analyzer.MetricScore{
					{Name: "roe", DisplayName: "净资产收益率", Value: f64(0.18), Score: 30, MaxScore: 30, Comment: "优秀", Unit: "%"},
					{Name: "gross_margin", DisplayName: "毛利率", Value: nil, Score: 0, MaxScore: 10, Comment: "数据缺失"},
				},
			},
			{
				Name: "估值水平", Description: "d", Score: 10, MaxScore: 10,
				Metrics: []analyzer.MetricScore{
					{Name: "pe_ratio", DisplayName: "市盈率", Value: f64(12.5), Score: 10, MaxScore: 10, Comment: "低估"},
				},
			},
		},
		Recommendation: "增持",
		Reasoning:      "基本面良好",
		RiskLevel:      "低",
		RiskAlerts:     []string{"[中] 应收账款增速偏高"},
	}
}

func sampleScreening() *screener.Result {
	return &screener.Result{
		FrameworkName:        "quality_screener",
		FrameworkDescription: "优质股筛选",
		Passed:               false,
		ResultType:           screener.ResultPartial,
		CategoryResults: []screener.CategoryResult{
			{
				Name: "盈利质量", Description: "d", Required: true, Passed: false,
				CriteriaResults: []screener.CriterionResult{
					{Name: "ROE达标", Passed: true, ActualValue: f64(0.2), Threshold: f64(0.15), Operator: ">=", Importance: "critical", Reason: "实际值: 20.00%"},
					{Name: "毛利率达标", Passed: false, ActualValue: f64(0.2), Threshold: f64(0.3), Operator: ">=", Importance: "high", Reason: "实际值: 20.00%"},
				},
			},
		},
		FailedCriteria: []screener.CriterionResult{
			{Name: "毛利率达标", Passed: false, Importance: "high", Reason: "实际值: 20.00%"},
		},
		Suggestions: []string{"📊 重要指标需改善（1项）：", "  • 毛利率达标: 实际值: 20.00%"},
	}
}

func TestRenderAnalysisText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAnalysisText(&buf, "600519", sampleAnalysis()))

	out := buf.String()
	assert.Contains(t, out, "600519")
	assert.Contains(t, out, "净资产收益率")
	assert.Contains(t, out, "18.00%")
	assert.Contains(t, out, "数据缺失")
	assert.Contains(t, out, "总分: 84.0/100 (84.0%)")
	assert.Contains(t, out, "评级: A")
	assert.Contains(t, out, "增持")
	assert.Contains(t, out, "[中] 应收账款增速偏高")
}

func TestRenderScreeningText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderScreeningText(&buf, "600519", sampleScreening()))

	out := buf.String()
	assert.Contains(t, out, "quality_screener")
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "ROE达标")
	assert.Contains(t, out, "❌")
	assert.Contains(t, out, "结果: partial")
	assert.Contains(t, out, "通过率: 50%")
	assert.Contains(t, out, "毛利率达标: 实际值: 20.00%")
}

func TestWriteAnalysisCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisCSV(&buf, "600519", sampleAnalysis()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// header + 3 metrics + total
	require.Len(t, records, 5)
	assert.Equal(t, []string{"symbol", "category", "metric", "value", "score", "max_score", "comment"}, records[0])
	assert.Equal(t, "roe", records[1][2])
	assert.Equal(t, "-", records[2][3], "missing value renders as dash")
	assert.Equal(t, "total", records[4][1])
	assert.Equal(t, "84", records[4][4])
}

func TestWriteScreeningCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScreeningCSV(&buf, "600519", sampleScreening()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// header + 2 criteria + verdict
	require.Len(t, records, 4)
	assert.Equal(t, "ROE达标", records[1][2])
	assert.Equal(t, "true", records[1][3])
	assert.Equal(t, "verdict", records[3][1])
	assert.Equal(t, "partial", records[3][2])
}

func TestWriteAnalysisXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.xlsx")
	require.NoError(t, WriteAnalysisXLSX(path, "600519", sampleAnalysis()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, "总览", f.Sheets[0].Name)
	assert.Equal(t, "盈利能力", f.Sheets[1].Name)
	assert.Equal(t, "估值水平", f.Sheets[2].Name)

	// Category sheet has header + one row per metric.
	assert.Len(t, f.Sheets[1].Rows, 3)
}

func TestWriteScreeningXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screening.xlsx")
	require.NoError(t, WriteScreeningXLSX(path, "600519", sampleScreening()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, "结论", f.Sheets[0].Name)
	assert.Equal(t, "盈利质量", f.Sheets[1].Name)
}

func TestSheetNameTruncation(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	assert.Len(t, []rune(sheetName(long)), 31)
	assert.Equal(t, "short", sheetName("short"))
}
