package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/fundlens/screener-cli/internal/analyzer"
	"github.com/fundlens/screener-cli/internal/screener"
)

// WriteAnalysisXLSX writes a workbook with one sheet per category plus a
// summary sheet.
func WriteAnalysisXLSX(path, symbol string, res *analyzer.Result) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("总览")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStringRow(summary, "symbol", symbol)
	addStringRow(summary, "framework", res.FrameworkName)
	addFloatRow(summary, "total_score", res.TotalScore)
	addFloatRow(summary, "max_score", res.MaxScore)
	addFloatRow(summary, "percentage", res.ScorePercentage())
	addStringRow(summary, "grade", res.Grade())
	addStringRow(summary, "recommendation", res.Recommendation)
	addStringRow(summary, "risk_level", res.RiskLevel)
	for _, alert := range res.RiskAlerts {
		addStringRow(summary, "risk_alert", alert)
	}

	for _, cat := range res.CategoryScores {
		sheet, err := f.AddSheet(sheetName(cat.Name))
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %s", cat.Name)
		}
		header := sheet.AddRow()
		for _, h := range []string{"metric", "value", "score", "max_score", "comment"} {
			header.AddCell().Value = h
		}
		for _, m := range cat.Metrics {
			row := sheet.AddRow()
			row.AddCell().Value = m.DisplayName
			if m.Value != nil {
				row.AddCell().SetFloat(*m.Value)
			} else {
				row.AddCell().Value = "-"
			}
			row.AddCell().SetFloat(m.Score)
			row.AddCell().SetFloat(m.MaxScore)
			row.AddCell().Value = m.Comment
		}
	}

	return eris.Wrap(f.Save(path), "xlsx: save")
}

// WriteScreeningXLSX writes a workbook with one sheet per category plus
// a verdict sheet.
func WriteScreeningXLSX(path, symbol string, res *screener.Result) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("结论")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStringRow(summary, "symbol", symbol)
	addStringRow(summary, "screener", res.FrameworkName)
	addStringRow(summary, "result", res.ResultType)
	addFloatRow(summary, "pass_rate", res.TotalPassRate())
	for _, s := range res.Suggestions {
		addStringRow(summary, "suggestion", s)
	}

	for _, cat := range res.CategoryResults {
		sheet, err := f.AddSheet(sheetName(cat.Name))
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %s", cat.Name)
		}
		header := sheet.AddRow()
		for _, h := range []string{"criterion", "passed", "actual", "operator", "threshold", "importance", "reason"} {
			header.AddCell().Value = h
		}
		for _, cr := range cat.CriteriaResults {
			row := sheet.AddRow()
			row.AddCell().Value = cr.Name
			row.AddCell().SetBool(cr.Passed)
			if cr.ActualValue != nil {
				row.AddCell().SetFloat(*cr.ActualValue)
			} else {
				row.AddCell().Value = "-"
			}
			row.AddCell().Value = cr.Operator
			if cr.Threshold != nil {
				row.AddCell().SetFloat(*cr.Threshold)
			} else {
				row.AddCell().Value = "-"
			}
			row.AddCell().Value = cr.Importance
			row.AddCell().Value = cr.Reason
		}
	}

	return eris.Wrap(f.Save(path), "xlsx: save")
}

// sheetName trims a category name to the 31-character Excel limit.
func sheetName(name string) string {
	runes := []rune(name)
	if len(runes) > 31 {
		return string(runes[:31])
	}
	return name
}

func addStringRow(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().Value = key
	row.AddCell().Value = value
}

func addFloatRow(sheet *xlsx.Sheet, key string, value float64) {
	row := sheet.AddRow()
	row.AddCell().Value = key
	row.AddCell().SetFloat(value)
}
