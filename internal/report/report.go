// Package report renders analysis and screening results as terminal
// tables, CSV, and XLSX workbooks.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fundlens/screener-cli/internal/analyzer"
	"github.com/fundlens/screener-cli/internal/screener"
)

// printer formats numbers with locale-aware grouping (1,234.5).
var printer = message.NewPrinter(language.English)

// RenderAnalysisText writes a human-readable scoring report.
func RenderAnalysisText(w io.Writer, symbol string, res *analyzer.Result) error {
	fmt.Fprintf(w, "%s — %s\n", symbol, res.FrameworkName)
	if res.FrameworkDescription != "" {
		fmt.Fprintln(w, res.FrameworkDescription)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tMETRIC\tVALUE\tSCORE\tCOMMENT")
	for _, cat := range res.CategoryScores {
		for i, m := range cat.Metrics {
			catName := ""
			if i == 0 {
				catName = cat.Name
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\n",
				catName, m.DisplayName, metricValue(m),
				printer.Sprintf("%.1f", m.Score), printer.Sprintf("%.0f", m.MaxScore),
				m.Comment,
			)
		}
		fmt.Fprintf(tw, "%s 小计\t\t\t%s/%s\t\n",
			cat.Name, printer.Sprintf("%.1f", cat.Score), printer.Sprintf("%.0f", cat.MaxScore))
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: flush table")
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "总分: %s/%s (%.1f%%)  评级: %s\n",
		printer.Sprintf("%.1f", res.TotalScore), printer.Sprintf("%.0f", res.MaxScore),
		res.ScorePercentage(), res.Grade(),
	)
	fmt.Fprintf(w, "建议: %s（%s，风险: %s）\n", res.Recommendation, res.Reasoning, res.RiskLevel)
	for _, alert := range res.RiskAlerts {
		fmt.Fprintln(w, alert)
	}
	return nil
}

// RenderScreeningText writes a human-readable screening report.
func RenderScreeningText(w io.Writer, symbol string, res *screener.Result) error {
	fmt.Fprintf(w, "%s — %s %s\n", symbol, res.FrameworkName, res.StatusIcon())
	if res.FrameworkDescription != "" {
		fmt.Fprintln(w, res.FrameworkDescription)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCRITERION\t\tACTUAL\tTHRESHOLD\tREASON")
	for _, cat := range res.CategoryResults {
		fmt.Fprintf(tw, "%s %s\t\t\t\t\t\n", cat.Name, cat.StatusIcon())
		for _, cr := range cat.CriteriaResults {
			fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s %s\t%s\n",
				cr.Name, cr.StatusIcon(),
				floatCell(cr.ActualValue), cr.Operator, floatCell(cr.Threshold),
				cr.Reason,
			)
		}
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: flush table")
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "结果: %s  通过率: %.0f%%\n", res.ResultType, res.TotalPassRate()*100)
	for _, s := range res.Suggestions {
		fmt.Fprintln(w, s)
	}
	return nil
}

// WriteAnalysisCSV writes one row per metric plus a trailing total row.
func WriteAnalysisCSV(w io.Writer, symbol string, res *analyzer.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"symbol", "category", "metric", "value", "score", "max_score", "comment"}); err != nil {
		return eris.Wrap(err, "report: csv header")
	}
	for _, cat := range res.CategoryScores {
		for _, m := range cat.Metrics {
			rec := []string{
				symbol, cat.Name, m.Name, metricValue(m),
				strconv.FormatFloat(m.Score, 'f', -1, 64),
				strconv.FormatFloat(m.MaxScore, 'f', -1, 64),
				m.Comment,
			}
			if err := cw.Write(rec); err != nil {
				return eris.Wrap(err, "report: csv row")
			}
		}
	}
	total := []string{
		symbol, "total", "", "",
		strconv.FormatFloat(res.TotalScore, 'f', -1, 64),
		strconv.FormatFloat(res.MaxScore, 'f', -1, 64),
		res.Recommendation,
	}
	if err := cw.Write(total); err != nil {
		return eris.Wrap(err, "report: csv total")
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: csv flush")
}

// WriteScreeningCSV writes one row per criterion plus a verdict row.
func WriteScreeningCSV(w io.Writer, symbol string, res *screener.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"symbol", "category", "criterion", "passed", "actual", "operator", "threshold", "importance", "reason"}); err != nil {
		return eris.Wrap(err, "report: csv header")
	}
	for _, cat := range res.CategoryResults {
		for _, cr := range cat.CriteriaResults {
			rec := []string{
				symbol, cat.Name, cr.Name, strconv.FormatBool(cr.Passed),
				floatCell(cr.ActualValue), cr.Operator, floatCell(cr.Threshold),
				cr.Importance, cr.Reason,
			}
			if err := cw.Write(rec); err != nil {
				return eris.Wrap(err, "report: csv row")
			}
		}
	}
	verdict := []string{symbol, "verdict", res.ResultType, strconv.FormatBool(res.Passed), "", "", "", "", ""}
	if err := cw.Write(verdict); err != nil {
		return eris.Wrap(err, "report: csv verdict")
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: csv flush")
}

func metricValue(m analyzer.MetricScore) string {
	if m.Value == nil {
		return "-"
	}
	if m.Unit == "%" {
		return printer.Sprintf("%.2f%%", *m.Value*100)
	}
	return printer.Sprintf("%.2f", *m.Value)
}

func floatCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
