package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/analyzer"
	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/report"
	"github.com/fundlens/screener-cli/internal/ruleset"
	"github.com/fundlens/screener-cli/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Score a stock against a weighted framework",
	Long: `Score a stock's latest metrics against a scoring framework.

Metrics come from --input JSON or from the store. --framework accepts a
built-in name (see the frameworks command) or a path to a YAML file.

Examples:
  analyze 600519
  analyze 600519 --framework growth_investing --format csv
  analyze AAPL --input aapl.json --save
  analyze AAPL --format xlsx --output aapl.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("framework", "", "framework name or YAML path (default from config)")
	f.String("input", "", "metrics JSON file (default: load from store)")
	f.String("format", "table", "output format: table, csv, json, or xlsx")
	f.String("output", "", "output file path (default: stdout; required for xlsx)")
	f.Bool("save", false, "persist the run to the store")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbol := args[0]
	frameworkName, _ := cmd.Flags().GetString("framework")
	inputPath, _ := cmd.Flags().GetString("input")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	if !cmd.Flags().Changed("format") && cfg.Report.Format != "" {
		format = cfg.Report.Format
	}
	if frameworkName == "" {
		frameworkName = cfg.Analyze.Framework
	}
	framework, err := ruleset.ResolveFramework(frameworkName)
	if err != nil {
		return err
	}

	var st store.Store
	if inputPath == "" || save {
		if st, err = openStore(ctx); err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}

	var in *inputFile
	if inputPath != "" {
		in, err = loadInputFile(inputPath)
	} else {
		in, err = storeInput(ctx, st, symbol)
	}
	if err != nil {
		return err
	}

	result := analyzer.New(framework, zap.L()).Analyze(in.Metrics)

	if save {
		payload, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "analyze: marshal result")
		}
		run, err := st.CreateRun(ctx, symbol, model.RunKindAnalysis, framework.Name, payload)
		if err != nil {
			return err
		}
		zap.L().Info("analysis saved", zap.String("run_id", run.ID))
	}

	return writeAnalysis(symbol, result, format, outputPath)
}

func writeAnalysis(symbol string, res *analyzer.Result, format, outputPath string) error {
	if format == "xlsx" {
		if outputPath == "" {
			outputPath = filepath.Join(cfg.Report.OutDir, symbol+"_analysis.xlsx")
		}
		return report.WriteAnalysisXLSX(outputPath, symbol, res)
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "create output %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	switch format {
	case "table":
		return report.RenderAnalysisText(out, symbol, res)
	case "csv":
		return report.WriteAnalysisCSV(out, symbol, res)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "analyze: encode json")
	default:
		return eris.Errorf("analyze: --format must be table, csv, json, or xlsx (got %q)", format)
	}
}
