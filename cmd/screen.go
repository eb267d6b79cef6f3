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

	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/report"
	"github.com/fundlens/screener-cli/internal/ruleset"
	"github.com/fundlens/screener-cli/internal/screener"
	"github.com/fundlens/screener-cli/internal/store"
)

var screenCmd = &cobra.Command{
	Use:   "screen SYMBOL",
	Short: "Run the pass/fail screener on a stock",
	Long: `Check a stock against a screening rule set: hard gates over the
latest metrics plus multi-year consistency, growth, and valuation checks
over its history.

Examples:
  screen 600519
  screen AAPL --screener my_screener.yaml --format json
  screen AAPL --input aapl.json --save`,
	Args: cobra.ExactArgs(1),
	RunE: runScreen,
}

func init() {
	f := screenCmd.Flags()
	f.String("screener", "", "screener name or YAML path (default from config)")
	f.String("input", "", "metrics JSON file with history (default: load from store)")
	f.String("format", "table", "output format: table, csv, json, or xlsx")
	f.String("output", "", "output file path (default: stdout)")
	f.String("industry", "", "industry for adjustment lookup (default: from store)")
	f.Bool("save", false, "persist the run to the store")

	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbol := args[0]
	screenerName, _ := cmd.Flags().GetString("screener")
	inputPath, _ := cmd.Flags().GetString("input")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	industry, _ := cmd.Flags().GetString("industry")
	save, _ := cmd.Flags().GetBool("save")

	if !cmd.Flags().Changed("format") && cfg.Report.Format != "" {
		format = cfg.Report.Format
	}
	if screenerName == "" {
		screenerName = cfg.Screen.Screener
	}
	scfg, err := ruleset.ResolveScreener(screenerName)
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
	if industry == "" {
		industry = in.Industry
	}

	result := screener.New(scfg, zap.L()).Screen(in.Metrics, in.History, industry)

	if save {
		payload, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "screen: marshal result")
		}
		run, err := st.CreateRun(ctx, symbol, model.RunKindScreening, scfg.Name, payload)
		if err != nil {
			return err
		}
		zap.L().Info("screening saved", zap.String("run_id", run.ID))
	}

	return writeScreening(symbol, result, format, outputPath)
}

func writeScreening(symbol string, res *screener.Result, format, outputPath string) error {
	if format == "xlsx" {
		if outputPath == "" {
			outputPath = filepath.Join(cfg.Report.OutDir, symbol+"_screening.xlsx")
		}
		return report.WriteScreeningXLSX(outputPath, symbol, res)
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
		return report.RenderScreeningText(out, symbol, res)
	case "csv":
		return report.WriteScreeningCSV(out, symbol, res)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "screen: encode json")
	default:
		return eris.Errorf("screen: --format must be table, csv, json, or xlsx (got %q)", format)
	}
}
