package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/ruleset"
	"github.com/fundlens/screener-cli/internal/screener"
	"github.com/fundlens/screener-cli/internal/store"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Screen every stock in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		screenerName, _ := cmd.Flags().GetString("screener")
		save, _ := cmd.Flags().GetBool("save")
		if screenerName == "" {
			screenerName = cfg.Screen.Screener
		}
		scfg, err := ruleset.ResolveScreener(screenerName)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stocks, err := st.ListStocks(ctx)
		if err != nil {
			return err
		}

		rows, err := processBatch(ctx, st, scfg, stocks, batchLimit, cfg.Batch.MaxConcurrentStocks, cfg.Batch.RatePerSecond, save)
		if err != nil {
			return err
		}
		return printBatchSummary(os.Stdout, rows)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of stocks to screen (0=all)")
	batchCmd.Flags().String("screener", "", "screener name or YAML path (default from config)")
	batchCmd.Flags().Bool("save", false, "persist each run to the store")
	rootCmd.AddCommand(batchCmd)
}

// batchRow is one stock's verdict in the summary table.
type batchRow struct {
	Symbol   string
	Result   string
	PassRate float64
	Err      string
}

// processBatch screens stocks concurrently. The limiter paces store
// reads so a large universe does not monopolize the database.
func processBatch(ctx context.Context, st store.Store, scfg *ruleset.Screener, stocks []model.Stock, limit, concurrency int, ratePerSec float64, save bool) ([]batchRow, error) {
	if len(stocks) == 0 {
		zap.L().Info("no stocks in store")
		return nil, nil
	}
	if limit > 0 && len(stocks) > limit {
		stocks = stocks[:limit]
	}

	zap.L().Info("screening batch",
		zap.Int("stocks", len(stocks)),
		zap.Int("concurrency", concurrency),
	)

	limiter := rate.NewLimiter(rate.Limit(ratePerSec), 1)
	engine := screener.New(scfg, zap.L())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu       sync.Mutex
		rows     []batchRow
		passed   atomic.Int64
		rejected atomic.Int64
	)

	for _, stock := range stocks {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return eris.Wrap(err, "batch: rate wait")
			}

			log := zap.L().With(zap.String("symbol", stock.Symbol))
			row := batchRow{Symbol: stock.Symbol}

			in, err := storeInput(gctx, st, stock.Symbol)
			if err != nil {
				row.Err = err.Error()
				log.Warn("skipping stock", zap.Error(err))
			} else {
				result := engine.Screen(in.Metrics, in.History, stock.Industry)
				row.Result = result.ResultType
				row.PassRate = result.TotalPassRate()
				if result.Passed {
					passed.Add(1)
				} else {
					rejected.Add(1)
				}
				if save {
					if err := saveScreeningRun(gctx, st, stock.Symbol, scfg.Name, result); err != nil {
						log.Warn("persist run failed", zap.Error(err))
					}
				}
			}

			mu.Lock()
			rows = append(rows, row)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch screening")
	}

	zap.L().Info("batch complete",
		zap.Int64("passed", passed.Load()),
		zap.Int64("rejected", rejected.Load()),
	)
	return rows, nil
}

func saveScreeningRun(ctx context.Context, st store.Store, symbol, framework string, result *screener.Result) error {
	payload, err := marshalResult(result)
	if err != nil {
		return err
	}
	_, err = st.CreateRun(ctx, symbol, model.RunKindScreening, framework, payload)
	return err
}

func printBatchSummary(out *os.File, rows []batchRow) error {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tRESULT\tPASS RATE")
	for _, r := range rows {
		if r.Err != "" {
			fmt.Fprintf(w, "%s\t-\t%s\n", r.Symbol, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\n", r.Symbol, r.Result, r.PassRate*100)
	}
	return w.Flush()
}
