package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/store"
)

var (
	runsKind  string
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [SYMBOL]",
	Short: "List saved analysis and screening runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.RunFilter{Kind: model.RunKind(runsKind), Limit: runsLimit}
		if len(args) == 1 {
			filter.Symbol = args[0]
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		printRuns(runs)
		return nil
	},
}

func printRuns(runs []model.Run) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tKIND\tFRAMEWORK\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Symbol, r.Kind, r.Framework, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	fmt.Printf("\n%d runs\n", len(runs))
}

func init() {
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "filter by kind (analysis or screening)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(runsCmd)
}
