package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Load snapshot JSON files into the store",
	Long: `Import one or more snapshot files produced by the external data
extraction tooling. Each file holds a symbol and its reporting periods;
existing periods are overwritten.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		total := 0
		for _, path := range args {
			n, err := importFile(ctx, st, path)
			if err != nil {
				return err
			}
			total += n
		}

		zap.L().Info("import complete",
			zap.Int("files", len(args)),
			zap.Int("snapshots", total),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importFile(ctx context.Context, st store.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "import: read %s", path)
	}

	var sf model.SnapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return 0, eris.Wrapf(err, "import: parse %s", path)
	}
	if sf.Symbol == "" {
		return 0, eris.Errorf("import: %s: symbol is required", path)
	}
	if len(sf.Periods) == 0 {
		return 0, eris.Errorf("import: %s: no periods", path)
	}

	stock := model.Stock{Symbol: sf.Symbol, Name: sf.Name, Industry: sf.Industry}
	if err := st.UpsertStock(ctx, stock); err != nil {
		return 0, err
	}

	for _, p := range sf.Periods {
		if p.Period == "" {
			return 0, eris.Errorf("import: %s: period label is required", path)
		}
		if err := st.SaveSnapshot(ctx, sf.Symbol, p.Period, p.Metrics); err != nil {
			return 0, err
		}
	}

	zap.L().Info("imported snapshots",
		zap.String("symbol", sf.Symbol),
		zap.Int("periods", len(sf.Periods)),
		zap.String("file", path),
	)
	return len(sf.Periods), nil
}
