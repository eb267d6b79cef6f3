package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fundlens/screener-cli/internal/ruleset"
)

var frameworksCmd = &cobra.Command{
	Use:   "frameworks",
	Short: "List built-in rule sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		builtins, err := ruleset.Builtins()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tCATEGORIES\tDESCRIPTION")
		for _, b := range builtins {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", b.Name, b.Kind, b.Categories, b.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(frameworksCmd)
}
