package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fundlens/screener-cli/internal/ruleset"
)

var lintCmd = &cobra.Command{
	Use:   "lint FILE",
	Short: "Check a rule-set file for problems",
	Long: `Parse a YAML rule set and report structural problems: weight sums,
unparsable conditions, unreachable rules, unknown check types. Exits
non-zero when errors are found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		problems, err := lintFile(args[0])
		if err != nil {
			return err
		}

		for _, p := range problems {
			fmt.Fprintln(os.Stdout, p.String())
		}
		if ruleset.HasErrors(problems) {
			return eris.Errorf("lint: %s has errors", args[0])
		}
		fmt.Fprintf(os.Stdout, "%s: ok (%d warnings)\n", args[0], len(problems))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func lintFile(path string) ([]ruleset.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lint: read %s", path)
	}

	var head struct {
		Kind ruleset.Kind `yaml:"kind"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrapf(err, "lint: parse %s", path)
	}

	if head.Kind == ruleset.KindScreening {
		s, err := ruleset.ParseScreener(data)
		if err != nil {
			return nil, err
		}
		return ruleset.LintScreener(s), nil
	}

	f, err := ruleset.ParseFramework(data)
	if err != nil {
		return nil, err
	}
	return ruleset.LintFramework(f), nil
}
