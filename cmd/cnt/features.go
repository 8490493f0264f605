package main

import (
	"fmt"

	"gocnt/adapters/dataset"
	"gocnt/adapters/rng"
	"gocnt/app"
	"gocnt/internal"

	"github.com/spf13/cobra"
)

func newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features [dataset]",
		Short: "List the features of a dataset",
		Long: `List the demographic features of a dataset with their index, mean and
variance. Constant features cannot be studied.

Example: cnt features study/dataset.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.NewDefaultLogger()
			svc := app.NewConnectometryService(dataset.NewLoader(logger), nil, rng.NewSeeded(), nil, logger)
			features, err := svc.Features(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-5s %-24s %12s %12s %8s\n", "index", "feature", "mean", "variance", "missing")
			for _, f := range features {
				note := ""
				if f.Constant() {
					note = "  (constant)"
				}
				fmt.Fprintf(out, "%-5d %-24s %12.4g %12.4g %8d%s\n", f.Index, f.Name, f.Mean, f.Variance, f.Missing, note)
			}
			return nil
		},
	}
}
