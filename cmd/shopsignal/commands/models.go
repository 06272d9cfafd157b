// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewModelsCmd creates the models command.
func NewModelsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered model versions",
		Long: `List every registered version of the configured model with its
stage, backend, training time and evaluation metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			versions, err := a.Registry.List(cmd.Context(), a.Config.Recommend.ModelName)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return printJSON(cmd.OutOrStdout(), versions)
			}
			if len(versions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No versions registered for %s\n", a.Config.Recommend.ModelName)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tSTAGE\tBACKEND\tTRAINED\tCOVERAGE\tNOVELTY")
			for _, mv := range versions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.4f\t%.4f\n",
					mv.Version, mv.Stage, mv.Backend,
					mv.TrainedAt.Format("2006-01-02 15:04"),
					mv.Metrics["coverage"], mv.Metrics["novelty"])
			}
			return w.Flush()
		},
	}
}
