// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/shopsignal/internal/config"
)

// NewTrainCmd creates the train command.
func NewTrainCmd(g *globalOptions) *cobra.Command {
	var (
		transactions string
		backend      string
		promote      bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and register a new model version",
		Long: `Run the training pipeline once: read transactions, aggregate
interactions, fit the model, save and register a new version, evaluate
coverage and novelty, then promote it when --promote (or
RECOMMEND_AUTO_PROMOTE) is set.

Examples:
  shopsignal train --transactions data/transactions.parquet
  shopsignal train --backend cooccurrence --promote=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(func(c *config.Config) {
				if transactions != "" {
					c.Data.TransactionsPath = transactions
				}
				if backend != "" {
					c.Recommend.Backend = backend
				}
				if cmd.Flags().Changed("promote") {
					c.Recommend.AutoPromote = promote
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.Run(cmd.Context())
			if err != nil {
				return err
			}

			if g.jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Model:\t%s v%d (%s)\n", res.Name, res.Version, res.Backend)
			fmt.Fprintf(w, "Transactions:\t%d\n", res.Transactions)
			fmt.Fprintf(w, "Interactions:\t%d (%d customers, %d products)\n", res.Interactions, res.Users, res.Items)
			fmt.Fprintf(w, "Coverage@%d:\t%.4f\n", res.Quality.K, res.Quality.Coverage)
			fmt.Fprintf(w, "Novelty@%d:\t%.4f\n", res.Quality.K, res.Quality.Novelty)
			fmt.Fprintf(w, "Promoted:\t%t\n", res.Promoted)
			if len(res.Artifacts) > 0 {
				fmt.Fprintf(w, "Artifacts:\t%s\n", strings.Join(res.Artifacts, ", "))
			}
			fmt.Fprintf(w, "Duration:\t%s\n", res.Duration)
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&transactions, "transactions", "t", "", "Transaction file (overrides TRANSACTIONS_PATH)")
	cmd.Flags().StringVar(&backend, "backend", "", "Model backend: als or cooccurrence")
	cmd.Flags().BoolVar(&promote, "promote", true, "Promote the new version to Production")
	return cmd
}
