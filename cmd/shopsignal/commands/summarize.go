// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/shopsignal/internal/database"
)

// NewSummarizeCmd creates the summarize command.
func NewSummarizeCmd(g *globalOptions) *cobra.Command {
	var (
		customers []string
		products  []string
		minQty    float64
	)
	cmd := &cobra.Command{
		Use:   "summarize <transactions-file>",
		Short: "Summarize a transaction file",
		Long: `Count rows, refunds, distinct customers and products, and the
non-refunded quantity in a CSV or Parquet transaction file.

Examples:
  shopsignal summarize data/transactions.parquet
  shopsignal summarize tx.csv --customer c1 --customer c2
  shopsignal summarize tx.csv --min-quantity 2 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := database.TransactionFilter{Customers: customers, Products: products}
			if cmd.Flags().Changed("min-quantity") {
				filter.MinQuantity = &minQty
			}
			s, err := a.DB.SummarizeTransactions(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}

			if g.jsonOutput {
				return printJSON(cmd.OutOrStdout(), s)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Rows:\t%d\n", s.Rows)
			fmt.Fprintf(w, "Refunds:\t%d\n", s.Refunds)
			fmt.Fprintf(w, "Customers:\t%d\n", s.Customers)
			fmt.Fprintf(w, "Products:\t%d\n", s.Products)
			fmt.Fprintf(w, "Quantity:\t%g\n", s.Quantity)
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&customers, "customer", nil, "Only count these customer ids")
	cmd.Flags().StringSliceVar(&products, "product", nil, "Only count these product ids")
	cmd.Flags().Float64Var(&minQty, "min-quantity", 0, "Only count lines with at least this quantity")
	return cmd
}
