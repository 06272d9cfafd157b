// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/shopsignal/internal/app"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

type predictOptions struct {
	customer string
	k        int
	input    string
	output   string
	version  int
}

// NewPredictCmd creates the predict command.
func NewPredictCmd(g *globalOptions) *cobra.Command {
	opts := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Recommend products for one customer or a batch file",
		Long: `Load the Production model (or --version) and recommend products.

With --customer a single request is answered in the same shape as the
HTTP API. With --input and --output every row of the input file
(customer_id and an optional k column) is scored and written in long
form: one row per recommendation, rank 0 for customers without any.

Examples:
  shopsignal predict --customer c42 -k 10
  shopsignal predict --input customers.csv --output recs.parquet
  shopsignal predict --customer c42 --version 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			single := opts.customer != ""
			batch := opts.input != "" || opts.output != ""
			switch {
			case single && batch:
				return errors.New("--customer cannot be combined with --input/--output")
			case batch && (opts.input == "" || opts.output == ""):
				return errors.New("batch mode needs both --input and --output")
			case !single && !batch:
				return errors.New("either --customer or --input/--output is required")
			}

			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			loaded, err := loadModel(cmd, a, opts.version)
			if err != nil {
				return err
			}
			if single {
				return predictOne(cmd, g, a, opts)
			}
			return predictBatch(cmd, g, a, loaded, opts)
		},
	}
	cmd.Flags().StringVar(&opts.customer, "customer", "", "Customer id to recommend for")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 0, "Number of recommendations (default from RECOMMEND_DEFAULT_K)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Batch input file (CSV or Parquet)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Batch output file (CSV or Parquet)")
	cmd.Flags().IntVar(&opts.version, "version", 0, "Model version to use instead of Production")
	return cmd
}

func loadModel(cmd *cobra.Command, a *app.App, version int) (*recommend.Loaded, error) {
	if version > 0 {
		return a.Loader.LoadVersion(cmd.Context(), version)
	}
	loaded, _, err := a.Loader.LoadProduction(cmd.Context())
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func predictOne(cmd *cobra.Command, g *globalOptions, a *app.App, opts *predictOptions) error {
	k := opts.k
	if !cmd.Flags().Changed("k") {
		k = a.Config.Recommend.DefaultK
	}
	resp := recommend.Serve(a.Handle, recommend.Request{CustomerID: opts.customer, K: k})

	if g.jsonOutput {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	if !resp.OK {
		return fmt.Errorf("predict %s: %s", opts.customer, *resp.Error)
	}

	out := cmd.OutOrStdout()
	if resp.ColdStart {
		fmt.Fprintf(out, "%s is unknown to model v%d (cold start)\n", opts.customer, resp.ModelVersion)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPRODUCT\tSCORE")
	for i, rec := range resp.RecList {
		fmt.Fprintf(w, "%d\t%s\t%.6f\n", i+1, rec.ItemID, rec.Score)
	}
	return w.Flush()
}

func predictBatch(cmd *cobra.Command, g *globalOptions, a *app.App, loaded *recommend.Loaded, opts *predictOptions) error {
	rows, err := a.DB.ReadPredictRows(cmd.Context(), opts.input)
	if err != nil {
		return err
	}
	results, err := recommend.BatchPredict(loaded.Recommender, rows, a.Config.Recommend.BatchWorkers)
	if err != nil {
		return err
	}
	if err := a.DB.WritePredictions(cmd.Context(), opts.output, results); err != nil {
		return err
	}

	cold := 0
	for _, r := range results {
		if r.ColdStart {
			cold++
		}
	}
	summary := struct {
		Output    string `json:"output"`
		Customers int    `json:"customers"`
		ColdStart int    `json:"cold_start"`
		Version   int    `json:"model_version"`
	}{opts.output, len(results), cold, loaded.Info.Version}

	if g.jsonOutput {
		return printJSON(cmd.OutOrStdout(), summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d customers (%d cold start) to %s using model v%d\n",
		summary.Customers, summary.ColdStart, summary.Output, summary.Version)
	return nil
}
