// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPromoteCmd creates the promote command.
func NewPromoteCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promote [version]",
		Short: "Promote a model version to Production",
		Long: `Move a registered version to Production and archive the previous
Production version. Without an argument the latest version is promoted.
Servers subscribed to model events reload right away; the others pick
the change up on their next registry poll.

Examples:
  shopsignal promote
  shopsignal promote 7`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := 0
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v <= 0 {
					return fmt.Errorf("version must be a positive integer, got %q", args[0])
				}
				version = v
			}

			a, err := openApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			mv, err := a.Pipeline.Promote(cmd.Context(), version)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return printJSON(cmd.OutOrStdout(), mv)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s v%d to %s\n", mv.Name, mv.Version, mv.Stage)
			return nil
		},
	}
}
