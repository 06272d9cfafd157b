// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionInfo = struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}{Version: "dev", Commit: "none", Date: "unknown", Go: runtime.Version()}

// SetVersion sets the build information reported by the version command.
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// NewVersionCmd creates the version command.
func NewVersionCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.jsonOutput {
				return printJSON(cmd.OutOrStdout(), versionInfo)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ShopSignal %s\n", versionInfo.Version)
			fmt.Fprintf(out, "  Commit: %s\n", versionInfo.Commit)
			fmt.Fprintf(out, "  Built:  %s\n", versionInfo.Date)
			fmt.Fprintf(out, "  Go:     %s\n", versionInfo.Go)
			return nil
		},
	}
}
