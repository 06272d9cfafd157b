// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package commands implements the shopsignal command tree.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tomtom215/shopsignal/internal/app"
	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "shopsignal",
		Short: "Train and query product recommendation models",
		Long: `shopsignal turns purchase transactions into product recommendations.

It aggregates transactions into customer/product interactions, trains an
implicit ALS or co-occurrence model, registers each version and promotes
one to Production for the server to pick up.

Configuration comes from defaults, an optional YAML file (--config or
CONFIG_PATH) and environment variables, exactly as for the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath != "" {
				if err := os.Setenv(config.ConfigPathEnvVar, opts.configPath); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}
			logging.Init(logging.Config{
				Level:     opts.logLevel,
				Format:    "console",
				Timestamp: true,
				Output:    cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")

	cmd.AddCommand(
		NewSummarizeCmd(opts),
		NewTrainCmd(opts),
		NewPromoteCmd(opts),
		NewModelsCmd(opts),
		NewPredictCmd(opts),
		NewVersionCmd(opts),
	)
	return cmd
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// openApp loads configuration, lets mutate adjust it, then opens every
// component.
func openApp(mutate func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return app.Open(cfg, logger())
}

func logger() zerolog.Logger {
	return logging.With().Str("component", "cli").Logger()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
