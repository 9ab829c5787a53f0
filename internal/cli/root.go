// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the uibridge-demo commands.
package cli

import (
	"fmt"

	"github.com/buke/ui-bridge/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	LogFile    string
	Production bool
	NoColor    bool
}

// NewRootCommand creates the root command. cfg supplies the flag defaults.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "uibridge-demo",
		Short: "Drive the UI bridge with a simulated toolkit",
		Long: `uibridge-demo runs an editor core on a worker thread against an in-memory
toolkit, input method and renderer, and reports how the two threads
cooperated.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.NoColor {
				color.NoColor = true
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on the console")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", cfg.LogFile, "rotated JSON log file (empty to disable)")
	cmd.PersistentFlags().BoolVar(&opts.Production, "production", cfg.Production, "JSON console logging")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewRunCommand(opts, cfg))
	cmd.AddCommand(NewEnginesCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "uibridge-demo %s\n", Version)
		},
	}
}

// NewEnginesCommand creates the engines command.
func NewEnginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the available editor core engines",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range EngineNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
