// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	uibridge "github.com/buke/ui-bridge"
	"github.com/buke/ui-bridge/internal/config"
	"github.com/buke/ui-bridge/internal/logging"
	"github.com/buke/ui-bridge/internal/sim"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Engine       string
	Windows      int
	Queries      int
	ThreadChecks bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions, cfg config.Config) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulated editing session",
		Long: `Run a simulated editing session.

The worker opens the windows, types into them and paints them while a
simulated input method queries selections from its own goroutine and the
main side restarts input connections.

Example:
  uibridge-demo run --engine quickjs --windows 5 --queries 1000
  UIBRIDGE_ENGINE=v8 uibridge-demo run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Engine, "engine", "e", cfg.Engine, fmt.Sprintf("editor core engine %v", EngineNames()))
	cmd.Flags().IntVarP(&opts.Windows, "windows", "w", cfg.Windows, "number of windows to open")
	cmd.Flags().IntVarP(&opts.Queries, "queries", "q", cfg.Queries, "selection queries issued by the input method")
	cmd.Flags().BoolVar(&opts.ThreadChecks, "thread-checks", cfg.ThreadChecks, "reject worker-only calls made on other threads")

	return cmd
}

func runSession(cmd *cobra.Command, opts *RunOptions) error {
	settings := config.Config{
		Engine:       opts.Engine,
		Windows:      opts.Windows,
		Queries:      opts.Queries,
		LogFile:      opts.LogFile,
		ThreadChecks: opts.ThreadChecks,
		Production:   opts.Production,
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	factory, err := engineFactory(opts.Engine)
	if err != nil {
		return err
	}

	sessionID := uuid.New()
	logger := logging.New(logging.Options{
		File:       opts.LogFile,
		Production: opts.Production,
		Verbose:    opts.Verbose,
		Console:    cmd.ErrOrStderr(),
	})
	defer logger.Close()
	log := logger.With(zap.String("session", sessionID.String()))

	log.Info("Starting session",
		zap.String("engine", opts.Engine),
		zap.Int("windows", opts.Windows),
		zap.Int("queries", opts.Queries),
		zap.Bool("threadChecks", opts.ThreadChecks),
	)

	session, err := sim.NewSession(sim.SessionConfig{
		Engine:       factory,
		Windows:      opts.Windows,
		Queries:      opts.Queries,
		ThreadChecks: opts.ThreadChecks,
		Logger:       logger.Slog().With("session", sessionID.String()),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := session.Run(ctx)
	if err != nil {
		log.Error("Session failed", zap.Error(err))
		return err
	}
	log.Info("Session finished",
		zap.Duration("duration", report.Duration),
		zap.Uint32("jobs", report.Jobs),
		zap.Uint32("tasks", report.Tasks),
		zap.Uint64("answered", report.Answered),
		zap.Uint64("declined", report.Declined),
		zap.Uint64("violations", report.Violations),
	)

	printReport(cmd.OutOrStdout(), sessionID, opts.Engine, report)
	if report.Violations > 0 {
		return fmt.Errorf("%d toolkit calls were made on the wrong thread", report.Violations)
	}
	return nil
}

func printReport(w io.Writer, sessionID uuid.UUID, engine string, r *sim.Report) {
	heading := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)

	heading.Fprintf(w, "Session %s (%s, %s)\n", sessionID, engine, r.Duration.Round(time.Millisecond))
	row := func(name string, format string, args ...interface{}) {
		label.Fprintf(w, "  %-12s", name)
		fmt.Fprintf(w, format+"\n", args...)
	}
	row("windows", "%d opened, %d views", r.Windows, r.Views)
	row("main", "%d jobs, %d synchronous calls", r.Jobs, r.Submitted)
	row("worker", "%d tasks, %d draw ops", r.Tasks, r.DrawOps)
	row("queries", "%d answered, %d spun, %d declined, %d discarded, %d preempted",
		r.Answered, r.Spun, r.Declined, r.Discarded, r.Preempted)
	row("input", "%d restarts, %d invalidates, %d updates, %d anchors",
		r.IM.Restarts, r.IM.Invalidates, r.IM.Updates, r.IM.Anchors)
	row("clipboard", "%q", r.Clipboard)

	windows := make([]int, 0, len(r.Selections))
	for id := range r.Selections {
		windows = append(windows, int(id))
	}
	sort.Ints(windows)
	for _, id := range windows {
		if sel := r.Selections[uibridge.WindowID(id)]; sel != nil {
			row(fmt.Sprintf("window %d", id), "selection %d-%d", sel.Start, sel.End)
		} else {
			row(fmt.Sprintf("window %d", id), "no selection")
		}
	}

	if r.Violations > 0 {
		color.New(color.FgRed).Fprintf(w, "%d thread violations\n", r.Violations)
	} else {
		color.New(color.FgGreen).Fprintln(w, "no thread violations")
	}
}
