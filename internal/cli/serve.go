package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/scheduler"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions

	// Ready is closed once the scheduler has started (for testing).
	Ready chan struct{}

	// Signals replaces OS signal delivery when set (for testing).
	Signals chan os.Signal
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder scheduler",
		Long: `Run the background reminder scheduler.

A pass runs immediately and then once per notify.interval (default 24h).
Each pass records reminders for warranties near expiry and mails them.
SIGHUP runs an extra pass now, or waits for the one already running.
SIGINT or SIGTERM stops the scheduler after the current pass.

Example:
  warranty serve --db ./warranty.db
  warranty serve --config ./warranty.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	app, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.Logger

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// A legacy database may still carry duplicates; the index is retried on every start.
	if err := app.Store.EnsureWarrantyIndex(ctx); err != nil {
		logger.Warn("warranty uniqueness index not in place; run 'warranty item dedupe' for affected users", "error", err)
	}

	interval, err := app.Config.Interval()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid interval", err)
	}

	sched := scheduler.New(func(ctx context.Context) error {
		_, err := app.Notifier.RunBatch(ctx)
		return err
	}, interval, logger)

	sigChan := opts.Signals
	if sigChan == nil {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigChan) // Prevent signal handler leak
	}

	// On-demand passes must finish before the store closes.
	var onDemand sync.WaitGroup
	handlerDone := make(chan struct{})
	defer func() {
		cancel()
		<-handlerDone
		onDemand.Wait()
	}()

	go func() {
		defer close(handlerDone)
		for {
			select {
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					onDemand.Add(1)
					go func() {
						defer onDemand.Done()
						runOnDemand(ctx, sched, logger)
					}()
					continue
				}
				logger.Info("received signal, shutting down", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				// Parent context cancelled (e.g., from test)
				return
			}
		}
	}()

	logger.Info("scheduler starting", "db", app.Config.Database.Path, "interval", interval)
	if err := sched.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start scheduler", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Scheduler started. Press Ctrl-C to stop.")
	if opts.Ready != nil {
		close(opts.Ready)
	}

	<-ctx.Done()
	sched.Stop()

	logger.Info("scheduler stopped gracefully", "passes", sched.Passes())
	return nil
}

// runOnDemand runs a pass outside the schedule. A pass already in progress
// is shared rather than repeated.
func runOnDemand(ctx context.Context, sched *scheduler.Scheduler, logger *slog.Logger) {
	logger.Info("on-demand reminder pass requested")
	if err := sched.RunNow(ctx); err != nil && ctx.Err() == nil {
		logger.Error("on-demand pass failed", "error", err)
	}
}
