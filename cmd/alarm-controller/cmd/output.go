package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/instance"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
)

func newOutputCmd() *cobra.Command {
	outputCmd := &cobra.Command{
		Use:   "output",
		Short: "Exercise the siren, status LED and relays.",
	}

	var duration time.Duration

	testCmd := &cobra.Command{
		Use:   "test NAME",
		Short: "Drive a named output high for a while, ignoring silence and night mode.",
		Long: `Drives a named output (siren, status_led, relay_1, relay_2 or any
configured name) high for the given duration, then low again.

The command drives the configured backend, so it refuses to run while
the controller is running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return testOutput(ctx, cmd, args[0], duration)
		},
	}
	testCmd.Flags().DurationVarP(&duration, "duration", "d", orchestrator.DefaultTestOutputDuration,
		"how long the output stays high")

	outputCmd.AddCommand(testCmd)

	return outputCmd
}

func testOutput(ctx context.Context, cmd *cobra.Command, name string, d time.Duration) error {
	if d <= 0 {
		d = orchestrator.DefaultTestOutputDuration
	}

	lock, err := instance.Acquire(ctx, cfg.LockFile)
	if err != nil {
		return err
	}

	defer func() {
		if rerr := lock.Release(); rerr != nil {
			logger.WarnKV(ctx, "Lock not released", "path", cfg.LockFile, "error", rerr)
		}
	}()

	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}

	err = a.orch.TestOutput(ctx, name, d)
	if err == nil {
		fmt.Fprintf(out(cmd), "Output %s high for %s.\n", name, d)

		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
	}

	// Closing the gateway drives every output low.
	return errors.Join(err, a.Close(context.WithoutCancel(ctx)))
}
