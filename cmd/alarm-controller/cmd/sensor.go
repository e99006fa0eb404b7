package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/instance"
)

func newSensorCmd() *cobra.Command {
	sensorCmd := &cobra.Command{
		Use:   "sensor",
		Short: "Inspect the configured sensors.",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Bind the configured sensors and print their current states.",
		Long: `Binds the sensors from the configuration file and reads each one
through the configured backend.

The command drives the configured backend, so it refuses to run while the
controller is running. Use the console of "run" to inspect a running
controller.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listSensors(cmd.Context(), cmd)
		},
	}

	sensorCmd.AddCommand(listCmd)

	return sensorCmd
}

func listSensors(ctx context.Context, cmd *cobra.Command) error {
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

	if bound := a.registerSensors(ctx, cfg.Sensors); bound < len(cfg.Sensors) {
		fmt.Fprintf(out(cmd), "%d of %d configured sensor(s) could not be bound, see the log.\n",
			len(cfg.Sensors)-bound, len(cfg.Sensors))
	}

	err = printSensors(out(cmd), a.orch.SensorStates(ctx))

	return errors.Join(err, a.Close(context.WithoutCancel(ctx)))
}
