package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/instance"
	"github.com/sgonzalezm/AlarmMgmt/internal/version"
)

func newRunCmd() *cobra.Command {
	var withConsole bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller until interrupted.",
		Long: `Binds the configured sensors, starts monitoring and turns sensor
notifications into recorded alarms and siren activations.

Only one controller may run at a time; a lock file guards the hardware.
Send SIGUSR1 to silence the siren for the configured silence duration
and SIGUSR2 to cancel the silence. Alarms are still recorded meanwhile.

When stdin is a terminal, or with --console, an operator console reads
commands from stdin: list and read sensors, set simulated sensor states,
toggle night mode and silence. Type "help" at the console for the list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			withConsole = withConsole || isatty.IsTerminal(os.Stdin.Fd())

			return runController(logger.WithName(ctx, "controller"), cmd, withConsole)
		},
	}
	runCmd.Flags().BoolVar(&withConsole, "console", false, "read operator commands from stdin")

	return runCmd
}

func runController(ctx context.Context, cmd *cobra.Command, withConsole bool) error {
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

	bound := a.registerSensors(ctx, cfg.Sensors)

	a.gateway.StartMonitoring(ctx)

	info := a.gateway.Info()
	logger.InfoKV(ctx, "Controller started",
		"version", version.Short(),
		"backend", info.Backend,
		"interrupts", info.Interrupts,
		"sensors", bound,
		"night_mode", cfg.NightMode,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.orch.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		a.gateway.StopMonitoring(context.WithoutCancel(groupCtx))

		return nil
	})

	group.Go(func() error {
		handleSilenceSignals(groupCtx, a)
		return nil
	})

	if withConsole {
		c := &console{orch: a.orch, out: out(cmd)}

		group.Go(func() error {
			c.serve(groupCtx, cmd.InOrStdin())
			return nil
		})
	}

	err = group.Wait()

	closeErr := a.Close(context.WithoutCancel(ctx))

	logger.Info(ctx, "Controller stopped")

	if errors.Is(err, context.Canceled) {
		err = nil
	}

	return errors.Join(err, closeErr)
}

// handleSilenceSignals maps SIGUSR1 and SIGUSR2 onto silence and its cancellation.
func handleSilenceSignals(ctx context.Context, a *app) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)

	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == syscall.SIGUSR2 {
				a.orch.CancelSilence(ctx)
				continue
			}

			a.orch.Silence(ctx, 0)
		}
	}
}
