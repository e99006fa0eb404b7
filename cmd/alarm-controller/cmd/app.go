package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sgonzalezm/AlarmMgmt/internal/config"
	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/repository/ledger"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
)

// app wires the ledger, gateway and orchestrator for one command.
type app struct {
	ledger  *ledger.Ledger
	gateway *gateway.Gateway
	orch    *orchestrator.Orchestrator
}

// openApp opens the ledger and builds the gateway. Only commands that own
// the hardware pass hardware=true; the others use the simulated backend so
// they never touch lines driven by a running controller.
func openApp(ctx context.Context, settings *config.Config, hardware bool) (*app, error) {
	l, err := ledger.Open(ctx, settings.DBPath)
	if err != nil {
		return nil, err
	}

	if _, err = l.EnsureBootstrapAdmin(ctx, settings.BootstrapAdmin.Username, settings.BootstrapAdmin.Credential); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("bootstrap administrator: %w", err)
	}

	backend, err := newBackend(settings, hardware)
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	gw := gateway.New(backend, gateway.Options{
		PollInterval: settings.Gateway.PollInterval,
		Debounce:     settings.Gateway.Debounce,
		StopTimeout:  settings.Gateway.StopTimeout,
		Outputs:      settings.Outputs,
	})

	orch := orchestrator.New(l, gw, orchestrator.Options{
		AlarmDuration:    settings.AlarmDuration,
		DeactivationCode: settings.DeactivationCode,
		NightMode:        settings.NightMode,
		SilenceDuration:  settings.SilenceDuration,
		Notifications:    settings.Notifications,
	})

	return &app{ledger: l, gateway: gw, orch: orch}, nil
}

func newBackend(settings *config.Config, hardware bool) (gateway.Backend, error) {
	if !hardware || settings.Gateway.Backend != config.BackendPeriph {
		return gateway.NewSimulatedBackend(), nil
	}

	backend, err := gateway.NewPeriphBackend()
	if err != nil {
		return nil, fmt.Errorf("gpio backend: %w", err)
	}

	return backend, nil
}

// registerSensors binds the configured sensors. A sensor that cannot be
// bound is logged and skipped.
func (a *app) registerSensors(ctx context.Context, sensors []config.Sensor) int {
	bound := 0

	for _, s := range sensors {
		err := a.orch.RegisterSensor(ctx, gateway.Binding{
			ModuleID:  s.ModuleID,
			Channel:   s.Channel,
			Polarity:  s.Polarity,
			Pull:      s.Pull,
			AlarmType: s.AlarmType,
		})
		if err != nil {
			logger.WarnKV(ctx, "Sensor not bound", "module_id", s.ModuleID, "channel", s.Channel, "error", err)
			continue
		}

		bound++
	}

	return bound
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.gateway.Close(ctx), a.ledger.Close())
}

// withApp opens the app without hardware, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := a.Close(ctx); cerr != nil {
			logger.WarnKV(ctx, "Close failed", "error", cerr)
		}
	}()

	return fn(a)
}
