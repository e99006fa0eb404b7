package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
)

const consoleHelp = `Commands:
  sensors                 list bound sensors and their states
  read MODULE_ID          read one sensor
  set MODULE_ID STATE     set a simulated sensor to normal or alarm
  unbind MODULE_ID        drop the sensor binding of a module
  night on|off            toggle night mode
  silence [DURATION]      silence the siren, e.g. "silence 10m"
  unsilence               cancel the silence
  status                  summarise the controller
  help                    show this text`

var errUnknownConsoleCommand = errors.New("unknown command, try help")

// console is the operator prompt of a running controller. It reaches the
// state that only lives in the controller process: sensor bindings, their
// simulated readings, silence and night mode.
type console struct {
	orch *orchestrator.Orchestrator
	out  io.Writer
}

// serve executes one command per input line until ctx is done or the
// input ends. Failed commands are reported and do not stop the console.
func (c *console) serve(ctx context.Context, in io.Reader) {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				logger.Info(ctx, "Console input closed")
				return
			}

			if err := c.exec(ctx, line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

//nolint:cyclop // One case per command.
func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]

	switch {
	case name == "help":
		_, err := fmt.Fprintln(c.out, consoleHelp)
		return err
	case name == "sensors" && len(args) == 0:
		return printSensors(c.out, c.orch.SensorStates(ctx))
	case name == "read" && len(args) == 1:
		return c.read(ctx, args[0])
	case name == "set" && len(args) == 2: //nolint:mnd // MODULE_ID STATE.
		return c.set(ctx, args[0], args[1])
	case name == "unbind" && len(args) == 1:
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		return c.orch.RemoveSensor(ctx, id)
	case name == "night" && len(args) == 1:
		return c.night(ctx, args[0])
	case name == "silence" && len(args) <= 1:
		return c.silence(ctx, args)
	case name == "unsilence" && len(args) == 0:
		if !c.orch.CancelSilence(ctx) {
			_, err := fmt.Fprintln(c.out, "No silence running.")
			return err
		}

		_, err := fmt.Fprintln(c.out, "Silence cancelled.")

		return err
	case name == "status" && len(args) == 0:
		status, err := c.orch.Status(ctx)
		if err != nil {
			return err
		}

		return printStatus(c.out, status)
	default:
		return fmt.Errorf("%w: %q", errUnknownConsoleCommand, line)
	}
}

func (c *console) read(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	state, err := c.orch.ReadSensor(ctx, id)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(c.out, "Module %d: %s\n", id, state)

	return err
}

func (c *console) set(ctx context.Context, arg, state string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	return c.orch.SimulateSensor(ctx, id, state)
}

func (c *console) night(ctx context.Context, arg string) error {
	switch strings.ToLower(arg) {
	case "on":
		c.orch.SetNightMode(ctx, true)
	case "off":
		c.orch.SetNightMode(ctx, false)
	default:
		return fmt.Errorf("%w: night mode is on or off, not %q", orchestrator.ErrValidation, arg)
	}

	_, err := fmt.Fprintf(c.out, "Night mode %s.\n", strings.ToLower(arg))

	return err
}

func (c *console) silence(ctx context.Context, args []string) error {
	var d time.Duration

	if len(args) == 1 {
		var err error
		if d, err = time.ParseDuration(args[0]); err != nil || d <= 0 {
			return fmt.Errorf("%w: %q is not a positive duration", orchestrator.ErrValidation, args[0])
		}
	}

	until := c.orch.Silence(ctx, d)

	_, err := fmt.Fprintf(c.out, "Silenced until %s.\n", when(until))

	return err
}
