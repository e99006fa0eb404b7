package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
)

// ErrUnknownChannel is returned when the host exposes no pin for a channel.
var ErrUnknownChannel = errors.New("unknown gpio channel")

// PeriphBackend drives real GPIO lines through periph.io.
type PeriphBackend struct {
	mu   sync.Mutex
	pins map[int]gpio.PinIO
}

// NewPeriphBackend initialises the host drivers.
// It fails on hosts without a supported GPIO controller.
func NewPeriphBackend() (*PeriphBackend, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	return &PeriphBackend{pins: make(map[int]gpio.PinIO)}, nil
}

// Name implements Backend.
func (*PeriphBackend) Name() string {
	return "periph"
}

// Simulated implements Backend.
func (*PeriphBackend) Simulated() bool {
	return false
}

// ConfigureInput implements Backend.
func (b *PeriphBackend) ConfigureInput(channel int, pull domain.PullBias, edges bool) error {
	p, err := b.pin(channel)
	if err != nil {
		return err
	}

	bias := gpio.PullDown
	if pull == domain.PullUp {
		bias = gpio.PullUp
	}

	edge := gpio.NoEdge
	if edges {
		edge = gpio.BothEdges
	}

	if err = p.In(bias, edge); err != nil {
		return fmt.Errorf("configure input %s: %w", p, err)
	}

	return nil
}

// ReleaseInput keeps the pull configuration and disables edge detection.
func (b *PeriphBackend) ReleaseInput(channel int) error {
	p, err := b.pin(channel)
	if err != nil {
		return err
	}

	if err = p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("release input %s: %w", p, err)
	}

	return nil
}

// ConfigureOutput implements Backend.
func (b *PeriphBackend) ConfigureOutput(channel int) error {
	p, err := b.pin(channel)
	if err != nil {
		return err
	}

	if err = p.Out(gpio.Low); err != nil {
		return fmt.Errorf("configure output %s: %w", p, err)
	}

	return nil
}

// Read implements Backend.
func (b *PeriphBackend) Read(channel int) (Level, error) {
	p, err := b.pin(channel)
	if err != nil {
		return Low, err
	}

	return Level(p.Read() == gpio.High), nil
}

// Write implements Backend.
func (b *PeriphBackend) Write(channel int, level Level) error {
	p, err := b.pin(channel)
	if err != nil {
		return err
	}

	if err = p.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	return nil
}

// SupportsInterrupts implements Backend.
func (*PeriphBackend) SupportsInterrupts() bool {
	return true
}

// WaitForEdge implements Backend.
func (b *PeriphBackend) WaitForEdge(channel int, timeout time.Duration) bool {
	p, err := b.pin(channel)
	if err != nil {
		time.Sleep(timeout)
		return false
	}

	return p.WaitForEdge(timeout)
}

// Close halts every pin touched by the backend.
func (b *PeriphBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error

	for ch, p := range b.pins {
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", p, err))
		}

		delete(b.pins, ch)
	}

	return errors.Join(errs...)
}

func (b *PeriphBackend) pin(channel int) (gpio.PinIO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pins[channel]; ok {
		return p, nil
	}

	p := gpioreg.ByName(strconv.Itoa(channel))
	if p == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}

	b.pins[channel] = p

	return p, nil
}
