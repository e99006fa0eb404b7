package gateway

import (
	"sync"
	"time"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
)

// SimulatedBackend keeps channel levels in memory.
// It is the first-class backend on hosts without GPIO hardware.
type SimulatedBackend struct {
	mu      sync.Mutex
	inputs  map[int]Level
	outputs map[int]Level
	writes  int
}

// NewSimulatedBackend returns an empty in-memory backend.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{
		inputs:  make(map[int]Level),
		outputs: make(map[int]Level),
	}
}

// Name implements Backend.
func (*SimulatedBackend) Name() string {
	return "simulated"
}

// Simulated implements Backend.
func (*SimulatedBackend) Simulated() bool {
	return true
}

// ConfigureInput sets the channel to its resting level for the bias.
func (b *SimulatedBackend) ConfigureInput(channel int, pull domain.PullBias, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inputs[channel] = Level(pull == domain.PullUp)

	return nil
}

// ReleaseInput forgets the channel level.
func (b *SimulatedBackend) ReleaseInput(channel int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.inputs, channel)

	return nil
}

// ConfigureOutput implements Backend.
func (b *SimulatedBackend) ConfigureOutput(channel int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.outputs[channel]; !ok {
		b.outputs[channel] = Low
	}

	return nil
}

// Read implements Backend.
func (b *SimulatedBackend) Read(channel int) (Level, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.inputs[channel], nil
}

// Write records the level driven on channel.
func (b *SimulatedBackend) Write(channel int, level Level) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outputs[channel] = level
	b.writes++

	return nil
}

// SupportsInterrupts implements Backend.
func (*SimulatedBackend) SupportsInterrupts() bool {
	return false
}

// WaitForEdge never observes an edge.
func (*SimulatedBackend) WaitForEdge(_ int, timeout time.Duration) bool {
	time.Sleep(timeout)

	return false
}

// Close implements Backend.
func (b *SimulatedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.outputs {
		b.outputs[ch] = Low
	}

	return nil
}

// Output returns the last level written to channel.
func (b *SimulatedBackend) Output(channel int) Level {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.outputs[channel]
}

// Writes returns how many output writes were recorded.
func (b *SimulatedBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writes
}
