package gateway

import (
	"time"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
)

// Level is the electrical level of a channel.
type Level bool

const (
	// Low is the inactive level.
	Low Level = false
	// High is the active level.
	High Level = true
)

// String implements fmt.Stringer.
func (l Level) String() string {
	if l {
		return "high"
	}

	return "low"
}

// Backend is the physical channel layer the gateway drives.
// Channels are addressed by their numeric BCM index.
type Backend interface {
	// Name identifies the backend in logs and Info.
	Name() string
	// Simulated reports whether reads come from the gateway's stored
	// simulated values instead of real hardware.
	Simulated() bool
	// ConfigureInput prepares channel as an input with the given bias,
	// optionally enabling edge detection.
	ConfigureInput(channel int, pull domain.PullBias, edges bool) error
	// ReleaseInput turns edge detection off on a channel no longer bound.
	ReleaseInput(channel int) error
	// ConfigureOutput prepares channel as an output driven low.
	ConfigureOutput(channel int) error
	// Read samples the current level of an input channel.
	Read(channel int) (Level, error)
	// Write drives an output channel.
	Write(channel int, level Level) error
	// SupportsInterrupts reports whether WaitForEdge is meaningful.
	SupportsInterrupts() bool
	// WaitForEdge blocks until an edge on channel or the timeout.
	WaitForEdge(channel int, timeout time.Duration) bool
	// Close releases every channel.
	Close() error
}
