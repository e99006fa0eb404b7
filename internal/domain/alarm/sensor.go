package alarm

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidPolarity is returned for a polarity other than NO or NC.
	ErrInvalidPolarity = errors.New("invalid polarity")
	// ErrInvalidPullBias is returned for a pull bias other than UP or DOWN.
	ErrInvalidPullBias = errors.New("invalid pull bias")
)

// SensorState is the normalised reading of a sensor.
type SensorState string

const (
	// SensorNormal means the sensor reports its resting condition.
	SensorNormal SensorState = "normal"
	// SensorAlarm means the sensor reports an alarm condition.
	SensorAlarm SensorState = "alarm"
	// SensorUnknown means the sensor is unbound or could not be read.
	SensorUnknown SensorState = "unknown"
)

// ParseSensorState normalises s and reports whether it is normal or alarm.
// Unknown is rejected since it cannot be simulated.
func ParseSensorState(s string) (SensorState, bool) {
	state := SensorState(strings.ToLower(strings.TrimSpace(s)))

	return state, state == SensorNormal || state == SensorAlarm
}

// Polarity describes the resting contact of a sensor.
type Polarity string

const (
	// NormallyOpen sensors signal an alarm with a high level.
	NormallyOpen Polarity = "NO"
	// NormallyClosed sensors signal an alarm with a low level.
	NormallyClosed Polarity = "NC"
)

// Valid reports whether p is NO or NC.
func (p Polarity) Valid() bool {
	return p == NormallyOpen || p == NormallyClosed
}

// StateFor maps a raw input level through the polarity.
func (p Polarity) StateFor(high bool) SensorState {
	if p == NormallyClosed {
		high = !high
	}

	if high {
		return SensorAlarm
	}

	return SensorNormal
}

// LevelFor is the inverse of StateFor: the input level that reads as state.
func (p Polarity) LevelFor(state SensorState) bool {
	high := state == SensorAlarm
	if p == NormallyClosed {
		return !high
	}

	return high
}

// PullBias is the internal resistor configuration of an input.
type PullBias string

const (
	// PullUp biases the input high.
	PullUp PullBias = "UP"
	// PullDown biases the input low.
	PullDown PullBias = "DOWN"
)

// Valid reports whether b is UP or DOWN.
func (b PullBias) Valid() bool {
	return b == PullUp || b == PullDown
}
