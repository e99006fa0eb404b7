package orchestrator

import (
	"errors"
	"fmt"

	"github.com/sgonzalezm/AlarmMgmt/internal/repository/ledger"
)

var (
	// ErrNotFound is returned when a command targets an absent module, alarm,
	// sensor binding or output.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed command arguments.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate is returned when a unique value is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrDenied is returned when a command is refused.
	ErrDenied = errors.New("denied")
	// ErrChannelFault is returned when the gateway could not drive a channel.
	ErrChannelFault = errors.New("channel fault")

	// ErrInvalidDeactivationCode is returned by Deactivate for a wrong code.
	ErrInvalidDeactivationCode = fmt.Errorf("%w: invalid deactivation code", ErrDenied)
	// ErrDeactivationDisabled is returned by Deactivate when no code is configured.
	ErrDeactivationDisabled = fmt.Errorf("%w: no deactivation code configured", ErrDenied)
)

// classify maps ledger errors onto the command error kinds.
// Storage faults pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrModuleNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, ledger.ErrInvalidName),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrInvalidAlarmType),
		errors.Is(err, ledger.ErrInvalidUsername),
		errors.Is(err, ledger.ErrInvalidCredential),
		errors.Is(err, ledger.ErrInvalidRole):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, ledger.ErrDuplicateUsername):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case errors.Is(err, ledger.ErrAuthenticationFailed):
		return fmt.Errorf("%w: %w", ErrDenied, err)
	default:
		return err
	}
}
