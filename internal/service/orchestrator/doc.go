// Package orchestrator is the alarm policy layer.
//
// An Orchestrator turns gateway notifications into ledger alarm records and
// siren activations, honouring temporary silence and night mode. It also
// exposes the commands used by the CLI: module and sensor management,
// manual alarms, acknowledgment, code-protected deactivation, user
// management and output tests. Command failures are reported with the
// ErrNotFound, ErrValidation, ErrDuplicate, ErrDenied and ErrChannelFault
// kinds so callers can render explicit denials.
package orchestrator
