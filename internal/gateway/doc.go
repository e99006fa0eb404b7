// Package gateway binds alarm modules to GPIO channels.
//
// A Gateway reads sensors through a Backend, normalises their levels by
// polarity into normal or alarm states, debounces changes and delivers them
// on a notification channel. It also drives the logical outputs (siren,
// status LED, relays) with cancellable timed deactivation.
//
// Two backends exist: SimulatedBackend, used when the host has no GPIO
// hardware, and PeriphBackend, which drives real lines through periph.io.
// Channel faults never abort the process; reads degrade to unknown and
// writes report false.
package gateway
