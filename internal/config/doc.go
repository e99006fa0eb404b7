// Package config defines the controller settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills defaults for every omitted field, so a missing or empty
// file yields a working simulated controller.
package config
