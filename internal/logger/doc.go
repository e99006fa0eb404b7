// Package logger wraps zap for the alarm controller.
//
// It keeps one global sugared logger with a console encoder, lets callers
// scope loggers through the context (WithName, WithKV) and offers leveled
// helpers (Infof, WarnKV, ...) that read the logger back from the context.
// Every long-lived component receives a context and logs through it.
package logger
