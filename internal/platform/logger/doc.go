// Package logger configures the application's structured logging (slog with
// a JSON handler) and provides helpers for carrying a scoped logger through
// a context.
package logger
