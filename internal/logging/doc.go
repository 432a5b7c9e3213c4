// Package logging provides slog-based structured logging with console and
// JSON handlers plus helpers for component-scoped loggers and standardized
// attribute keys.
package logging
