// Package logging provides structured logging for Freebox Bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Security
//
// Never log the app token, session tokens, or MQTT credentials.
// Log token prefixes only when identification is genuinely needed.
package logging
