// Package logging provides structured logging for Gray Media Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text, console (phsym/console-slog) and dev (golang-cz/devslog) output
//   - Errors and client addresses rendered uniformly (samber/slog-formatter)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, console, dev
//	  output: "stdout"   # stdout, stderr
//	  add_source: false
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("renderer identified", "addr", addr, "profile", p)
//	logger.Error("failed to connect", "error", err)
//
// Never log secrets, tokens or passwords.
package logging
