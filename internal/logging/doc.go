// Package logging provides logging utilities for onyx.
//
// This package provides two categories of output:
//   - Debug logging: structured logs via slog, enabled with --verbose
//   - User output: formatted status lines for the person at the terminal
//
// # Debug Logging
//
//	logging.Debug("mounting", "target", target, "fstype", "proc")
//	logging.Warn("isolation degraded", "level", level)
//
// Sessions log through ForSession so every line carries the session id:
//
//	log := logging.ForSession(id, image)
//	log.Warn("unprivileged overlay chain failed, falling back")
//
// # User Output
//
//	logging.UserInfo("Opening %s...", name)
//	logging.UserSuccess("Image %s created", name)
//	logging.UserWarning("running without a private mount namespace")
//	logging.UserError("apply-delta failed: %v", err)
//
// UserInfo and UserSuccess write to Stdout, UserWarning and UserError to
// Stderr. Both writers can be swapped in tests.
package logging
