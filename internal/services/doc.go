// Package services defines shared utilities consumed by the transfer handlers,
// task processors and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, task kinds, connection IDs and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, used by the task workers
//     to decide whether a failure is worth another attempt.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
