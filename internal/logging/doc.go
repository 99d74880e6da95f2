// Package logging assembles structured slog loggers and formatting helpers used
// across mediaferry.
//
// It owns the console/JSON handlers, level and output plumbing, and
// context-aware helpers so transfer and task code automatically tags log lines
// with connection IDs, task IDs and correlation IDs. The daemon tees records
// into a JSON log file next to the console output. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
