// Package stage defines the contract between the workflow manager and the
// per-kind task handlers.
package stage
