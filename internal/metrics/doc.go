// Package metrics defines the Prometheus collectors exported by the daemon.
//
// All recording methods are nil-safe so components can run without metrics
// in tests.
package metrics
