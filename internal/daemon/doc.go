// Package daemon coordinates the long-running mediaferry process.
//
// It wires configuration, the task store, the catalog, the workflow manager
// and the websocket transport into a single lifecycle with flock-based
// locking to prevent multiple instances. On start it recovers tasks a crash
// left active and sweeps the staging area; it then serves the transfer
// endpoint and the admin API until stopped.
//
// Keep orchestration logic here: transfer and task semantics live in their
// own packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
