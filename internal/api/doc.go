// Package api defines the admin surface of the daemon: wire-format DTOs, the
// task manager service that backs them, the chi routes that serve them, and
// the HTTP client the CLI uses to call them.
//
// # Key Types
//
// Task: transport representation of a queued task with its payload and
// progress.
//
// Client: one connected websocket client as seen by the registry.
//
// TaskManagerView: the GET /taskmanager document. Each section is present
// only when requested through the fields query parameter.
//
// DaemonStatus: pid, lock path, queue counts, lane health and staging usage.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Queue statuses and kinds are exposed as
// lowercase strings. Timestamps use RFC3339 with milliseconds in UTC.
// Errors map to status codes through the services markers and the queue
// sentinels: not found is 404, an active task is 409, validation is 400.
package api
