// Package transfer implements the per-connection download and upload state
// machine.
//
// A connection is Idle, Downloading or Uploading. Every init first checks its
// payload and that the connection is idle, then flips the state before any
// slow work, so a second init on the same connection is rejected as busy.
// Client mistakes are answered with bad_request; server faults, unknown media
// types and upload checksum mismatches are answered with exception. Both
// return the connection to Idle and release its locks, except a busy
// rejection which leaves the running transfer untouched.
//
// A download re-checks the connection state before every chunk, so a
// disconnect or cancel stops the stream without further sends. An upload
// holds its exclusivity lock only until upload_end; the bytes are then
// verified, named, staged and handed to the task queue.
package transfer
