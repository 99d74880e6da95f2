// Package staging sweeps the directory that holds uploaded bytes between
// the end of a transfer and the completion of their post-processing tasks.
// Entries still referenced by a queued, running, delayed or failed task are
// never removed.
package staging
