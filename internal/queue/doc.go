// Package queue persists post-upload processing tasks in SQLite.
//
// Tasks move through inactive, active, delayed, complete and failed. Workers
// claim the oldest runnable task of a kind atomically; a failed run either
// goes to delayed with exponential backoff or, once its attempt budget is
// spent, to failed where it stays until an operator restarts or removes it.
//
// Each task records the staging key of its source so cleanup can tell when
// the last task that might read a file has finished.
//
// The database is transient storage for in-flight work. Schema changes bump
// the version in schema.go; operators clear the database to adopt it.
package queue
