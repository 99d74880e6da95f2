// Package deps reports whether the external binaries the daemon shells out
// to are installed.
package deps
