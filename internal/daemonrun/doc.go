// Package daemonrun builds every daemon component from configuration and
// runs the daemon until the process receives SIGINT or SIGTERM.
package daemonrun
