// Package main hosts the mediaferry operator CLI.
//
// Commands talk to a running daemon through its admin API for task and socket
// management, and work offline against the configuration and catalog for
// setup chores such as writing a sample config, importing fixtures, and
// minting session tokens.
package main
