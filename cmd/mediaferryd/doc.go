// Package main is the mediaferryd daemon entrypoint. It loads configuration,
// then hands control to daemonrun, which owns the process lifecycle.
package main
