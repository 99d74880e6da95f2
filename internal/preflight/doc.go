// Package preflight provides readiness checks for the filesystem paths,
// listen addresses, storage backend and external tools mediaferryd needs.
//
// mediaferryd --check runs RunAll and CheckSystemDeps and prints the results
// without starting any listeners.
package preflight
