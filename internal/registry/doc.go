// Package registry tracks live transfer connections and derives entity locks
// from their state.
//
// A Connection's transfer state is only changed by its own handlers; the
// Registry reads it to answer which entities are locked, uploading or
// downloading. Lock views are always recomputed from the connections and
// never cached.
//
// Lock order is Registry then Connection. Connection methods never take the
// registry lock.
package registry
