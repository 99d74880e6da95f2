package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"mediaferry/internal/media"
)

var (
	// ErrUnknownConnection is returned by Kick for ids not in the registry.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrTargetHeld is returned when another connection is uploading to the entity.
	ErrTargetHeld = errors.New("entity is locked by another upload")
)

// Registry is the process-wide table of live connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers a connection.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()
}

// Remove drops a connection and reports whether it was present. Removing an
// unknown id is a no-op so disconnect handling stays idempotent.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Get returns a registered connection.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Kick removes a connection and terminates its transport.
func (r *Registry) Kick(id string) error {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	conn.close("kicked by administrator")
	return nil
}

// Uploading returns the entity ids targeted by in-flight uploads.
func (r *Registry) Uploading() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{})
	for _, conn := range r.conns {
		conn.mu.Lock()
		if id, ok := conn.uploadEntityLocked(); ok {
			set[id] = struct{}{}
		}
		conn.mu.Unlock()
	}
	return sortedKeys(set)
}

// Downloading returns the entity ids locked by in-flight downloads.
func (r *Registry) Downloading() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{})
	for _, conn := range r.conns {
		conn.mu.Lock()
		for id := range conn.downloading {
			set[id] = struct{}{}
		}
		conn.mu.Unlock()
	}
	return sortedKeys(set)
}

// Locked returns the union of uploading and downloading entity ids.
func (r *Registry) Locked() []string {
	set := make(map[string]struct{})
	for _, id := range r.Uploading() {
		set[id] = struct{}{}
	}
	for _, id := range r.Downloading() {
		set[id] = struct{}{}
	}
	return sortedKeys(set)
}

// Snapshot returns every connection's info ordered by connect time.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.conns))
	for _, conn := range r.conns {
		infos = append(infos, conn.Info())
	}
	r.mu.RUnlock()
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return infos
}

// UploadTargetHeld reports whether any connection other than except holds an
// upload target on entityID. Download locks are not considered.
func (r *Registry) UploadTargetHeld(entityID, except string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.uploadTargetHeldLocked(entityID, except)
}

// ReserveUpload performs the exclusivity scan and stashes the upload target
// on conn under one registry lock, so two connections cannot both pass the
// scan for the same entity.
func (r *Registry) ReserveUpload(conn *Connection, ref media.SourceRef, hash, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uploadTargetHeldLocked(ref.MainID, conn.ID()) {
		return ErrTargetHeld
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.state != StateUploading {
		return ErrNotUploading
	}
	conn.setUploadTargetLocked(ref, hash, filename)
	return nil
}

func (r *Registry) uploadTargetHeldLocked(entityID, except string) bool {
	for id, conn := range r.conns {
		if id == except {
			continue
		}
		conn.mu.Lock()
		held, ok := conn.uploadEntityLocked()
		conn.mu.Unlock()
		if ok && held == entityID {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
