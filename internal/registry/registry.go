// Package registry tracks the process-wide set of active sessions so the
// transport layer can enforce MaxConcurrentSessions and a graceful
// shutdown can sweep every open connection. Grounded on this pack's
// websocket.Hub (a locked map of active clients with register/unregister
// methods), generalized here from chat clients to media sessions.
package registry

import (
	"errors"
	"sync"
)

// ErrAtCapacity is returned by Register when the registry is already at
// its configured limit (spec.md §5: reject new sessions over the
// concurrent-session cap with a 503, rather than queue or evict).
var ErrAtCapacity = errors.New("registry: at capacity")

// Closer is anything with an idempotent, no-argument shutdown — a
// Session plus its owning peer connection, adapted to one handle.
type Closer interface {
	Close()
}

// Registry is a locked map of active entries keyed by a caller-chosen ID
// (the orchestrator uses a per-connection registration ID).
type Registry struct {
	mu      sync.Mutex
	max     int
	entries map[string]Closer
}

// New returns a Registry that admits at most max concurrent entries.
// max <= 0 means unbounded.
func New(max int) *Registry {
	return &Registry{max: max, entries: make(map[string]Closer)}
}

// Register admits id, returning ErrAtCapacity if the registry is full.
func (r *Registry) Register(id string, c Closer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.entries) >= r.max {
		return ErrAtCapacity
	}
	r.entries[id] = c
	return nil
}

// Unregister removes id without closing it. Use Close to also release
// the underlying resource.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Close unregisters id and closes its entry, if present.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	c, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Len reports the current number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes and removes every registered entry, for graceful
// process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]Closer)
	r.mu.Unlock()
	for _, c := range entries {
		c.Close()
	}
}
