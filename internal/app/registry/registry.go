package registry

import (
	"sync"

	"chatrelay/internal/core/contracts"
)

// Registry maps identities to their live connections. It is the only shared
// mutable state on the hot path; every method takes the lock for the shortest
// possible window and no gateway I/O ever happens under it.
type Registry struct {
	mu         sync.RWMutex
	handles    map[string]contracts.Client            // handle id → client
	identities map[string]map[string]contracts.Client // identity → handle id → client
}

func NewRegistry() *Registry {
	return &Registry{
		handles:    make(map[string]contracts.Client),
		identities: make(map[string]map[string]contracts.Client),
	}
}

// Register adds a presence entry for the client. Re-registering the same
// handle is a no-op. Returns true when this is the identity's first live
// connection, i.e. the offline -> online transition.
func (r *Registry) Register(identity string, c contracts.Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.identities[identity]
	if entries == nil {
		entries = make(map[string]contracts.Client)
		r.identities[identity] = entries
	}
	if _, ok := entries[c.ID()]; ok {
		return false
	}
	first := len(entries) == 0
	entries[c.ID()] = c
	r.handles[c.ID()] = c
	return first
}

// Unregister drops the entry for a handle. Unknown handles return ("", false).
// Returns the owning identity and whether its last connection just closed.
func (r *Registry) Unregister(handleID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.handles[handleID]
	if !ok {
		return "", false
	}
	delete(r.handles, handleID)
	identity := c.Identity()
	entries := r.identities[identity]
	delete(entries, handleID)
	if len(entries) == 0 {
		delete(r.identities, identity)
		return identity, true
	}
	return identity, false
}

// HandlesFor returns a snapshot of the identity's live clients.
func (r *Registry) HandlesFor(identity string) []contracts.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.identities[identity]
	if len(entries) == 0 {
		return nil
	}
	out := make([]contracts.Client, 0, len(entries))
	for _, c := range entries {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the identity has at least one live connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities[identity]) > 0
}

// Snapshot returns every live client across all identities.
func (r *Registry) Snapshot() []contracts.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contracts.Client, 0, len(r.handles))
	for _, c := range r.handles {
		out = append(out, c)
	}
	return out
}
