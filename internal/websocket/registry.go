package websocket

import "sync"

// Registry tracks the live set of connected sessions. Every session's
// control loop mutates it concurrently, so membership changes and
// snapshot reads are mutually exclusive; only the instant of taking a
// snapshot is locked, never the fan-out that iterates it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Connection]struct{}
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Connection]struct{})}
}

// Add registers a session for broadcast delivery.
func (r *Registry) Add(conn *Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn] = struct{}{}
}

// Remove deregisters a session. Removing a session that is not present
// is a no-op, which tolerates double cleanup on racing exit paths.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conn)
}

// Snapshot returns the membership as of the call. Sessions added or
// removed while a fan-out iterates the result are best-effort races the
// dispatcher is built to tolerate.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.sessions))
	for conn := range r.sessions {
		out = append(out, conn)
	}
	return out
}

// Len reports the current number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
