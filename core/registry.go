package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is the record of one live transport session. The registry owns
// these records; everything else references them by ID only.
type Connection struct {
	ID          string
	UserID      string
	Role        string
	ConnectedAt time.Time
}

// Registry tracks live connections and their authenticated identity. A fresh
// connection ID is issued on every registration, so an ID is never reused
// across reconnects.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Connection
	byUser map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Connection),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register creates a connection record for an authenticated user. It fails
// closed when no identity accompanies the handshake.
func (r *Registry) Register(userID, role string) (Connection, error) {
	if userID == "" {
		return Connection{}, ErrAuthenticationRequired
	}
	conn := Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Role:        role,
		ConnectedAt: time.Now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	ids, ok := r.byUser[userID]
	if !ok {
		ids = make(map[string]struct{})
		r.byUser[userID] = ids
	}
	ids[conn.ID] = struct{}{}
	return conn, nil
}

// Unregister removes a connection record. It is idempotent; the second return
// reports whether the connection was still registered.
func (r *Registry) Unregister(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)
	ids := r.byUser[conn.UserID]
	delete(ids, connID)
	if len(ids) == 0 {
		delete(r.byUser, conn.UserID)
	}
	return conn, true
}

func (r *Registry) Lookup(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// ConnectionsForUser returns the IDs of every live connection for a user.
// A user with two browser tabs has two entries here.
func (r *Registry) ConnectionsForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

func (r *Registry) IsUserConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}
