package server

import (
	"sync"
	"sync/atomic"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// SessionRegistry tracks the one live connection of each user. It is the
// source of truth for whether a user is reachable.
type SessionRegistry struct {
	mu     sync.RWMutex
	byUser map[model.UserID]*Conn
	nextID atomic.Uint64
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser: make(map[model.UserID]*Conn),
	}
}

// newSessionID returns a process-unique connection id.
func (sr *SessionRegistry) newSessionID() uint64 {
	return sr.nextID.Add(1)
}

// Add makes c the live connection of its user and returns the connection it
// replaced, if any. The caller closes the replaced connection.
func (sr *SessionRegistry) Add(c *Conn) (replaced *Conn) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	replaced = sr.byUser[c.user]
	sr.byUser[c.user] = c
	if replaced == c {
		return nil
	}
	return replaced
}

// RemoveIfSame removes c only if it is still the live connection of its
// user. A connection that was replaced by a reconnect returns false, and the
// caller must not release the user's queue or room state.
func (sr *SessionRegistry) RemoveIfSame(c *Conn) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if cur, ok := sr.byUser[c.user]; ok && cur == c {
		delete(sr.byUser, c.user)
		return true
	}
	return false
}

// Get returns the live connection of u, or nil.
func (sr *SessionRegistry) Get(u model.UserID) *Conn {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.byUser[u]
}

// Count returns the number of connected users.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.byUser)
}

// All returns all live connections (snapshot).
func (sr *SessionRegistry) All() []*Conn {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	result := make([]*Conn, 0, len(sr.byUser))
	for _, c := range sr.byUser {
		result = append(result, c)
	}
	return result
}
