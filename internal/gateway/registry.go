package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// connRegistry tracks live connections by their own id and indexes them by user id, so the hub can answer "does
// this user have any other live connection" without scanning every connection on every disconnect.
type connRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*Connection
	byUser map[uuid.UUID]map[string]*Connection
}

func newConnRegistry() connRegistry {
	return connRegistry{
		byID:   make(map[string]*Connection),
		byUser: make(map[uuid.UUID]map[string]*Connection),
	}
}

func (r *connRegistry) Add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[c.id] = c

	userID := c.UserID()
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Connection)
	}
	r.byUser[userID][c.id] = c
}

// Remove deletes c from the registry and reports whether it was present (a connection that never finished
// authenticating, or that was already removed, returns false so callers skip per-user bookkeeping for it).
func (r *connRegistry) Remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.id]; !ok {
		return false
	}
	delete(r.byID, c.id)

	userID := c.UserID()
	if conns, ok := r.byUser[userID]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}
	return true
}

func (r *connRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *connRegistry) CountForUser(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *connRegistry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		all = append(all, c)
	}
	return all
}
