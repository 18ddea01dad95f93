package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps browser session ids to controllers.
type Registry struct {
	mu        sync.Mutex
	submitter Submitter
	entries   map[string]*entry
	now       func() time.Time
}

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// NewRegistry returns an empty registry whose controllers share s.
func NewRegistry(s Submitter) *Registry {
	return &Registry{
		submitter: s,
		entries:   make(map[string]*entry),
		now:       time.Now,
	}
}

// Get returns the controller for id, creating a new session when id is empty
// or unknown. The returned id is the one to hand back to the browser.
func (r *Registry) Get(id string) (string, *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && id != "" {
		e.lastSeen = r.now()
		return id, e.ctrl
	}
	id = uuid.NewString()
	e := &entry{ctrl: NewController(r.submitter), lastSeen: r.now()}
	r.entries[id] = e
	return id, e.ctrl
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Prune drops sessions idle for longer than maxIdle and returns how many were
// removed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	n := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}
