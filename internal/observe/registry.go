// Package observe maps opaque session identifiers to live automation
// sessions so a poller can ask "what page is this session on?".
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/neboloop/wikirace/internal/browser"
)

// ErrUnknownSession is returned for an ID that is not registered.
var ErrUnknownSession = errors.New("unknown session")

// Viewer is the read side of a driver.
type Viewer interface {
	Current(ctx context.Context) (browser.Page, error)
}

// Registry tracks observable sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Viewer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Viewer)}
}

// Register adds v and returns its session ID.
func (r *Registry) Register(v Viewer) string {
	id := uuid.New().String()
	r.mu.Lock()
	r.sessions[id] = v
	r.mu.Unlock()
	return id
}

// Unregister removes a session. Unknown IDs are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Observe returns the page the session currently shows.
func (r *Registry) Observe(ctx context.Context, id string) (browser.Page, error) {
	r.mu.RLock()
	v, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return browser.Page{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return v.Current(ctx)
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
