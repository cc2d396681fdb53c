package server

import (
	"sync"

	"github.com/agenthands/cartographer/internal/core/model"
)

// Registry tracks live session state in memory. The workflow machine
// pushes a snapshot after every phase; handlers read whatever is current.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]model.WorkflowState
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]model.WorkflowState{}}
}

// Update stores a snapshot. It satisfies workflow.Observer.
func (r *Registry) Update(state model.WorkflowState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[state.SessionID] = state
}

// Get returns the latest snapshot for a session.
func (r *Registry) Get(sessionID string) (model.WorkflowState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.sessions[sessionID]
	return state, ok
}
