package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the streams of jobs running in this process so they can
// be terminated by ID.
type Registry struct {
	mu      sync.Mutex
	streams map[uuid.UUID]*Stream
}

func NewRegistry() *Registry {
	return &Registry{streams: make(map[uuid.UUID]*Stream)}
}

func (r *Registry) Register(id uuid.UUID, s *Stream) {
	r.mu.Lock()
	r.streams[id] = s
	r.mu.Unlock()
}

func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
}

// Terminate kills the stream registered under id. It returns false if no
// such job runs here.
func (r *Registry) Terminate(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.streams[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Terminate()
	return true
}

// SignalCancel satisfies repository.CancelSignaler for single-process
// deployments. A job that is not running here is not an error.
func (r *Registry) SignalCancel(_ context.Context, id uuid.UUID) error {
	r.Terminate(id)
	return nil
}

// Len returns the number of running jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
