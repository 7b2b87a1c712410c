// Package memory provides an in-process JobStore for single-binary
// deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/repository"
)

var _ repository.JobStore = (*JobStore)(nil)

// JobStore keeps job state in a map. States are copied on the way in and
// out so callers never share slices with the store.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.JobState
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*domain.JobState)}
}

func (s *JobStore) Create(_ context.Context, id uuid.UUID, spec domain.JobSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return domain.ErrJobExists
	}
	s.jobs[id] = repository.NewPendingState(id, spec.Kind)
	return nil
}

func (s *JobStore) Write(_ context.Context, id uuid.UUID, state *domain.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if cur.Status.IsTerminal() {
		return domain.ErrJobTerminal
	}

	next := state.Clone()
	next.JobID = id
	next.Kind = cur.Kind
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	s.jobs[id] = next
	return nil
}

func (s *JobStore) Read(_ context.Context, id uuid.UUID) (*domain.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return st.Clone(), nil
}

// Ping always succeeds.
func (s *JobStore) Ping(context.Context) error { return nil }
