package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Jackyzaz/motegao/internal/repository"
)

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore remembers every job ID it has handed a lock for. Locks
// are never handed out twice, even after release.
type IdempotencyStore struct {
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{seen: make(map[uuid.UUID]struct{})}
}

func (s *IdempotencyStore) AcquireLock(_ context.Context, jobID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[jobID]; ok {
		return false, nil
	}
	s.seen[jobID] = struct{}{}
	return true, nil
}

func (s *IdempotencyStore) ReleaseLock(context.Context, uuid.UUID) error { return nil }
