package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/repository"
	"github.com/Jackyzaz/motegao/internal/repository/memory"
)

// ---- JobStore mock ----

var _ repository.JobStore = (*JobStore)(nil)

// JobStore is a test double for repository.JobStore. Without hooks it
// behaves like the in-memory store, so write-once terminal still holds.
type JobStore struct {
	mu    sync.Mutex
	inner *memory.JobStore

	CreateFn func(ctx context.Context, id uuid.UUID, spec domain.JobSpec) error
	WriteFn  func(ctx context.Context, id uuid.UUID, state *domain.JobState) error
	ReadFn   func(ctx context.Context, id uuid.UUID) (*domain.JobState, error)

	// Recorded calls for assertions.
	Creates []uuid.UUID
	Writes  []*domain.JobState
}

func NewJobStore() *JobStore {
	return &JobStore{inner: memory.NewJobStore()}
}

func (m *JobStore) Create(ctx context.Context, id uuid.UUID, spec domain.JobSpec) error {
	m.mu.Lock()
	m.Creates = append(m.Creates, id)
	m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, id, spec)
	}
	return m.inner.Create(ctx, id, spec)
}

func (m *JobStore) Write(ctx context.Context, id uuid.UUID, state *domain.JobState) error {
	m.mu.Lock()
	m.Writes = append(m.Writes, state.Clone())
	m.mu.Unlock()
	if m.WriteFn != nil {
		return m.WriteFn(ctx, id, state)
	}
	return m.inner.Write(ctx, id, state)
}

func (m *JobStore) Read(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	if m.ReadFn != nil {
		return m.ReadFn(ctx, id)
	}
	return m.inner.Read(ctx, id)
}

// Inner exposes the backing store so hooks can delegate to it.
func (m *JobStore) Inner() *memory.JobStore { return m.inner }

// WriteLog returns a snapshot of the recorded writes.
func (m *JobStore) WriteLog() []*domain.JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.JobState(nil), m.Writes...)
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, jobID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, jobID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, jobID)
	}
	return nil
}

// ---- CancelSignaler mock ----

var _ repository.CancelSignaler = (*CancelSignaler)(nil)

// CancelSignaler is a test double for repository.CancelSignaler.
type CancelSignaler struct {
	mu sync.Mutex

	SignalCancelFn func(ctx context.Context, jobID uuid.UUID) error

	Calls []uuid.UUID
}

func (m *CancelSignaler) SignalCancel(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, jobID)
	m.mu.Unlock()
	if m.SignalCancelFn != nil {
		return m.SignalCancelFn(ctx, jobID)
	}
	return nil
}

// CallCount returns how many cancel signals were sent.
func (m *CancelSignaler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
