package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// JobStore is the authoritative record of job state. A stored terminal state
// is never overwritten. Implementations must be safe for concurrent use.
type JobStore interface {
	// Create inserts a PENDING entry. Returns domain.ErrJobExists if the ID
	// is already present.
	Create(ctx context.Context, id uuid.UUID, spec domain.JobSpec) error

	// Write replaces the state of an existing job. Returns
	// domain.ErrJobNotFound if absent and domain.ErrJobTerminal if the
	// stored state is already terminal.
	Write(ctx context.Context, id uuid.UUID, state *domain.JobState) error

	// Read returns the current state, or domain.ErrJobNotFound.
	Read(ctx context.Context, id uuid.UUID) (*domain.JobState, error)
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a job.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error)

	// ReleaseLock releases the processing lock with a TTL for eventual cleanup.
	ReleaseLock(ctx context.Context, jobID uuid.UUID) error
}

// CancelSignaler asks whichever process runs a job to kill its tool. A job
// that is not running anywhere is not an error.
type CancelSignaler interface {
	SignalCancel(ctx context.Context, jobID uuid.UUID) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPendingState returns the initial state stored by Create.
func NewPendingState(id uuid.UUID, kind domain.JobKind) *domain.JobState {
	now := time.Now().UTC()
	return &domain.JobState{
		JobID:     id,
		Kind:      kind,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
