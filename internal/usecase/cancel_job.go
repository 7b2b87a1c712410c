package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/metrics"
	"github.com/Jackyzaz/motegao/internal/repository"
)

// CancelJobUsecase stops a job and records it as CANCELLED.
type CancelJobUsecase struct {
	store    repository.JobStore
	signaler repository.CancelSignaler
	logger   *zap.Logger
}

// NewCancelJobUsecase creates a new CancelJobUsecase.
func NewCancelJobUsecase(store repository.JobStore, signaler repository.CancelSignaler, logger *zap.Logger) *CancelJobUsecase {
	return &CancelJobUsecase{
		store:    store,
		signaler: signaler,
		logger:   logger,
	}
}

// Execute cancels the job and returns its resulting state. Cancelling a job
// that already finished returns its actual terminal state unchanged.
//
// The CANCELLED state is written before the kill signal goes out. A runner
// that registers its process after the signal will then find the job
// terminal on its RUNNING write and stop by itself.
func (uc *CancelJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	log := uc.logger.With(zap.String("job_id", id.String()))

	cur, err := uc.store.Read(ctx, id)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	if cur.Status.IsTerminal() {
		metrics.CancelRequests.WithLabelValues("already_terminal").Inc()
		return cur, nil
	}

	cancelled := cur.Clone()
	cancelled.Status = domain.StatusCancelled
	cancelled.Error = ""

	if err := uc.store.Write(ctx, id, cancelled); err != nil {
		if !errors.Is(err, domain.ErrJobTerminal) {
			return nil, fmt.Errorf("write cancelled state: %w", err)
		}
		// Lost the race to the runner's own terminal write.
		actual, rerr := uc.store.Read(ctx, id)
		if rerr != nil {
			return nil, fmt.Errorf("re-read job: %w", rerr)
		}
		metrics.CancelRequests.WithLabelValues("already_terminal").Inc()
		log.Info("Job finished before it could be cancelled", zap.String("status", string(actual.Status)))
		return actual, nil
	}

	if err := uc.signaler.SignalCancel(ctx, id); err != nil {
		// The stored state already says CANCELLED; the runner stops on its
		// next write at the latest.
		log.Error("Failed to signal cancellation", zap.Error(err))
	}

	metrics.CancelRequests.WithLabelValues("cancelled").Inc()
	log.Info("Job cancelled", zap.String("previous_status", string(cur.Status)), zap.Float64("progress", cur.Progress))

	// Return what the store now holds so timestamps match later reads.
	if st, err := uc.store.Read(ctx, id); err == nil {
		return st, nil
	}
	return cancelled, nil
}
