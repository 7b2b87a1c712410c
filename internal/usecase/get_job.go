package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/repository"
)

// GetJobUsecase handles fetching job status and results.
type GetJobUsecase struct {
	store  repository.JobStore
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(store repository.JobStore, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		store:  store,
		logger: logger,
	}
}

// Execute retrieves a job by its ID.
func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	st, err := uc.store.Read(ctx, id)
	if errors.Is(err, domain.ErrJobNotFound) {
		uc.logger.Debug("Job not found", zap.String("job_id", id.String()))
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	return st, nil
}

// Watch polls the job every interval and calls emit whenever its status,
// progress or result size changes. It returns after emitting a terminal
// state, when emit fails, or when ctx is done.
func (uc *GetJobUsecase) Watch(ctx context.Context, id uuid.UUID, interval time.Duration, emit func(*domain.JobState) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *domain.JobState
	for {
		st, err := uc.Execute(ctx, id)
		if err != nil {
			return err
		}
		if last == nil || changedSince(last, st) {
			if err := emit(st); err != nil {
				return err
			}
			last = st
		}
		if st.Status.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func changedSince(prev, cur *domain.JobState) bool {
	return prev.Status != cur.Status ||
		prev.Progress != cur.Progress ||
		len(prev.Result.Subdomains) != len(cur.Result.Subdomains) ||
		len(prev.Result.Paths) != len(cur.Result.Paths) ||
		len(prev.Result.Output) != len(cur.Result.Output)
}
