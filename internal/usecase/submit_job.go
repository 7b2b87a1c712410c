package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/metrics"
	"github.com/Jackyzaz/motegao/internal/publisher"
	"github.com/Jackyzaz/motegao/internal/repository"
)

// SubmitJobUsecase validates a recon request and hands it to the workers.
type SubmitJobUsecase struct {
	store     repository.JobStore
	publisher publisher.Publisher
	logger    *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(store repository.JobStore, pub publisher.Publisher, logger *zap.Logger) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		store:     store,
		publisher: pub,
		logger:    logger,
	}
}

// Execute validates the submission, creates a job, publishes it, and returns
// the job ID without waiting for the tool. Invalid input fails with
// domain.ErrInvalidSpec before any ID is allocated.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	spec, err := domain.NewJobSpec(req)
	if err != nil {
		return nil, err
	}

	// Generate UUIDv7 (time-ordered)
	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	if err := uc.store.Create(ctx, jobID, spec); err != nil {
		uc.logger.Error("Failed to create job", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := uc.publisher.Publish(ctx, &domain.JobMessage{JobID: jobID, Spec: spec}); err != nil {
		uc.logger.Error("Failed to publish job to queue", zap.Error(err), zap.String("job_id", jobID.String()))
		// The job will never run; record that instead of leaving it PENDING.
		failed := &domain.JobState{Status: domain.StatusFailed, Error: "dispatch failed: " + err.Error()}
		if werr := uc.store.Write(context.WithoutCancel(ctx), jobID, failed); werr != nil {
			uc.logger.Error("Failed to mark undispatched job", zap.Error(werr), zap.String("job_id", jobID.String()))
		}
		return nil, domain.ErrPublishFailed
	}

	metrics.JobsSubmitted.WithLabelValues(string(spec.Kind)).Inc()
	uc.logger.Info("Job submitted successfully",
		zap.String("job_id", jobID.String()),
		zap.String("kind", string(spec.Kind)),
	)

	return &domain.SubmitResponse{
		JobID:  jobID,
		Status: domain.StatusPending,
	}, nil
}
