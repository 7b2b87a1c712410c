package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/executor"
	"github.com/Jackyzaz/motegao/internal/metrics"
	"github.com/Jackyzaz/motegao/internal/parser"
	"github.com/Jackyzaz/motegao/internal/repository"
)

// ExecuteJobUsecase runs one recon job: it starts the tool, feeds its output
// through the kind's parser, publishes progress and records the outcome.
type ExecuteJobUsecase struct {
	store      repository.JobStore
	idempotent repository.IdempotencyStore
	registry   *executor.Registry
	tools      executor.Tools
	logger     *zap.Logger
}

// NewExecuteJobUsecase creates a new ExecuteJobUsecase.
func NewExecuteJobUsecase(
	store repository.JobStore,
	idempotent repository.IdempotencyStore,
	registry *executor.Registry,
	tools executor.Tools,
	logger *zap.Logger,
) *ExecuteJobUsecase {
	return &ExecuteJobUsecase{
		store:      store,
		idempotent: idempotent,
		registry:   registry,
		tools:      tools,
		logger:     logger,
	}
}

// Execute processes a single job message. Returns (isDuplicate, error).
//
// Tool and parser failures end as a FAILED job and a nil error. A non-nil
// error means the job state could not be recorded and the message should be
// dead-lettered.
func (uc *ExecuteJobUsecase) Execute(ctx context.Context, msg *domain.JobMessage) (bool, error) {
	id := msg.JobID
	log := uc.logger.With(zap.String("job_id", id.String()), zap.String("kind", string(msg.Spec.Kind)))

	// Store writes outlive ctx so a shutdown still records the outcome.
	wctx := context.WithoutCancel(ctx)

	// Step 1: Idempotency check
	acquired, err := uc.idempotent.AcquireLock(ctx, id)
	if err != nil {
		log.Error("Failed to acquire idempotency lock", zap.Error(err))
		return false, err
	}
	if !acquired {
		log.Info("Duplicate message detected, skipping")
		return true, nil
	}
	defer func() {
		if err := uc.idempotent.ReleaseLock(wctx, id); err != nil {
			log.Warn("Failed to release idempotency lock", zap.Error(err))
		}
	}()

	// Step 2: Skip jobs that finished while queued (cancelled, dispatch failure).
	cur, err := uc.store.Read(ctx, id)
	if errors.Is(err, domain.ErrJobNotFound) {
		log.Warn("Job not in store, dropping message")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read job: %w", err)
	}
	if cur.Status.IsTerminal() {
		log.Info("Job already finished, skipping", zap.String("status", string(cur.Status)))
		return false, nil
	}

	// Step 3: Build the command and start the tool.
	p, err := parser.For(msg.Spec.Kind)
	if err != nil {
		return false, uc.finish(wctx, log, msg, &domain.JobState{Status: domain.StatusFailed, Error: err.Error()})
	}
	argv, err := executor.BuildCommand(msg.Spec, uc.tools)
	if err != nil {
		return false, uc.finish(wctx, log, msg, &domain.JobState{
			Status: domain.StatusFailed,
			Error:  fmt.Errorf("%w: %w", domain.ErrProcessLaunch, err).Error(),
		})
	}

	started := time.Now()
	stream, err := executor.Start(ctx, argv)
	if err != nil {
		log.Warn("Tool failed to launch", zap.Strings("argv", argv), zap.Error(err))
		return false, uc.finish(wctx, log, msg, &domain.JobState{Status: domain.StatusFailed, Error: err.Error()})
	}
	defer stream.Close()

	// Registered before RUNNING is written so a cancel that reads RUNNING
	// can always find the stream.
	uc.registry.Register(id, stream)
	defer uc.registry.Unregister(id)

	if err := uc.write(wctx, id, &domain.JobState{Status: domain.StatusRunning}); err != nil {
		stream.Terminate()
		if errors.Is(err, domain.ErrJobTerminal) {
			log.Info("Job cancelled before the tool started")
			return false, nil
		}
		return false, fmt.Errorf("mark running: %w", err)
	}
	log.Info("Tool started", zap.Strings("argv", argv), zap.Int("pid", stream.Pid()))

	// Step 4: Drain output. Store writes go through the progress writer so
	// a slow store never stalls the pipe.
	writer := newProgressWriter(wctx, uc.store, id, stream.Terminate, log)

	var (
		st    parser.State
		fault error
	)
	for stream.Scan() {
		next, changed, err := p.Feed(st, stream.Text())
		if err != nil {
			fault = err
			break
		}
		st = next
		if changed {
			// Result slices are append-only, so the snapshot may share them.
			writer.offer(&domain.JobState{Status: domain.StatusRunning, Progress: st.Progress, Result: st.Snapshot()})
		}
	}
	readErr := stream.Err()
	if fault != nil || readErr != nil {
		stream.Terminate()
	}
	writer.close()

	code, waitErr := stream.Wait()
	metrics.JobDuration.WithLabelValues(string(msg.Spec.Kind)).Observe(time.Since(started).Seconds())

	// Step 5: Record the outcome.
	final := &domain.JobState{Progress: st.Progress, Result: st.Snapshot()}
	switch {
	case fault != nil:
		final.Status = domain.StatusFailed
		final.Error = fault.Error()
		var pf *domain.ParseFaultError
		if errors.As(fault, &pf) {
			metrics.ParseFaults.WithLabelValues(string(msg.Spec.Kind)).Inc()
		}
	case readErr != nil:
		final.Status = domain.StatusFailed
		final.Error = fmt.Sprintf("reading tool output: %v", readErr)
	case stream.Terminated():
		final.Status = domain.StatusCancelled
	case ctx.Err() != nil:
		final.Status = domain.StatusFailed
		final.Error = "interrupted: worker shutting down"
	case waitErr != nil:
		final.Status = domain.StatusFailed
		final.Error = waitErr.Error()
	case code != 0:
		final.Status = domain.StatusFailed
		final.Error = fmt.Sprintf("process exited with status %d", code)
	default:
		done := p.Finish(st)
		final.Status = domain.StatusSucceeded
		final.Progress = done.Progress
		final.Result = done.Result
	}

	log.Info("Tool finished",
		zap.String("status", string(final.Status)),
		zap.Int("exit_code", code),
		zap.Duration("elapsed", time.Since(started)),
	)
	return false, uc.finish(wctx, log, msg, final)
}

// finish writes a terminal state. Losing the race to another terminal write
// (usually a cancel) is expected and not an error.
func (uc *ExecuteJobUsecase) finish(ctx context.Context, log *zap.Logger, msg *domain.JobMessage, st *domain.JobState) error {
	err := uc.write(ctx, msg.JobID, st)
	if errors.Is(err, domain.ErrJobTerminal) {
		log.Debug("Terminal state already recorded", zap.String("wanted", string(st.Status)))
		return nil
	}
	if err != nil {
		log.Error("Failed to store final state", zap.Error(err))
		return fmt.Errorf("store final state: %w", err)
	}
	if st.Status == domain.StatusFailed {
		log.Warn("Job failed", zap.String("error", st.Error))
	}
	metrics.JobsFinished.WithLabelValues(string(msg.Spec.Kind), string(st.Status)).Inc()
	return nil
}

func (uc *ExecuteJobUsecase) write(ctx context.Context, id uuid.UUID, st *domain.JobState) error {
	ctx, cancel := context.WithTimeout(ctx, storeWriteTimeout)
	defer cancel()
	return uc.store.Write(ctx, id, st)
}
