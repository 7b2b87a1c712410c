package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/metrics"
)

// Handler runs one job. It reports whether the message was a duplicate
// delivery; a non-nil error dead-letters the message.
type Handler interface {
	Execute(ctx context.Context, msg *domain.JobMessage) (bool, error)
}

// WorkerPool manages a fixed-size pool of goroutines that process jobs.
type WorkerPool struct {
	size    int
	jobs    <-chan *domain.JobMessage
	handler Handler
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.JobMessage, handler Handler, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    jobs,
		handler: handler,
		logger:  logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}
			p.process(ctx, id, msg)
		}
	}
}

// process runs one job and settles its message. A panicking job is
// dead-lettered without taking the worker down.
func (p *WorkerPool) process(ctx context.Context, workerID int, msg *domain.JobMessage) {
	log := p.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", msg.JobID.String()),
		zap.String("kind", string(msg.Spec.Kind)),
	)
	log.Info("Worker processing job")

	// Track active workers gauge.
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	isDuplicate, err := p.run(ctx, msg)

	if err != nil {
		log.Error("Job execution failed", zap.Error(err))

		// Nack without requeue; failed jobs go to DLQ.
		// Requeuing a deterministic failure would cause an infinite loop.
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Error("Failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if isDuplicate {
		log.Debug("Duplicate job skipped")
	}

	// Duplicates are ACKed too so the message leaves the queue.
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message after execution", zap.Error(ackErr))
	}
}

func (p *WorkerPool) run(ctx context.Context, msg *domain.JobMessage) (dup bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler.Execute(ctx, msg)
}
