package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/metrics"
	"github.com/Jackyzaz/motegao/internal/repository"
)

const storeWriteTimeout = 10 * time.Second

// progressWriter moves store writes off the output draining loop. It holds
// at most one pending snapshot: a newer offer replaces an unwritten one, so
// a slow store costs intermediate updates, never stream throughput. Writes
// happen in offer order from a single goroutine, so readers see progress
// that never goes backwards.
type progressWriter struct {
	ctx        context.Context
	store      repository.JobStore
	id         uuid.UUID
	onTerminal func()
	logger     *zap.Logger

	mu      sync.Mutex
	pending *domain.JobState
	stopped bool

	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}
}

// newProgressWriter starts the writer goroutine. onTerminal runs once if
// the store reports the job already finished, typically after a cancel.
func newProgressWriter(ctx context.Context, store repository.JobStore, id uuid.UUID, onTerminal func(), logger *zap.Logger) *progressWriter {
	w := &progressWriter{
		ctx:        ctx,
		store:      store,
		id:         id,
		onTerminal: onTerminal,
		logger:     logger,
		wake:       make(chan struct{}, 1),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

// offer queues st for writing and returns immediately.
func (w *progressWriter) offer(st *domain.JobState) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if w.pending != nil {
		metrics.ProgressCoalesced.Inc()
	}
	w.pending = st
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// close writes any pending snapshot and stops the goroutine.
func (w *progressWriter) close() {
	close(w.closing)
	<-w.done
}

func (w *progressWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.closing:
			w.flush()
			return
		}
	}
}

func (w *progressWriter) flush() {
	w.mu.Lock()
	st := w.pending
	w.pending = nil
	stopped := w.stopped
	w.mu.Unlock()
	if st == nil || stopped {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, storeWriteTimeout)
	defer cancel()

	err := w.store.Write(ctx, w.id, st)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobTerminal):
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		w.logger.Info("Job finished elsewhere, stopping tool")
		w.onTerminal()
	default:
		// A lost progress update is not fatal; the next one or the final
		// state will carry the data.
		w.logger.Warn("Failed to write progress", zap.Error(err))
	}
}
