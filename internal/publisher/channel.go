package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// ErrQueueFull is returned by the channel publisher when no worker slot
// frees up before the publish deadline.
var ErrQueueFull = errors.New("in-process queue full")

// ChannelPublisher delivers jobs to an in-process worker pool. It backs the
// single-binary mode where no broker is configured.
type ChannelPublisher struct {
	jobs chan<- *domain.JobMessage

	mu     sync.RWMutex
	closed bool
}

func NewChannelPublisher(jobs chan<- *domain.JobMessage) *ChannelPublisher {
	return &ChannelPublisher{jobs: jobs}
}

func (p *ChannelPublisher) Publish(ctx context.Context, msg *domain.JobMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("channel publisher closed")
	}

	out := &domain.JobMessage{
		JobID: msg.JobID,
		Spec:  msg.Spec,
		Ack:   func() error { return nil },
		Nack:  func(bool) error { return nil },
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	select {
	case p.jobs <- out:
		return nil
	case <-publishCtx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, publishCtx.Err())
	}
}

// Close stops accepting jobs. The worker side owns the channel and closes it.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
