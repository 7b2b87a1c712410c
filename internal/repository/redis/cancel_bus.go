package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/repository"
)

var _ repository.CancelSignaler = (*CancelBus)(nil)

// CancelChannel is the pub/sub channel carrying job IDs to cancel.
const CancelChannel = "motegao:cancel"

// CancelBus fans cancellation requests out from the API to every worker.
// Delivery is best effort: a worker that is not subscribed misses the
// message, and the runner then finds the CANCELLED state on its next write.
type CancelBus struct {
	client goredis.UniversalClient
	logger *zap.Logger
}

func NewCancelBus(client goredis.UniversalClient, logger *zap.Logger) *CancelBus {
	return &CancelBus{client: client, logger: logger}
}

func (b *CancelBus) SignalCancel(ctx context.Context, jobID uuid.UUID) error {
	if err := b.client.Publish(ctx, CancelChannel, jobID.String()).Err(); err != nil {
		return fmt.Errorf("redis: publish cancel: %w", err)
	}
	return nil
}

// Listen calls terminate for every job ID received until ctx is cancelled.
func (b *CancelBus) Listen(ctx context.Context, terminate func(uuid.UUID) bool) error {
	sub := b.client.Subscribe(ctx, CancelChannel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: subscribe %s: %w", CancelChannel, err)
	}
	b.logger.Info("listening for cancellations", zap.String("channel", CancelChannel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, err := uuid.Parse(msg.Payload)
			if err != nil {
				b.logger.Warn("ignoring malformed cancel message", zap.String("payload", msg.Payload))
				continue
			}
			if terminate(id) {
				b.logger.Info("job terminated on request", zap.String("job_id", id.String()))
			}
		}
	}
}
