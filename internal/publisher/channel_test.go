package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Jackyzaz/motegao/internal/domain"
)

func TestChannelPublisher_Delivers(t *testing.T) {
	jobs := make(chan *domain.JobMessage, 1)
	p := NewChannelPublisher(jobs)

	id := uuid.New()
	spec := domain.JobSpec{Kind: domain.KindPing, Ping: &domain.PingSpec{Host: "10.0.0.1"}}
	if err := p.Publish(context.Background(), &domain.JobMessage{JobID: id, Spec: spec}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := <-jobs
	if msg.JobID != id {
		t.Errorf("expected job %s, got %s", id, msg.JobID)
	}
	if msg.Ack == nil || msg.Nack == nil {
		t.Fatal("expected ack callbacks to be set")
	}
	if err := msg.Ack(); err != nil {
		t.Errorf("ack: %v", err)
	}
}

func TestChannelPublisher_FullQueueRespectsContext(t *testing.T) {
	jobs := make(chan *domain.JobMessage) // nobody reads
	p := NewChannelPublisher(jobs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, &domain.JobMessage{JobID: uuid.New()})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestChannelPublisher_Closed(t *testing.T) {
	p := NewChannelPublisher(make(chan *domain.JobMessage, 1))
	_ = p.Close()

	if err := p.Publish(context.Background(), &domain.JobMessage{JobID: uuid.New()}); err == nil {
		t.Fatal("expected error after Close")
	}
}
