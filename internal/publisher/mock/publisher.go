package mock

import (
	"context"
	"sync"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock message publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.JobMessage
	PublishFn func(ctx context.Context, msg *domain.JobMessage) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, msg *domain.JobMessage) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, msg)
	}
	m.mu.Lock()
	m.Published = append(m.Published, msg)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}
