package consumer

import (
	"context"
	"errors"
	"log"

	"cchain/internal/models"
)

// MockConsumer delivers commit messages from an in-process channel,
// for offline runs and tests.
type MockConsumer struct {
	logger   *log.Logger
	messages chan *models.CommitMessage
}

// NewMockConsumer creates a MockConsumer with the given buffer size.
func NewMockConsumer(logger *log.Logger, buffer int) *MockConsumer {
	if buffer <= 0 {
		buffer = 16
	}
	return &MockConsumer{
		logger:   logger,
		messages: make(chan *models.CommitMessage, buffer),
	}
}

// Inject queues a message for consumption.
func (m *MockConsumer) Inject(msg *models.CommitMessage) {
	m.messages <- msg
}

// Consume reads messages from the channel.
func (m *MockConsumer) Consume(ctx context.Context) (msg *models.CommitMessage, ack func(success bool), err error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case msg := <-m.messages:
		if msg == nil {
			return nil, nil, errors.New("message channel closed")
		}

		ackCallback := func(success bool) {
			if success {
				return
			}
			m.logger.Printf("[MockConsumer] NACK received for message: request_id=%s. Re-queueing (mock)", msg.RequestID)
			select {
			case m.messages <- msg:
			default:
				m.logger.Printf("[MockConsumer] Warning: Failed to re-queue message (channel full?): request_id=%s", msg.RequestID)
			}
		}
		return msg, ackCallback, nil
	}
}

// Close closes the message channel.
func (m *MockConsumer) Close() error {
	close(m.messages)
	return nil
}

var _ Consumer = (*MockConsumer)(nil)
