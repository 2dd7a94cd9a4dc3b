package producer

import (
	"context"

	"cchain/internal/models"
)

// Producer defines the interface for the commit event producer.
type Producer interface {
	// Publish sends a single commit message to the configured topic.
	Publish(ctx context.Context, msg *models.CommitMessage) error

	// Close closes the producer connection.
	Close() error
}
