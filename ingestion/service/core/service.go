package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"cchain/chain"
	"cchain/internal/messaging/producer"
	"cchain/internal/models"
)

// CommitInput defines the core information required for a commit submission.
type CommitInput struct {
	Type    string
	Message string // may be empty
	User    string // optional; the chain records "anonymous" when empty
}

// CommitResult defines the return information after a successful append.
type CommitResult struct {
	RequestID string
	Hash      string
	Prev      string
	User      string
	Timestamp string
}

// Service encapsulates the core business logic of the commit gateway.
type Service struct {
	chain    *chain.CommitChain
	producer producer.Producer
	logger   *log.Logger
}

// NewService creates a new Service instance. The producer may be nil,
// in which case no commit events are published.
func NewService(c *chain.CommitChain, p producer.Producer, l *log.Logger) *Service {
	return &Service{
		chain:    c,
		producer: p,
		logger:   l,
	}
}

// SubmitCommit validates the input, appends one record to the chain and
// publishes a commit event. The append is synchronous: the record is
// durable before the event goes out. A publish failure is logged but
// does not fail the submission, since the record is already in the chain.
func (s *Service) SubmitCommit(ctx context.Context, input *CommitInput) (*CommitResult, error) {
	if input.Type == "" {
		return nil, fmt.Errorf("commit type cannot be empty")
	}

	requestID := uuid.NewString()

	rec, err := s.chain.AppendRecord(ctx, input.Type, input.Message, input.User)
	if err != nil {
		return nil, err
	}

	if s.producer != nil {
		msg := &models.CommitMessage{
			RequestID: requestID,
			Type:      rec.Type,
			Message:   rec.Message,
			User:      rec.User,
			Hash:      rec.Hash,
			Prev:      rec.Prev,
			Timestamp: rec.Timestamp,
		}
		if err := s.producer.Publish(ctx, msg); err != nil {
			s.logger.Printf("Service: RequestID: %s, failed to publish commit event: %v", requestID, err)
		}
	}

	return &CommitResult{
		RequestID: requestID,
		Hash:      rec.Hash,
		Prev:      rec.Prev,
		User:      rec.User,
		Timestamp: rec.Timestamp,
	}, nil
}

// VerifyChain replays the whole chain and reports the first break.
func (s *Service) VerifyChain(ctx context.Context) (chain.VerificationResult, error) {
	return s.chain.Verify(ctx)
}

// VerifyChainAll replays the whole chain and collects every break.
func (s *Service) VerifyChainAll(ctx context.Context) ([]chain.Break, error) {
	return s.chain.VerifyAll(ctx)
}

// ChainStats aggregates over the whole chain.
func (s *Service) ChainStats(ctx context.Context) (chain.Stats, error) {
	return s.chain.Stats(ctx)
}
