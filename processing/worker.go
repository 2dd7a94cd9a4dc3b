// Package worker implements the checkpoint engine: it consumes commit
// events in batches, replays the chain, and records the verification
// outcome as a checkpoint.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"cchain/chain"
	"cchain/config"
	"cchain/internal/messaging/consumer"
	"cchain/internal/models"
	"cchain/storage/store"
)

// Worker processes commit events in batches.
type Worker struct {
	workerConfig       config.WorkerConfig
	batchTimeout       time.Duration // Parsed from workerConfig.BatchTimeout
	consumerRetryDelay time.Duration // Parsed from workerConfig.ConsumerRetryDelay
	verifyTimeout      time.Duration // Parsed from workerConfig.VerifyTimeout

	logger   *log.Logger
	store    store.Store
	chain    *chain.CommitChain
	consumer consumer.Consumer
}

// New creates a new Worker instance.
func New(cfg config.WorkerConfig, logger *log.Logger, s store.Store, ch *chain.CommitChain, c consumer.Consumer) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	batchTimeout, err := time.ParseDuration(cfg.BatchTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid batch_timeout '%s', using default 1s", cfg.BatchTimeout)
		batchTimeout = 1 * time.Second
	}

	consumerRetryDelay, err := time.ParseDuration(cfg.ConsumerRetryDelay)
	if err != nil {
		logger.Printf("Warning: Invalid consumer_retry_delay '%s', using default 5s", cfg.ConsumerRetryDelay)
		consumerRetryDelay = 5 * time.Second
	}

	verifyTimeout, err := time.ParseDuration(cfg.VerifyTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid verify_timeout '%s', using default 15s", cfg.VerifyTimeout)
		verifyTimeout = 15 * time.Second
	}

	return &Worker{
		workerConfig:       cfg,
		batchTimeout:       batchTimeout,
		consumerRetryDelay: consumerRetryDelay,
		verifyTimeout:      verifyTimeout,
		logger:             logger,
		store:              s,
		chain:              ch,
		consumer:           c,
	}
}

// Run starts the worker pool.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Printf("Starting worker pool with concurrency: %d, BatchSize: %d, BatchTimeout: %s",
		w.workerConfig.Concurrency, w.workerConfig.BatchSize, w.batchTimeout)
	var wg sync.WaitGroup
	for i := 0; i < w.workerConfig.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.logger.Printf("Worker %d started", workerID)
			w.processMessagesInBatch(ctx, workerID)
			w.logger.Printf("Worker %d stopped", workerID)
		}(i + 1)
	}
	wg.Wait()
	w.logger.Println("Worker pool stopped.")
}

// processMessagesInBatch is the main loop for a worker goroutine.
func (w *Worker) processMessagesInBatch(ctx context.Context, workerID int) {
	batchMessages := make([]*models.CommitMessage, 0, w.workerConfig.BatchSize)
	acks := make([]func(success bool), 0, w.workerConfig.BatchSize)
	batchTimer := time.NewTimer(0) // Start with stopped timer
	if !batchTimer.Stop() {
		select {
		case <-batchTimer.C:
		default:
		}
	}

	processBatch := func() {
		if len(batchMessages) == 0 {
			return
		}

		if !batchTimer.Stop() {
			select {
			case <-batchTimer.C:
			default:
			}
		}

		w.processAndAckBatch(ctx, workerID, batchMessages, acks)

		batchMessages = make([]*models.CommitMessage, 0, w.workerConfig.BatchSize)
		acks = make([]func(success bool), 0, w.workerConfig.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("Worker %d: Context cancelled, stopping.", workerID)
			for _, ack := range acks {
				ack(false)
			}
			return

		case <-batchTimer.C:
			processBatch()

		default:
			consumeCtx, consumeCancel := context.WithTimeout(ctx, 100*time.Millisecond)
			msg, ack, err := w.consumer.Consume(consumeCtx)
			consumeCancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.Printf("Worker %d: Consumer error: %v", workerID, err)
				time.Sleep(w.consumerRetryDelay)
				continue
			}

			if msg != nil {
				if len(batchMessages) == 0 {
					batchTimer.Reset(w.batchTimeout)
				}

				batchMessages = append(batchMessages, msg)
				acks = append(acks, ack)

				if len(batchMessages) >= w.workerConfig.BatchSize {
					processBatch()
				}
			}
		}
	}
}

// processAndAckBatch handles one checkpoint pass and the acknowledgement.
func (w *Worker) processAndAckBatch(ctx context.Context, workerID int, batch []*models.CommitMessage, acks []func(success bool)) {
	processingErr := w.handleBatch(ctx, batch)

	if processingErr != nil {
		// Checkpoint FAILED -> Nack ALL messages
		w.logger.Printf("Worker %d: Batch failed: %v (nacking %d messages)", workerID, processingErr, len(acks))
		for _, ack := range acks {
			ack(false)
		}
	} else {
		for _, ack := range acks {
			ack(true)
		}
	}
}

// handleBatch replays the chain once for the batch and records the
// outcome. The sequence is read exactly once; the verification result,
// the tail hash and the record count are all derived from that single
// snapshot so the checkpoint describes one consistent state even while
// the gateway keeps appending. A broken chain is still a successful
// checkpoint pass: the finding is persisted and the messages are
// acknowledged; only digest and store faults trigger a nack.
func (w *Worker) handleBatch(ctx context.Context, batch []*models.CommitMessage) error {
	if len(batch) == 0 {
		return nil
	}
	batchStart := time.Now()

	verifyCtx, cancel := context.WithTimeout(ctx, w.verifyTimeout)
	defer cancel()

	records, err := w.store.GetAll(verifyCtx)
	if err != nil {
		return err
	}

	verifyStart := time.Now()
	result, err := w.chain.VerifySequence(records)
	verifyDuration := time.Since(verifyStart)
	if err != nil {
		return err
	}

	tail := chain.SentinelPrev
	if len(records) > 0 {
		tail = records[len(records)-1].Hash
	}

	cp := store.Checkpoint{
		TailHash: tail,
		Records:  len(records),
		Valid:    result.Valid,
		Reason:   result.Reason,
	}
	if err := w.store.InsertCheckpoint(ctx, cp); err != nil {
		return err
	}

	if !result.Valid {
		w.logger.Printf("CRITICAL: Chain verification failed: reason=%s, index=%d", result.Reason, result.Index)
	}

	totalTime := time.Since(batchStart)
	w.logger.Printf("Checkpoint: batch=%d, records=%d, valid=%t, verify=%v, total=%v",
		len(batch), len(records), result.Valid, verifyDuration, totalTime)

	return nil
}
