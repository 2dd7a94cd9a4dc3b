package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cchain/chain"
	"cchain/config"
	"cchain/internal/messaging/consumer"
	worker "cchain/processing"
	"cchain/storage/store"
)

const engineConfigPath = "./config/engine.defaults.yml"

func main() {
	logger := log.New(os.Stdout, "[ENGINE] ", log.LstdFlags|log.Lshortfile)
	logger.Println("Starting Checkpoint Engine...")

	// 1. Load engine config
	engineCfg, err := config.LoadEngineConfig(engineConfigPath)
	if err != nil {
		logger.Fatalf("FATAL: Failed to load engine configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize dependencies
	logger.Println("Initializing database connection...")
	dbStore, err := store.NewPostgresStore(ctx, engineCfg.Database.DSN, engineCfg.Database.MinConnections, engineCfg.Database.MaxConnections, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize database store: %v", err)
	}
	defer dbStore.Close()

	guard, err := chain.ParseGuardMode(engineCfg.Chain.Guard)
	if err != nil {
		logger.Fatalf("FATAL: Invalid chain configuration: %v", err)
	}
	commitChain := chain.New(dbStore, chain.WithGuard(guard))

	// 3. Initialize consumers
	var mqConsumers []consumer.Consumer
	if len(engineCfg.KafkaConsumer.Brokers) > 0 && engineCfg.KafkaConsumer.Brokers[0] != "mock://local" {
		logger.Printf("Initializing %d Kafka message queue consumers...", engineCfg.KafkaConsumer.Count)
		for i := 0; i < engineCfg.KafkaConsumer.Count; i++ {
			kafkaConsumer, err := consumer.NewKafkaConsumer(engineCfg.KafkaConsumer, logger)
			if err != nil {
				logger.Fatalf("FATAL: Failed to initialize Kafka consumer %d: %v", i, err)
			}
			mqConsumers = append(mqConsumers, kafkaConsumer)
		}
	} else {
		logger.Println("Initializing Mock message queue consumer...")
		mqConsumers = append(mqConsumers, consumer.NewMockConsumer(logger, engineCfg.Worker.BatchSize))
	}

	// Ensure all consumers are closed on exit
	defer func() {
		for _, c := range mqConsumers {
			c.Close()
		}
	}()

	// 4. Create and start workers, one per consumer
	var wg sync.WaitGroup
	for i, c := range mqConsumers {
		workerInstance := worker.New(engineCfg.Worker, logger, dbStore, commitChain, c)

		wg.Add(1)
		go func(workerID int, w *worker.Worker) {
			defer wg.Done()
			logger.Printf("Starting worker %d with its dedicated consumer...", workerID)
			w.Run(ctx)
			logger.Printf("Worker %d stopped.", workerID)
		}(i+1, workerInstance)
	}

	logger.Printf("Checkpoint Engine started with %d workers. Press Ctrl+C to stop.", len(mqConsumers))

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Println("Received shutdown signal, initiating graceful shutdown...")
	cancel()

	logger.Println("Waiting for all workers to finish...")
	wg.Wait()

	logger.Println("Checkpoint Engine shut down gracefully.")
}
