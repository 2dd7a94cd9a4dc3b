package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"cchain/chain"
	"cchain/config"
	core "cchain/ingestion/service/core"
	httphandler "cchain/ingestion/service/http"
	"cchain/internal/messaging/producer"
	"cchain/storage/store"
)

// Gateway configuration file path
const gatewayConfigPath = "./config/gateway.defaults.yml"

func main() {
	logger := log.New(os.Stdout, "[GATEWAY] ", log.LstdFlags|log.Lshortfile)
	logger.Println("Starting Commit Gateway...")

	// 1. Load gateway configuration
	cfg, err := config.LoadGatewayConfig(gatewayConfigPath)
	if err != nil {
		logger.Fatalf("Failed to load gateway configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize dependencies
	logger.Println("Initializing database connection...")
	dbStore, err := store.NewPostgresStore(ctx, cfg.Database.DSN, cfg.Database.MinConnections, cfg.Database.MaxConnections, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database store: %v", err)
	}
	defer dbStore.Close()

	guard, err := chain.ParseGuardMode(cfg.Chain.Guard)
	if err != nil {
		logger.Fatalf("Invalid chain configuration: %v", err)
	}
	commitChain := chain.New(dbStore, chain.WithGuard(guard))

	var eventProducer producer.Producer
	if len(cfg.KafkaProducer.Brokers) > 0 {
		logger.Println("Initializing Kafka producer...")
		kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaProducer, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize Kafka producer: %v", err)
		}
		defer kafkaProducer.Close()
		eventProducer = kafkaProducer
	} else {
		logger.Println("kafka_producer.brokers not configured, commit events will not be published.")
	}

	// 3. Create core Service and handlers
	coreService := core.NewService(commitChain, eventProducer, logger)
	commitHandler := httphandler.NewCommitHandler(coreService, logger)

	var wg sync.WaitGroup

	// 4. HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/commits", commitHandler.SubmitCommit)
	mux.HandleFunc("/v1/commits/verify", commitHandler.VerifyChain)
	mux.HandleFunc("/v1/commits/stats", commitHandler.ChainStats)
	mux.HandleFunc("/health", commitHandler.HealthCheck)

	readTimeout := cfg.HttpServer.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 5 * time.Second
	}

	writeTimeout := cfg.HttpServer.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	idleTimeout := cfg.HttpServer.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 60 * time.Second
	}

	maxHeaderBytes := cfg.HttpServer.MaxHeaderBytes
	if maxHeaderBytes == 0 {
		maxHeaderBytes = 1 << 20 // 1 MB
	}

	httpServer := &http.Server{
		Addr:           cfg.HttpListenAddr,
		Handler:        mux,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Printf("HTTP server listening on %s", cfg.HttpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server startup failed: %v", err)
		}
		logger.Println("HTTP server stopped listening.")
	}()

	// 5. [Conditional startup] gRPC health server
	var grpcServer *grpc.Server
	if cfg.GrpcListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
		if err != nil {
			logger.Fatalf("Unable to listen on gRPC port %s: %v", cfg.GrpcListenAddr, err)
		}
		grpcServer = grpc.NewServer()
		healthServer := health.NewServer()
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Printf("gRPC health server listening on %s", cfg.GrpcListenAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Fatalf("gRPC server startup failed: %v", err)
			}
			logger.Println("gRPC server stopped listening.")
		}()
	} else {
		logger.Println("grpc_listen_addr not configured, skipping gRPC health server startup.")
	}

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Printf("Received shutdown signal: %s, starting graceful shutdown of Commit Gateway...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Println("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown failed: %v", err)
	} else {
		logger.Println("HTTP server shutdown.")
	}
	if grpcServer != nil {
		logger.Println("Shutting down gRPC server...")
		grpcServer.GracefulStop()
		logger.Println("gRPC server shutdown.")
	}

	wg.Wait()
	logger.Println("All servers stopped. Commit Gateway shutdown.")
}
