package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"dockerbridge/internal/api"
	"dockerbridge/internal/infra"
	"dockerbridge/internal/tasks"
	"dockerbridge/pkg/graceful"
)

func main() {
	// Load configuration (fails fast on missing required configs)
	config, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := infra.NewLogger(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("server_addr", config.Server.Addr),
		zap.String("server_port", config.Server.Port),
		zap.String("redis_addr", config.Redis.Addr),
	)

	// Task client hands build/push requests to the worker
	taskClient := tasks.NewTaskClient(config.Redis, logger)

	// Initialize HTTP server with chi router
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", config.Server.Addr, config.Server.Port),
		Handler:           api.Router(logger, taskClient),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := graceful.NewShutdownHandler(logger, 30*time.Second)
	shutdown.Register("task-client", graceful.ShutdownFunc(func(ctx context.Context) error {
		return taskClient.Close()
	}))
	shutdown.Register("http-server", server)

	// Start server in goroutine
	go func() {
		logger.Info("Starting API server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	if err := shutdown.WaitForShutdown(context.Background()); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
