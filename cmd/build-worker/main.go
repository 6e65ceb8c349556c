package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"dockerbridge/internal/engine"
	"dockerbridge/internal/infra"
	"dockerbridge/internal/tasks"
	"dockerbridge/internal/workers"
	"dockerbridge/pkg/graceful"
)

const queueMonitorInterval = time.Minute

func main() {
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

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter, err := engine.Create(
		config.Docker.URL,
		config.Docker.Username,
		config.Docker.Password,
		config.Docker.Email,
		logger,
		engine.WithDockerfile(config.Docker.Dockerfile),
		engine.WithAPIVersion(config.Docker.APIVersion),
	)
	if err != nil {
		logger.Fatal("Failed to create engine client", zap.Error(err))
	}

	handler := tasks.NewTaskHandler(logger, adapter)
	runners := []workers.Worker{
		workers.NewAsynqServer(config.Redis, config.WorkerConcurrency, logger, handler),
		workers.NewQueueMonitor(config.Redis, queueMonitorInterval, logger),
	}

	shutdown := graceful.NewShutdownHandler(logger, 30*time.Second)
	shutdown.Register("engine", graceful.ShutdownFunc(func(context.Context) error {
		return adapter.Close()
	}))

	for _, w := range runners {
		w := w
		shutdown.Register(w.Name(), graceful.ShutdownFunc(w.Stop))
		go func() {
			logger.Info("Starting worker", zap.String("worker", w.Name()))
			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Worker stopped unexpectedly", zap.String("worker", w.Name()), zap.Error(err))
				cancel()
			}
		}()
	}

	// Blocks until a signal arrives or a worker fails
	if err := shutdown.WaitForShutdown(ctx); err != nil {
		logger.Error("Build worker shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("Build worker exited")
}
