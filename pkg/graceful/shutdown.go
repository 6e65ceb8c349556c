package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownHandler manages graceful shutdown of services
type ShutdownHandler struct {
	logger   *zap.Logger
	services []namedService
	timeout  time.Duration
	signals  []os.Signal
}

// Shutdownable is an interface for services that can be gracefully shut down
type Shutdownable interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc adapts a plain function to Shutdownable
type ShutdownFunc func(ctx context.Context) error

// Shutdown calls f(ctx)
func (f ShutdownFunc) Shutdown(ctx context.Context) error {
	return f(ctx)
}

type namedService struct {
	name    string
	service Shutdownable
}

// NewShutdownHandler creates a new shutdown handler
func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShutdownHandler{
		logger:  logger,
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Register registers a service for graceful shutdown.
// Services are stopped in reverse registration order.
func (h *ShutdownHandler) Register(name string, service Shutdownable) {
	h.services = append(h.services, namedService{name: name, service: service})
}

// WaitForShutdown blocks until a shutdown signal arrives or ctx is done, then shuts down all services
func (h *ShutdownHandler) WaitForShutdown(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, h.signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		h.logger.Info("Shutdown signal received, starting graceful shutdown...", zap.String("signal", sig.String()))
	case <-ctx.Done():
		h.logger.Info("Context cancelled, starting graceful shutdown...")
	}

	return h.Shutdown()
}

// Shutdown stops every registered service within the handler's timeout and returns the first error
func (h *ShutdownHandler) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var firstErr error
	for i := len(h.services) - 1; i >= 0; i-- {
		svc := h.services[i]
		if err := svc.service.Shutdown(ctx); err != nil {
			h.logger.Error("Service shutdown error", zap.String("service", svc.name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		h.logger.Debug("Service stopped", zap.String("service", svc.name))
	}

	h.logger.Info("Graceful shutdown completed")
	return firstErr
}
