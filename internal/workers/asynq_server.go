package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"dockerbridge/internal/infra"
	"dockerbridge/internal/tasks"
)

// AsynqServer wraps Asynq server for task processing
type AsynqServer struct {
	*BaseWorker
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler *tasks.TaskHandler
}

// NewAsynqServer creates a new Asynq server
func NewAsynqServer(redis infra.RedisConfig, concurrency int, logger *zap.Logger, handler *tasks.TaskHandler) *AsynqServer {
	base := NewBaseWorker("asynq-server", logger)

	config := asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			tasks.QueueCritical: 6, // Higher priority
			tasks.QueueDefault:  3,
			tasks.QueueLow:      1,
		},
		StrictPriority: true, // Process critical queue first
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			base.Logger.Error("Task processing error",
				zap.String("task_type", task.Type()),
				zap.Error(err),
			)
		}),
		Logger:   newAsynqLogger(base.Logger),
		LogLevel: asynq.InfoLevel,
	}

	s := &AsynqServer{
		BaseWorker: base,
		server:     asynq.NewServer(tasks.RedisClientOpt(redis), config),
		mux:        asynq.NewServeMux(),
		handler:    handler,
	}
	s.RegisterHandlers()
	return s
}

// RegisterHandlers registers task handlers with the mux
func (s *AsynqServer) RegisterHandlers() {
	s.mux.HandleFunc(tasks.TypeImageBuild, s.handler.HandleBuildTask)
	s.mux.HandleFunc(tasks.TypeImagePush, s.handler.HandlePushTask)
}

// Start starts the Asynq server and blocks until ctx is done
func (s *AsynqServer) Start(ctx context.Context) error {
	s.Logger.Info("Starting Asynq server")

	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Stop gracefully stops the Asynq server
func (s *AsynqServer) Stop(ctx context.Context) error {
	s.Logger.Info("Stopping Asynq server")
	s.server.Shutdown()
	return nil
}

// asynqLogger routes asynq's internal logging through zap
type asynqLogger struct {
	sugar *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{sugar: logger.Sugar()}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.sugar.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.sugar.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.sugar.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.sugar.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.sugar.Fatal(args...) }
