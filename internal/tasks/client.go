package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"dockerbridge/internal/infra"
)

const (
	buildTaskTimeout = 30 * time.Minute
	pushTaskTimeout  = 15 * time.Minute
	resultRetention  = 24 * time.Hour
)

// RedisClientOpt converts queue configuration into asynq connection options
func RedisClientOpt(cfg infra.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// TaskClient wraps Asynq client for task enqueueing
type TaskClient struct {
	client *asynq.Client
	logger *zap.Logger
}

// NewTaskClient creates a new task client
func NewTaskClient(cfg infra.RedisConfig, logger *zap.Logger) *TaskClient {
	return &TaskClient{
		client: asynq.NewClient(RedisClientOpt(cfg)),
		logger: logger,
	}
}

// Close closes the task client
func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueueBuildTask enqueues an image build task
func (c *TaskClient) EnqueueBuildTask(ctx context.Context, payload BuildTaskPayload, priority int) (*asynq.TaskInfo, error) {
	task, err := NewBuildTask(payload)
	if err != nil {
		return nil, err
	}

	taskInfo, err := c.client.EnqueueContext(ctx, task, taskOptions(buildTaskTimeout, priority)...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue build task: %w", err)
	}

	c.logger.Info("Build task enqueued",
		zap.String("task_id", taskInfo.ID),
		zap.String("request_id", payload.RequestID),
		zap.Strings("image_tags", payload.Tags),
		zap.String("queue", taskInfo.Queue),
	)

	return taskInfo, nil
}

// EnqueuePushTask enqueues an image push task
func (c *TaskClient) EnqueuePushTask(ctx context.Context, payload PushTaskPayload, priority int) (*asynq.TaskInfo, error) {
	task, err := NewPushTask(payload)
	if err != nil {
		return nil, err
	}

	taskInfo, err := c.client.EnqueueContext(ctx, task, taskOptions(pushTaskTimeout, priority)...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue push task: %w", err)
	}

	c.logger.Info("Push task enqueued",
		zap.String("task_id", taskInfo.ID),
		zap.String("request_id", payload.RequestID),
		zap.String("image_tag", payload.Tag),
		zap.String("queue", taskInfo.Queue),
	)

	return taskInfo, nil
}

// NewBuildTask encodes payload as an image build task
func NewBuildTask(payload BuildTaskPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal build task payload: %w", err)
	}
	return asynq.NewTask(TypeImageBuild, payloadBytes), nil
}

// NewPushTask encodes payload as an image push task
func NewPushTask(payload PushTaskPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push task payload: %w", err)
	}
	return asynq.NewTask(TypeImagePush, payloadBytes), nil
}

// taskOptions never retries: an engine error is a full failure of the request
func taskOptions(timeout time.Duration, priority int) []asynq.Option {
	return []asynq.Option{
		asynq.TaskID(uuid.NewString()),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Retention(resultRetention),
		asynq.Queue(QueueForPriority(priority)),
	}
}

// QueueForPriority returns queue name based on priority
// Priority: 0-3 = low, 4-7 = default, 8-10 = critical
func QueueForPriority(priority int) string {
	if priority >= 8 {
		return QueueCritical
	} else if priority >= 4 {
		return QueueDefault
	}
	return QueueLow
}
