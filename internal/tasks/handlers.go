package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"dockerbridge/internal/domain"
	"dockerbridge/internal/engine"
	bridgeerrors "dockerbridge/internal/errors"
)

// ImageService builds and pushes images; satisfied by *engine.Adapter
type ImageService interface {
	BuildImageTags(ctx context.Context, contextDir string, tags []string) (engine.Outcome, error)
	PushImage(ctx context.Context, tag string) (engine.Outcome, error)
}

// TaskHandler handles task processing
type TaskHandler struct {
	logger *zap.Logger
	images ImageService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(logger *zap.Logger, images ImageService) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		logger: logger,
		images: images,
	}
}

// HandleBuildTask processes image build tasks
func (h *TaskHandler) HandleBuildTask(ctx context.Context, t *asynq.Task) error {
	var payload BuildTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payloadError(err, "Failed to unmarshal build task payload")
	}

	ctx = h.taskContext(ctx, payload.RequestID)
	logger := domain.LoggerFromContext(ctx)
	logger.Info("Processing build task",
		zap.String("context_path", payload.ContextDir),
		zap.Strings("image_tags", payload.Tags),
	)

	outcome, err := h.images.BuildImageTags(ctx, payload.ContextDir, payload.Tags)
	if err != nil {
		h.logFailure(logger, "Build task failed", err)
		return classify(err)
	}

	h.writeResult(logger, t, TaskResult{Message: outcome.Message, Tags: payload.Tags})
	logger.Info("Build task completed", zap.String("message", outcome.Message))
	return nil
}

// HandlePushTask processes image push tasks
func (h *TaskHandler) HandlePushTask(ctx context.Context, t *asynq.Task) error {
	var payload PushTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payloadError(err, "Failed to unmarshal push task payload")
	}

	ctx = h.taskContext(ctx, payload.RequestID)
	logger := domain.LoggerFromContext(ctx)
	logger.Info("Processing push task", zap.String("image_tag", payload.Tag))

	outcome, err := h.images.PushImage(ctx, payload.Tag)
	if err != nil {
		h.logFailure(logger, "Push task failed", err)
		return classify(err)
	}

	h.writeResult(logger, t, TaskResult{Message: outcome.Message, Tags: []string{payload.Tag}})
	logger.Info("Push task completed", zap.String("message", outcome.Message))
	return nil
}

func (h *TaskHandler) taskContext(ctx context.Context, requestID string) context.Context {
	if requestID != "" {
		ctx = domain.WithRequestID(ctx, requestID)
	}
	return domain.WithLogger(ctx, h.logger)
}

func (h *TaskHandler) logFailure(logger *zap.Logger, msg string, err error) {
	if bridgeErr, ok := bridgeerrors.AsBridgeError(err); ok {
		logger.Error(msg,
			zap.String("error_code", string(bridgeErr.Code)),
			zap.String("error_message", bridgeErr.Message),
			zap.String("error_details", bridgeErr.Details),
		)
		return
	}
	logger.Error(msg, zap.Error(err))
}

// writeResult stores the outcome for inspection; tasks built outside a server have no writer
func (h *TaskHandler) writeResult(logger *zap.Logger, t *asynq.Task, result TaskResult) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn("Failed to marshal task result", zap.Error(err))
		return
	}
	if _, err := w.Write(data); err != nil {
		logger.Warn("Failed to write task result", zap.Error(err))
	}
}

func payloadError(err error, details string) error {
	return fmt.Errorf("%w: %w", bridgeerrors.Wrap(bridgeerrors.ErrorCodeTaskPayloadInvalid, err, details), asynq.SkipRetry)
}

// classify marks caller errors as not retryable
func classify(err error) error {
	if bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeInvalidArgument) ||
		bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeBuildContextInvalid) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
