package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"dockerbridge/internal/domain"
	"dockerbridge/internal/tasks"
)

type BuildImageRequest struct {
	ContextDir string   `json:"context_dir" validate:"required"`
	Tags       []string `json:"tags" validate:"required,min=1,dive,required"`
	Priority   int      `json:"priority" validate:"min=0,max=10"`
}

type PushImageRequest struct {
	Tag      string `json:"tag" validate:"required"`
	Priority int    `json:"priority" validate:"min=0,max=10"`
}

type EnqueueResponse struct {
	TaskID    string `json:"task_id"`
	Queue     string `json:"queue"`
	RequestID string `json:"request_id,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// TaskEnqueuer hands image work to the worker queue
type TaskEnqueuer interface {
	EnqueueBuildTask(ctx context.Context, payload tasks.BuildTaskPayload, priority int) (*asynq.TaskInfo, error)
	EnqueuePushTask(ctx context.Context, payload tasks.PushTaskPayload, priority int) (*asynq.TaskInfo, error)
}

// Handlers

type Handlers struct {
	logger   *zap.Logger
	enqueuer TaskEnqueuer
}

func NewHandlers(logger *zap.Logger, enqueuer TaskEnqueuer) *Handlers {
	return &Handlers{
		logger:   logger,
		enqueuer: enqueuer,
	}
}

// Helper to write JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// Helper to write error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}

// POST /api/v1/images/build - Enqueue an image build
func (h *Handlers) BuildImage(w http.ResponseWriter, r *http.Request) {
	var req BuildImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.ValidateRequest(w, r, &req) {
		return
	}
	if h.enqueuer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Task queue unavailable")
		return
	}

	ctx := r.Context()
	requestID := domain.RequestID(ctx)
	info, err := h.enqueuer.EnqueueBuildTask(ctx, tasks.BuildTaskPayload{
		RequestID:  requestID,
		ContextDir: req.ContextDir,
		Tags:       req.Tags,
	}, req.Priority)
	if err != nil {
		domain.LoggerFromContext(ctx).Error("Failed to enqueue build task", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "Failed to enqueue build task")
		return
	}

	h.writeJSON(w, http.StatusAccepted, EnqueueResponse{TaskID: info.ID, Queue: info.Queue, RequestID: requestID})
}

// POST /api/v1/images/push - Enqueue an image push
func (h *Handlers) PushImage(w http.ResponseWriter, r *http.Request) {
	var req PushImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.ValidateRequest(w, r, &req) {
		return
	}
	if h.enqueuer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Task queue unavailable")
		return
	}

	ctx := r.Context()
	requestID := domain.RequestID(ctx)
	info, err := h.enqueuer.EnqueuePushTask(ctx, tasks.PushTaskPayload{
		RequestID: requestID,
		Tag:       req.Tag,
	}, req.Priority)
	if err != nil {
		domain.LoggerFromContext(ctx).Error("Failed to enqueue push task", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "Failed to enqueue push task")
		return
	}

	h.writeJSON(w, http.StatusAccepted, EnqueueResponse{TaskID: info.ID, Queue: info.Queue, RequestID: requestID})
}

// GET /health - Health check
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
