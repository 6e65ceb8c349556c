package tasks

// Task type constants
const (
	TypeImageBuild = "image:build"
	TypeImagePush  = "image:push"
)

// Task queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// BuildTaskPayload represents the payload for an image build task
type BuildTaskPayload struct {
	RequestID  string   `json:"request_id,omitempty"`
	ContextDir string   `json:"context_dir"`
	Tags       []string `json:"tags"`
}

// PushTaskPayload represents the payload for an image push task
type PushTaskPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Tag       string `json:"tag"`
}

// TaskResult is written to the task's result slot on success
type TaskResult struct {
	Message string   `json:"message"`
	Tags    []string `json:"tags"`
}
