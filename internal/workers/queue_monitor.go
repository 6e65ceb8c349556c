package workers

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"dockerbridge/internal/infra"
	"dockerbridge/internal/tasks"
)

// QueueInspector is the subset of asynq.Inspector the monitor reads
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueMonitor periodically logs queue depth, including archived (dead-letter) tasks
type QueueMonitor struct {
	*BaseWorker
	inspector QueueInspector
	interval  time.Duration
	closeFn   func() error
}

// NewQueueMonitor creates a monitor backed by an asynq inspector
func NewQueueMonitor(redis infra.RedisConfig, interval time.Duration, logger *zap.Logger) *QueueMonitor {
	inspector := asynq.NewInspector(tasks.RedisClientOpt(redis))
	m := NewQueueMonitorWithInspector(inspector, interval, logger)
	m.closeFn = inspector.Close
	return m
}

// NewQueueMonitorWithInspector creates a monitor over an existing inspector
func NewQueueMonitorWithInspector(inspector QueueInspector, interval time.Duration, logger *zap.Logger) *QueueMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &QueueMonitor{
		BaseWorker: NewBaseWorker("queue-monitor", logger),
		inspector:  inspector,
		interval:   interval,
	}
}

// Start polls until ctx is done
func (m *QueueMonitor) Start(ctx context.Context) error {
	m.Logger.Info("Queue monitoring enabled", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll()
		}
	}
}

// Stop releases the inspector connection
func (m *QueueMonitor) Stop(ctx context.Context) error {
	if m.closeFn == nil {
		return nil
	}
	return m.closeFn()
}

// Poll logs one snapshot of every non-idle queue
func (m *QueueMonitor) Poll() {
	queues, err := m.inspector.Queues()
	if err != nil {
		m.Logger.Warn("Failed to get queue stats", zap.Error(err))
		return
	}

	for _, queueName := range queues {
		queueInfo, err := m.inspector.GetQueueInfo(queueName)
		if err != nil {
			m.Logger.Warn("Failed to get queue info", zap.String("queue", queueName), zap.Error(err))
			continue
		}

		if queueInfo.Archived > 0 {
			m.Logger.Warn("Queue has archived tasks",
				zap.String("queue", queueName),
				zap.Int("archived", queueInfo.Archived),
			)
		}
		if queueInfo.Pending > 0 || queueInfo.Active > 0 || queueInfo.Scheduled > 0 || queueInfo.Retry > 0 {
			m.Logger.Info("Queue status",
				zap.String("queue", queueName),
				zap.Int("pending", queueInfo.Pending),
				zap.Int("active", queueInfo.Active),
				zap.Int("scheduled", queueInfo.Scheduled),
				zap.Int("retry", queueInfo.Retry),
			)
		}
	}
}
