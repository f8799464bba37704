package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPeriodCloseNotify announces a completed period close.
	TaskPeriodCloseNotify = "period:close:notify"
	// TaskSnapshotExport writes a closed period's snapshots to CSV.
	TaskSnapshotExport = "snapshot:export"
	// TaskReadinessReminder is the morning sweep over the open period.
	TaskReadinessReminder = "period:readiness:reminder"
)

// PeriodCloseNotifyPayload announces a completed close.
type PeriodCloseNotifyPayload struct {
	PeriodID   int64     `json:"period_id"`
	TotalValue string    `json:"total_value"`
	ClosedAt   time.Time `json:"closed_at"`
}

// SnapshotExportPayload identifies the period to export.
type SnapshotExportPayload struct {
	PeriodID int64 `json:"period_id"`
}

// NewPeriodCloseNotifyTask constructs an Asynq task announcing a close.
func NewPeriodCloseNotifyTask(payload PeriodCloseNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPeriodCloseNotify, body, asynq.Queue(QueueDefault)), nil
}

// NewSnapshotExportTask constructs an Asynq task exporting snapshots.
func NewSnapshotExportTask(periodID int64) (*asynq.Task, error) {
	body, err := json.Marshal(SnapshotExportPayload{PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotExport, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewReadinessReminderTask constructs the cron task for the readiness
// sweep.
func NewReadinessReminderTask() *asynq.Task {
	return asynq.NewTask(TaskReadinessReminder, nil, asynq.Queue(QueueDefault))
}

// Client submits jobs to the queue and implements the notifier the
// close workflow enqueues through.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// PeriodClosed enqueues the close notification task.
func (c *Client) PeriodClosed(ctx context.Context, periodID int64, totalValue string) error {
	task, err := NewPeriodCloseNotifyTask(PeriodCloseNotifyPayload{
		PeriodID:   periodID,
		TotalValue: totalValue,
		ClosedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// ExportSnapshots enqueues the snapshot export task.
func (c *Client) ExportSnapshots(ctx context.Context, periodID int64) error {
	task, err := NewSnapshotExportTask(periodID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
