package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueWebhooks carries accepted webhook deliveries.
	QueueWebhooks = "webhooks"

	// TaskWebhookProcess records and processes one accepted delivery.
	TaskWebhookProcess = "webhook:process"
	// TaskIdempotencyCleanup sweeps expired idempotency records.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// WebhookProcessPayload describes one accepted webhook delivery.
type WebhookProcessPayload struct {
	DeliveryID string          `json:"delivery_id"`
	Provider   string          `json:"provider"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// NewWebhookProcessTask constructs an Asynq task for one delivery.
func NewWebhookProcessTask(payload WebhookProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWebhookProcess, data), nil
}

// NewIdempotencyCleanupTask constructs the retention sweep task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
