package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookRecordJob persists accepted deliveries into webhook_events. This is
// the business-logic collaborator behind the verifier: by the time a task
// reaches it, authenticity, freshness, and first-seen have been established.
type WebhookRecordJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWebhookRecordJob constructs the job.
func NewWebhookRecordJob(pool *pgxpool.Pool, logger *slog.Logger) *WebhookRecordJob {
	return &WebhookRecordJob{pool: pool, logger: logger}
}

// Handle processes TaskWebhookProcess tasks.
func (j *WebhookRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload WebhookProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.pool.Exec(ctx,
		`INSERT INTO webhook_events (id, provider, event_type, payload, received_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		payload.DeliveryID, payload.Provider, payload.EventType, []byte(payload.Payload), payload.ReceivedAt.UTC())
	if err != nil {
		return err
	}
	j.logger.Info("webhook event recorded",
		slog.String("delivery_id", payload.DeliveryID),
		slog.String("provider", payload.Provider),
		slog.String("event_type", payload.EventType))
	return nil
}
