package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// IdempotencyCleaner sweeps expired idempotency records. Implemented by the
// webhook stores; the Redis backend's sweep is a no-op since TTLs expire
// records natively.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context) error
}

// IdempotencyCleanupJob runs the retention sweep.
type IdempotencyCleanupJob struct {
	store  IdempotencyCleaner
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store IdempotencyCleaner, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if err := j.store.Cleanup(ctx); err != nil {
		j.logger.Warn("idempotency cleanup", slog.Any("error", err))
		return err
	}
	return nil
}
