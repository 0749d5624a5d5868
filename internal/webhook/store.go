package webhook

import (
	"context"
	"time"
)

// Store persists idempotency records. It is the only stateful collaborator
// of the verifier; the claim in SetIfAbsent must be atomic so that exactly
// one of two concurrent deliveries with the same key observes first-seen.
type Store interface {
	// SetIfAbsent records the key if it is not already present. It returns
	// true when this call claimed the key.
	SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error)
	// Get reports when a key was first processed, if it is still retained.
	Get(ctx context.Context, key string) (time.Time, bool, error)
	// Delete removes a key, typically to roll back failed processing.
	Delete(ctx context.Context, key string) error
	// Cleanup removes expired records on backends without native TTL.
	Cleanup(ctx context.Context) error
}
