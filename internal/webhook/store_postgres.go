package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the webhook_idempotency_keys table. The
// primary-key unique violation is the atomic claim: the first insert wins,
// concurrent duplicates hit 23505.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SetIfAbsent inserts the key, reporting false on a duplicate.
func (s *PostgresStore) SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_idempotency_keys (key, processed_at, expires_at) VALUES ($1, $2, $3)`,
		key, at.UTC(), at.UTC().Add(ttl))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get returns the processing time for a key that has not yet expired.
func (s *PostgresStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT processed_at FROM webhook_idempotency_keys WHERE key = $1 AND expires_at > NOW()`,
		key).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Delete removes a key so a failed delivery can be retried.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_idempotency_keys WHERE key = $1`, key)
	return err
}

// Cleanup purges expired rows, making their keys claimable again.
func (s *PostgresStore) Cleanup(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_idempotency_keys WHERE expires_at < NOW()`)
	return err
}

var _ Store = (*PostgresStore)(nil)
