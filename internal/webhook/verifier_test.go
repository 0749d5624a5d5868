package webhook

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: make(map[string]time.Time)}
}

func (m *memoryStore) SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = at
	return true, nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.keys[key]
	return at, ok, m.err
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return m.err
}

func (m *memoryStore) Cleanup(ctx context.Context) error { return nil }

const testSecret = "whs_test"

func testRequest(body []byte, ts time.Time, key string) Request {
	return Request{
		Body:           body,
		Signature:      Sign([]byte(testSecret), body),
		Timestamp:      strconv.FormatInt(ts.Unix(), 10),
		IdempotencyKey: key,
	}
}

func TestVerifyFirstDeliveryAndReplay(t *testing.T) {
	store := newMemoryStore()
	v := NewVerifier(Config{Secret: testSecret}, store)
	now := time.Now()
	v.now = func() time.Time { return now }

	body := []byte(`{"contract_id":"c1"}`)
	req := testRequest(body, now, "k1")

	result, err := v.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.False(t, result.Idempotent)
	assert.Equal(t, body, result.Payload)

	// Identical headers a second time: a successful no-op, not an error.
	result, err = v.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.True(t, result.Idempotent)
	assert.Nil(t, result.Payload)
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	body := []byte(`{"contract_id":"c1"}`)
	sig := Sign([]byte(testSecret), body)

	assert.True(t, VerifySignature([]byte(testSecret), body, sig))
	assert.True(t, VerifySignature([]byte(testSecret), body, "sha256="+sig))
	assert.False(t, VerifySignature([]byte(testSecret), []byte(`{"contract_id":"c2"}`), sig))
	assert.False(t, VerifySignature([]byte("other_secret"), body, sig))
	assert.False(t, VerifySignature([]byte(testSecret), body, ""))
	assert.False(t, VerifySignature([]byte(testSecret), body, "not-hex"))
}

func TestVerifyRejectsBadSignatureBeforeStore(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("store must not be consulted")
	v := NewVerifier(Config{Secret: testSecret}, store)

	req := testRequest([]byte(`{"contract_id":"c1"}`), time.Now(), "k1")
	req.Signature = Sign([]byte("wrong_secret"), req.Body)

	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyStaleTimestamp(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret, Tolerance: 5 * time.Minute}, newMemoryStore())
	now := time.Now()
	v.now = func() time.Time { return now }

	// Correct signature, but ten minutes old against a five minute window.
	req := testRequest([]byte(`{"contract_id":"c1"}`), now.Add(-10*time.Minute), "k1")
	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestVerifyFutureTimestampBeyondSkew(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret, ClockSkew: 30 * time.Second}, newMemoryStore())
	now := time.Now()
	v.now = func() time.Time { return now }

	req := testRequest([]byte(`{"contract_id":"c1"}`), now.Add(2*time.Minute), "k1")
	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestVerifyTimestampMissingOrMalformed(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret}, newMemoryStore())
	body := []byte(`{"contract_id":"c1"}`)

	for _, raw := range []string{"", "yesterday"} {
		req := Request{Body: body, Signature: Sign([]byte(testSecret), body), Timestamp: raw, IdempotencyKey: "k1"}
		_, err := v.Verify(context.Background(), req)
		assert.ErrorIs(t, err, ErrStaleTimestamp, "timestamp %q", raw)
	}
}

func TestVerifyAcceptsRFC3339Timestamp(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret}, newMemoryStore())
	now := time.Now()
	v.now = func() time.Time { return now }

	body := []byte(`{"contract_id":"c1"}`)
	req := Request{
		Body:           body,
		Signature:      Sign([]byte(testSecret), body),
		Timestamp:      now.Format(time.RFC3339),
		IdempotencyKey: "k1",
	}
	result, err := v.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerifyMissingIdempotencyKey(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret}, newMemoryStore())
	req := testRequest([]byte(`{"contract_id":"c1"}`), time.Now(), "")
	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}

func TestVerifyStoreUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	v := NewVerifier(Config{Secret: testSecret}, store)

	req := testRequest([]byte(`{"contract_id":"c1"}`), time.Now(), "k1")
	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyConcurrentDuplicates(t *testing.T) {
	store := newMemoryStore()
	v := NewVerifier(Config{Secret: testSecret}, store)
	req := testRequest([]byte(`{"contract_id":"c1"}`), time.Now(), "k-race")

	const workers = 2
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := v.Verify(context.Background(), req)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		require.True(t, r.Verified)
		if !r.Idempotent {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "exactly one concurrent delivery may proceed")
}

func TestReleaseDropsClaim(t *testing.T) {
	store := newMemoryStore()
	v := NewVerifier(Config{Secret: testSecret}, store)
	req := testRequest([]byte(`{"contract_id":"c1"}`), time.Now(), "k1")

	_, err := v.Verify(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, v.Release(context.Background(), "k1"))

	result, err := v.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Idempotent, "released key is claimable again")
}
