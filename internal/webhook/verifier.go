package webhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrInvalidSignature indicates the body MAC does not match the header.
	ErrInvalidSignature = errors.New("webhook: invalid signature")
	// ErrStaleTimestamp indicates a missing, malformed, or out-of-window timestamp.
	ErrStaleTimestamp = errors.New("webhook: stale or invalid timestamp")
	// ErrMissingIdempotencyKey indicates the delivery carried no idempotency key.
	ErrMissingIdempotencyKey = errors.New("webhook: idempotency key required")
	// ErrStoreUnavailable indicates the idempotency store could not be
	// reached. It is never conflated with a duplicate or an invalid
	// signature; callers must not proceed without a verdict from the store.
	ErrStoreUnavailable = errors.New("webhook: idempotency store unavailable")
)

const (
	defaultTolerance    = 5 * time.Minute
	defaultClockSkew    = 30 * time.Second
	defaultRetention    = 24 * time.Hour
	defaultStoreTimeout = 3 * time.Second
)

// Config tunes a Verifier. Zero values fall back to defaults.
type Config struct {
	Secret       string
	Tolerance    time.Duration
	ClockSkew    time.Duration
	Retention    time.Duration
	StoreTimeout time.Duration
}

// Request is one inbound delivery, pre-parse. Body holds the exact raw bytes
// received; signature verification is computed over them untouched.
type Request struct {
	Body           []byte
	Signature      string
	Timestamp      string
	IdempotencyKey string
}

// Result is the verifier's verdict. Callers branch on all three shapes:
// rejected (error), replay (Verified && Idempotent), or first delivery
// (Verified && !Idempotent) which alone carries the payload onward.
type Result struct {
	Verified   bool
	Idempotent bool
	Payload    []byte
	ReceivedAt time.Time
}

// Verifier decides whether an inbound webhook is authentic, fresh, and not a
// duplicate before its payload is trusted. It owns no storage; the
// idempotency store is injected.
type Verifier struct {
	secret       []byte
	tolerance    time.Duration
	skew         time.Duration
	retention    time.Duration
	storeTimeout time.Duration
	store        Store
	now          func() time.Time
}

// NewVerifier constructs a Verifier over the given store.
func NewVerifier(cfg Config, store Store) *Verifier {
	v := &Verifier{
		secret:       []byte(cfg.Secret),
		tolerance:    cfg.Tolerance,
		skew:         cfg.ClockSkew,
		retention:    cfg.Retention,
		storeTimeout: cfg.StoreTimeout,
		store:        store,
		now:          time.Now,
	}
	if v.tolerance <= 0 {
		v.tolerance = defaultTolerance
	}
	if v.skew <= 0 {
		v.skew = defaultClockSkew
	}
	if v.retention <= 0 {
		v.retention = defaultRetention
	}
	if v.storeTimeout <= 0 {
		v.storeTimeout = defaultStoreTimeout
	}
	return v
}

// Verify runs the signature, freshness, and idempotency checks in order.
// The signature gate runs first so nothing downstream touches the store or
// the clock for unauthenticated traffic.
func (v *Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	if !VerifySignature(v.secret, req.Body, req.Signature) {
		return Result{}, ErrInvalidSignature
	}

	ts, err := parseTimestamp(req.Timestamp)
	now := v.now()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStaleTimestamp, err)
	}
	if now.Sub(ts) > v.tolerance {
		return Result{}, fmt.Errorf("%w: delivery older than %s", ErrStaleTimestamp, v.tolerance)
	}
	if ts.Sub(now) > v.skew {
		return Result{}, fmt.Errorf("%w: timestamp ahead of clock", ErrStaleTimestamp)
	}

	if req.IdempotencyKey == "" {
		return Result{}, ErrMissingIdempotencyKey
	}

	// The claim is committed before control passes to business logic,
	// closing the race between near-simultaneous retries.
	storeCtx, cancel := context.WithTimeout(ctx, v.storeTimeout)
	defer cancel()
	claimed, err := v.store.SetIfAbsent(storeCtx, req.IdempotencyKey, now, v.retention)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !claimed {
		return Result{Verified: true, Idempotent: true, ReceivedAt: now}, nil
	}
	return Result{Verified: true, Idempotent: false, Payload: req.Body, ReceivedAt: now}, nil
}

// Release drops a claimed idempotency key after downstream processing could
// not start, so the sender's retry is not swallowed as a replay.
func (v *Verifier) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	storeCtx, cancel := context.WithTimeout(ctx, v.storeTimeout)
	defer cancel()
	return v.store.Delete(storeCtx, key)
}

// parseTimestamp accepts unix-epoch seconds, with RFC3339 as a fallback for
// providers that send formatted times.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("timestamp header missing")
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("timestamp not unix seconds or RFC3339")
	}
	return ts, nil
}
