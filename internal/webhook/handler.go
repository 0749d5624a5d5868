package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Queue hands accepted deliveries to background processing. Implemented by
// jobs.Client.
type Queue interface {
	EnqueueWebhookProcess(ctx context.Context, provider, deliveryID, eventType string, payload []byte, receivedAt time.Time) error
}

// VerificationMetrics records verification outcomes. Implemented by
// observability.Metrics.
type VerificationMetrics interface {
	WebhookVerification(provider, outcome string)
}

const defaultMaxBody = 1 << 20

// Handler terminates all inbound webhook endpoints. Every provider route
// goes through the same shared Verifier; there are no ad hoc signature
// checks elsewhere.
type Handler struct {
	logger    *slog.Logger
	verifiers map[string]*Verifier
	queue     Queue
	audit     *shared.AuditLogger
	metrics   VerificationMetrics
	validate  *validator.Validate
	maxBody   int64
}

// NewHandler builds a Handler with one verifier per provider.
func NewHandler(logger *slog.Logger, verifiers map[string]*Verifier, queue Queue, audit *shared.AuditLogger, metrics VerificationMetrics, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Handler{
		logger:    logger,
		verifiers: verifiers,
		queue:     queue,
		audit:     audit,
		metrics:   metrics,
		validate:  validator.New(),
		maxBody:   maxBody,
	}
}

// MountRoutes attaches webhook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/{provider}", h.handleDelivery)
	})
}

// eventEnvelope is the minimal shape every provider payload must satisfy.
// It is decoded only after the signature verified over the raw bytes.
type eventEnvelope struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	verifier, ok := h.verifiers[provider]
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown webhook provider")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.outcome(provider, "oversized")
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Payload too large"})
		return
	}

	req := Request{
		Body:           body,
		Signature:      r.Header.Get("x-signature"),
		Timestamp:      r.Header.Get("x-timestamp"),
		IdempotencyKey: r.Header.Get("x-idempotency-key"),
	}

	result, err := verifier.Verify(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrStaleTimestamp):
		h.reject(r, provider, req.IdempotencyKey, err)
		httpx.JSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
		return
	case errors.Is(err, ErrMissingIdempotencyKey):
		h.outcome(provider, "missing_key")
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Missing idempotency key"})
		return
	case errors.Is(err, ErrStoreUnavailable):
		h.logger.Error("webhook idempotency store", slog.String("provider", provider), slog.Any("error", err))
		h.outcome(provider, "store_unavailable")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Service Unavailable"})
		return
	case err != nil:
		h.logger.Error("webhook verify", slog.String("provider", provider), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal Error"})
		return
	}

	if result.Idempotent {
		// A retried delivery is a successful no-op, not an error.
		h.outcome(provider, "replay")
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(result.Payload, &envelope); err == nil {
		err = h.validate.Struct(envelope)
	} else {
		err = errors.New("payload is not a JSON event envelope")
	}
	if err != nil {
		h.outcome(provider, "invalid_envelope")
		if relErr := verifier.Release(r.Context(), req.IdempotencyKey); relErr != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", relErr))
		}
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid payload"})
		return
	}

	deliveryID := uuid.NewString()
	if err := h.queue.EnqueueWebhookProcess(r.Context(), provider, deliveryID, envelope.Type, result.Payload, result.ReceivedAt); err != nil {
		h.logger.Error("enqueue webhook", slog.String("provider", provider), slog.Any("error", err))
		h.outcome(provider, "enqueue_failed")
		// Drop the claim so the sender's retry is processed rather than
		// short-circuited as a replay of a delivery we never handled.
		if relErr := verifier.Release(r.Context(), req.IdempotencyKey); relErr != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", relErr))
		}
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Service Unavailable"})
		return
	}

	h.outcome(provider, "accepted")
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) reject(r *http.Request, provider, key string, err error) {
	h.logger.Warn("webhook rejected", slog.String("provider", provider), slog.Any("error", err))
	if errors.Is(err, ErrInvalidSignature) {
		h.outcome(provider, "invalid_signature")
	} else {
		h.outcome(provider, "stale_timestamp")
	}
	if h.audit != nil {
		h.audit.RecordAsync(h.logger, shared.AuditLog{
			Actor:    "webhook:" + provider,
			Action:   "webhook.rejected",
			Entity:   "delivery",
			EntityID: key,
			Meta:     map[string]any{"reason": err.Error()},
		})
	}
}

func (h *Handler) outcome(provider, outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookVerification(provider, outcome)
	}
}
