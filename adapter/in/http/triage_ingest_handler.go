// Package http contains the fiber HTTP adapters: ingestion endpoints, queue
// management, and health checks.
package http

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"triage_server/internal/stream"
)

// Fast-path duplicate suppression before the job even reaches the stream.
// The pipeline's conditional create is the real idempotency guarantee; this
// just sheds webhook retry storms cheaply.
const ingestIdempotencyTTL = 5 * time.Minute

type IngestMetrics struct {
	Accepted   int64
	Duplicates int64
	Errors     int64
}

// IngestHandler accepts inbound messages from all three ingestion paths:
// provider push webhooks, periodic catch-up batches, and manual submission.
// All paths publish the same job to the ingest stream.
type IngestHandler struct {
	producer *stream.Producer
	redis    *redis.Client
	metrics  IngestMetrics
	log      zerolog.Logger
}

func NewIngestHandler(producer *stream.Producer, redisClient *redis.Client, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		producer: producer,
		redis:    redisClient,
		log:      log.With().Str("component", "ingest_handler").Logger(),
	}
}

func (h *IngestHandler) Register(app *fiber.App) {
	app.Post("/webhook/inbound", h.PushWebhook)
	app.Post("/api/v1/webhook/inbound", h.PushWebhook)

	api := app.Group("/api/v1")
	api.Post("/messages", h.ManualIngest)
	api.Post("/messages/catchup", h.CatchupIngest)
	api.Get("/metrics/ingest", h.GetMetrics)
}

type inboundMessage struct {
	AccountID  string    `json:"account_id"`
	ExternalID string    `json:"external_id"`
	FromEmail  string    `json:"from_email"`
	ToEmail    string    `json:"to_email"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

func (m *inboundMessage) validate() error {
	if m.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if m.ExternalID == "" {
		return fmt.Errorf("external_id is required")
	}
	if m.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	return nil
}

// PushWebhook handles real-time push notifications from the mail provider.
// Responds fast; processing happens on the worker pool.
func (h *IngestHandler) PushWebhook(c *fiber.Ctx) error {
	return h.ingestOne(c, "push")
}

// ManualIngest handles operator-submitted messages, including replays.
func (h *IngestHandler) ManualIngest(c *fiber.Ctx) error {
	return h.ingestOne(c, "manual")
}

func (h *IngestHandler) ingestOne(c *fiber.Ctx, source string) error {
	var msg inboundMessage
	if err := c.BodyParser(&msg); err != nil {
		atomic.AddInt64(&h.metrics.Errors, 1)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := msg.validate(); err != nil {
		atomic.AddInt64(&h.metrics.Errors, 1)
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	accountID, err := uuid.Parse(msg.AccountID)
	if err != nil {
		atomic.AddInt64(&h.metrics.Errors, 1)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid account_id")
	}

	if h.isDuplicate(c.Context(), accountID, msg.ExternalID) {
		atomic.AddInt64(&h.metrics.Duplicates, 1)
		return c.JSON(fiber.Map{"status": "duplicate", "external_id": msg.ExternalID})
	}

	if _, err := h.publish(c.Context(), accountID, &msg, source); err != nil {
		atomic.AddInt64(&h.metrics.Errors, 1)
		h.log.Error().Err(err).Str("external_id", msg.ExternalID).Msg("failed to publish ingest job")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to enqueue message")
	}

	atomic.AddInt64(&h.metrics.Accepted, 1)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":      "accepted",
		"external_id": msg.ExternalID,
	})
}

type catchupRequest struct {
	AccountID string           `json:"account_id"`
	Messages  []inboundMessage `json:"messages"`
}

// CatchupIngest handles the periodic mailbox sweep. Messages already seen by
// the push path dedupe downstream, so overlap between paths is expected and
// harmless.
func (h *IngestHandler) CatchupIngest(c *fiber.Ctx) error {
	var req catchupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid account_id")
	}

	accepted, duplicates := 0, 0
	for i := range req.Messages {
		msg := &req.Messages[i]
		if msg.ExternalID == "" || msg.FromEmail == "" {
			continue
		}
		if h.isDuplicate(c.Context(), accountID, msg.ExternalID) {
			duplicates++
			continue
		}
		if _, err := h.publish(c.Context(), accountID, msg, "catchup"); err != nil {
			h.log.Warn().Err(err).Str("external_id", msg.ExternalID).Msg("catchup publish failed")
			continue
		}
		accepted++
	}

	atomic.AddInt64(&h.metrics.Accepted, int64(accepted))
	atomic.AddInt64(&h.metrics.Duplicates, int64(duplicates))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted":   accepted,
		"duplicates": duplicates,
		"total":      len(req.Messages),
	})
}

func (h *IngestHandler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"accepted":   atomic.LoadInt64(&h.metrics.Accepted),
		"duplicates": atomic.LoadInt64(&h.metrics.Duplicates),
		"errors":     atomic.LoadInt64(&h.metrics.Errors),
	})
}

func (h *IngestHandler) publish(ctx context.Context, accountID uuid.UUID, msg *inboundMessage, source string) (string, error) {
	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return h.producer.PublishIngest(ctx, accountID,
		msg.ExternalID, msg.FromEmail, msg.ToEmail, msg.Subject, msg.Body, source, receivedAt)
}

func (h *IngestHandler) isDuplicate(ctx context.Context, accountID uuid.UUID, externalID string) bool {
	if h.redis == nil {
		return false
	}
	key := fmt.Sprintf("ingest:seen:%s:%s", accountID, externalID)
	ok, err := h.redis.SetNX(ctx, key, "1", ingestIdempotencyTTL).Result()
	return err == nil && !ok
}
