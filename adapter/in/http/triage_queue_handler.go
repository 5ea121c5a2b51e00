package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/port/out"
	"triage_server/internal/stream"
)

// QueueHandler exposes the approval and escalation queues and accepts human
// resolutions. Resolutions are published as priority jobs so delivery and
// audit run on the worker pool, same as ingestion.
type QueueHandler struct {
	approvals   out.ApprovalRepository
	escalations out.EscalationRepository
	producer    *stream.Producer
	log         zerolog.Logger
}

func NewQueueHandler(
	approvals out.ApprovalRepository,
	escalations out.EscalationRepository,
	producer *stream.Producer,
	log zerolog.Logger,
) *QueueHandler {
	return &QueueHandler{
		approvals:   approvals,
		escalations: escalations,
		producer:    producer,
		log:         log.With().Str("component", "queue_handler").Logger(),
	}
}

func (h *QueueHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Get("/approvals", h.ListApprovals)
	api.Post("/approvals/:id/resolve", h.ResolveApproval)
	api.Get("/escalations", h.ListEscalations)
	api.Post("/escalations/:id/resolve", h.ResolveEscalation)
}

func (h *QueueHandler) ListApprovals(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Query("account_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid account_id")
	}

	items, err := h.approvals.ListPending(c.Context(), accountID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"approvals": items, "total": len(items)})
}

type resolveRequest struct {
	Approved bool `json:"approved"`
}

// ResolveApproval records the reviewer's decision. The item must still be
// pending; double resolution returns a conflict.
func (h *QueueHandler) ResolveApproval(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid approval ID")
	}

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	item, err := h.approvals.GetByID(c.Context(), int64(itemID))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Approval item not found")
	}
	if item.Status != "pending" {
		return fiber.NewError(fiber.StatusConflict, "Approval item already resolved")
	}

	if _, err := h.producer.PublishApprovalResolve(c.Context(), int64(itemID), req.Approved); err != nil {
		h.log.Error().Err(err).Int("approval_id", itemID).Msg("failed to publish approval resolution")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to enqueue resolution")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":      "accepted",
		"approval_id": itemID,
		"approved":    req.Approved,
	})
}

func (h *QueueHandler) ListEscalations(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Query("account_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid account_id")
	}

	items, err := h.escalations.ListPending(c.Context(), accountID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"escalations": items, "total": len(items)})
}

func (h *QueueHandler) ResolveEscalation(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid escalation ID")
	}

	if err := h.escalations.MarkResolved(c.Context(), int64(itemID)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "escalation_id": itemID})
}
