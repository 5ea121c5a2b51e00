package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/internal/stream"
)

// KnowledgeHandler accepts knowledge base documents for indexing. Chunking
// and embedding run asynchronously on the worker pool.
type KnowledgeHandler struct {
	producer *stream.Producer
	log      zerolog.Logger
}

func NewKnowledgeHandler(producer *stream.Producer, log zerolog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		producer: producer,
		log:      log.With().Str("component", "knowledge_handler").Logger(),
	}
}

func (h *KnowledgeHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Post("/knowledge", h.UploadDocument)
}

type knowledgeUploadRequest struct {
	AccountID string `json:"account_id"`
	SourceID  string `json:"source_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

func (h *KnowledgeHandler) UploadDocument(c *fiber.Ctx) error {
	var req knowledgeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Content == "" {
		return fiber.NewError(fiber.StatusBadRequest, "content is required")
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid account_id")
	}

	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = uuid.New().String()
	}

	if _, err := h.producer.PublishKnowledgeIndex(c.Context(), accountID, sourceID, req.Title, req.Content); err != nil {
		h.log.Error().Err(err).Str("source_id", sourceID).Msg("failed to publish knowledge index job")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to enqueue document")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":    "accepted",
		"source_id": sourceID,
	})
}
