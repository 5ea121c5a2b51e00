package worker

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Handler routes worker jobs to their processors.
type Handler struct {
	ingest    *IngestProcessor
	approval  *ApprovalProcessor
	knowledge *KnowledgeProcessor
	log       zerolog.Logger
}

func NewHandler(
	ingest *IngestProcessor,
	approval *ApprovalProcessor,
	knowledge *KnowledgeProcessor,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		ingest:    ingest,
		approval:  approval,
		knowledge: knowledge,
		log:       log.With().Str("component", "worker_handler").Logger(),
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	h.log.Debug().Str("job_id", msg.ID).Str("job_type", msg.Type).Msg("processing job")

	switch msg.Type {
	case JobIngestMessage:
		return h.ingest.ProcessIngest(ctx, msg)
	case JobApprovalResolve:
		return h.approval.ProcessResolve(ctx, msg)
	case JobKnowledgeIndex:
		return h.knowledge.ProcessIndex(ctx, msg)
	default:
		h.log.Warn().Str("job_type", msg.Type).Msg("unknown job type")
		return nil
	}
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
