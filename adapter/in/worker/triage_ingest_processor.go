package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/agent/rag"
	"triage_server/core/domain"
	"triage_server/core/service/pipeline"
)

// IngestProcessor feeds inbound messages into the pipeline. Redelivered jobs
// short-circuit at the pipeline's idempotent create.
type IngestProcessor struct {
	pipeline *pipeline.Pipeline
	log      zerolog.Logger
}

func NewIngestProcessor(p *pipeline.Pipeline, log zerolog.Logger) *IngestProcessor {
	return &IngestProcessor{
		pipeline: p,
		log:      log.With().Str("component", "ingest_processor").Logger(),
	}
}

func (p *IngestProcessor) ProcessIngest(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[IngestPayload](msg)
	if err != nil {
		return fmt.Errorf("failed to parse ingest payload: %w", err)
	}

	accountID, err := uuid.Parse(payload.AccountID)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", payload.AccountID, err)
	}

	receivedAt := payload.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	outcome, err := p.pipeline.Process(ctx, &domain.Message{
		AccountID:  accountID,
		ExternalID: payload.ExternalID,
		FromEmail:  payload.FromEmail,
		ToEmail:    payload.ToEmail,
		Subject:    payload.Subject,
		Body:       payload.Body,
		ReceivedAt: receivedAt,
		Metadata:   map[string]any{"source": payload.Source},
	})
	if err != nil {
		return err
	}

	p.log.Info().
		Str("external_id", payload.ExternalID).
		Str("source", payload.Source).
		Bool("duplicate", outcome.Duplicate).
		Str("disposition", string(outcome.Disposition)).
		Msg("message ingested")
	return nil
}

// ApprovalProcessor applies human approval decisions.
type ApprovalProcessor struct {
	pipeline *pipeline.Pipeline
	log      zerolog.Logger
}

func NewApprovalProcessor(p *pipeline.Pipeline, log zerolog.Logger) *ApprovalProcessor {
	return &ApprovalProcessor{
		pipeline: p,
		log:      log.With().Str("component", "approval_processor").Logger(),
	}
}

func (p *ApprovalProcessor) ProcessResolve(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[ApprovalResolvePayload](msg)
	if err != nil {
		return fmt.Errorf("failed to parse approval payload: %w", err)
	}

	outcome, err := p.pipeline.ResolveApproval(ctx, payload.ApprovalID, payload.Approved)
	if err != nil {
		return err
	}

	p.log.Info().
		Int64("approval_id", payload.ApprovalID).
		Bool("approved", payload.Approved).
		Bool("reply_sent", outcome.ReplySent).
		Msg("approval resolved")
	return nil
}

// KnowledgeProcessor indexes knowledge base documents for retrieval.
type KnowledgeProcessor struct {
	engine *rag.Engine
	log    zerolog.Logger
}

func NewKnowledgeProcessor(engine *rag.Engine, log zerolog.Logger) *KnowledgeProcessor {
	return &KnowledgeProcessor{
		engine: engine,
		log:    log.With().Str("component", "knowledge_processor").Logger(),
	}
}

func (p *KnowledgeProcessor) ProcessIndex(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[KnowledgeIndexPayload](msg)
	if err != nil {
		return fmt.Errorf("failed to parse knowledge payload: %w", err)
	}

	accountID, err := uuid.Parse(payload.AccountID)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", payload.AccountID, err)
	}

	stored, err := p.engine.Index(ctx, accountID, payload.SourceID, payload.Title, payload.Content)
	if err != nil {
		return err
	}

	p.log.Info().
		Str("source_id", payload.SourceID).
		Int("chunks", stored).
		Msg("knowledge document indexed")
	return nil
}
