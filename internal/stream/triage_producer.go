package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// PublishIngest enqueues one inbound email for processing. Every ingestion
// path funnels through here; deduplication happens downstream in the
// pipeline, keyed on external_id.
func (p *Producer) PublishIngest(ctx context.Context, accountID uuid.UUID, externalID, from, to, subject, body, source string, receivedAt time.Time) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "ingest.message",
		Payload: map[string]any{
			"account_id":  accountID.String(),
			"external_id": externalID,
			"from_email":  from,
			"to_email":    to,
			"subject":     subject,
			"body":        body,
			"source":      source,
			"received_at": receivedAt,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamIngest, job)
}

func (p *Producer) PublishApprovalResolve(ctx context.Context, approvalID int64, approved bool) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "approval.resolve",
		Payload: map[string]any{
			"approval_id": approvalID,
			"approved":    approved,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamApproval, job)
}

func (p *Producer) PublishKnowledgeIndex(ctx context.Context, accountID uuid.UUID, sourceID, title, content string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "knowledge.index",
		Payload: map[string]any{
			"account_id": accountID.String(),
			"source_id":  sourceID,
			"title":      title,
			"content":    content,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamKnowledge, job)
}
