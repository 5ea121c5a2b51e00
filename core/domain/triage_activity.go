package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityActor identifies who performed a logged action.
type ActivityActor string

const (
	ActorAI     ActivityActor = "ai"
	ActorHuman  ActivityActor = "human"
	ActorSystem ActivityActor = "system"
)

// Activity actions recorded by the pipeline. The audit trail is append-only;
// entries are never mutated or deleted.
const (
	ActionMessageReceived  = "message.received"
	ActionMessageDuplicate = "message.duplicate"
	ActionThreadLinked     = "thread.linked"
	ActionClassified       = "message.classified"
	ActionSentimentScored  = "message.sentiment"
	ActionRouted           = "message.routed"
	ActionReplyProposed    = "reply.proposed"
	ActionReplyBlocked     = "reply.blocked"
	ActionReplySent        = "reply.sent"
	ActionDeliveryFailed   = "reply.delivery_failed"
	ActionApprovalQueued   = "approval.queued"
	ActionApprovalResolved = "approval.resolved"
	ActionEscalated        = "message.escalated"
)

// ActivityLogEntry is one append-only audit record of a decision or side
// effect.
type ActivityLogEntry struct {
	ID        int64          `json:"id"`
	AccountID uuid.UUID      `json:"account_id"`
	MessageID int64          `json:"message_id,omitempty"`
	Action    string         `json:"action"`
	Actor     ActivityActor  `json:"actor"`
	Status    string         `json:"status"` // success, failure, blocked, skipped
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
