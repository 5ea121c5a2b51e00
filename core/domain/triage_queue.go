package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the one-way state of a queued AI reply.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalQueueItem holds an AI-proposed reply awaiting human sign-off.
// References the message by id; it does not own it.
type ApprovalQueueItem struct {
	ID                 int64          `json:"id"`
	AccountID          uuid.UUID      `json:"account_id"`
	MessageID          int64          `json:"message_id"`
	RuleID             int64          `json:"rule_id"`
	ProposedReply      string         `json:"proposed_reply"`
	AdjustedConfidence int            `json:"adjusted_confidence"`
	Status             ApprovalStatus `json:"status"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// CanResolve reports whether the item can transition to the given status.
// pending → approved|rejected is the only legal move.
func (i *ApprovalQueueItem) CanResolve(next ApprovalStatus) bool {
	return i.Status == ApprovalPending &&
		(next == ApprovalApproved || next == ApprovalRejected)
}

// EscalationStatus is the state of an escalated message.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
)

// EscalationQueueItem parks a message for direct human handling. Immutable
// once created except its status.
type EscalationQueueItem struct {
	ID         int64            `json:"id"`
	AccountID  uuid.UUID        `json:"account_id"`
	MessageID  int64            `json:"message_id"`
	Priority   Priority         `json:"priority"`
	Reason     string           `json:"reason"`
	Status     EscalationStatus `json:"status"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
