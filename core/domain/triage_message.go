package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus represents the lifecycle state of an inbound support message.
// Transitions are monotonic: received → processing → terminal. A terminal
// status never reverts to processing.
type MessageStatus string

const (
	StatusReceived         MessageStatus = "received"
	StatusProcessing       MessageStatus = "processing"
	StatusResolved         MessageStatus = "resolved"
	StatusAwaitingApproval MessageStatus = "awaiting_approval"
	StatusEscalated        MessageStatus = "escalated"
)

// IsTerminal reports whether the status is a pipeline end state.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case StatusResolved, StatusAwaitingApproval, StatusEscalated:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the monotonic lifecycle.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case StatusReceived:
		return next == StatusProcessing
	case StatusProcessing:
		return next.IsTerminal()
	case StatusAwaitingApproval:
		// Approval resolution re-enters delivery (resolved) or escalates.
		return next == StatusResolved || next == StatusEscalated
	default:
		return false
	}
}

// Priority levels assigned by classification and sentiment evaluation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Message represents a single inbound support email.
type Message struct {
	ID         int64          `json:"id"`
	AccountID  uuid.UUID      `json:"account_id"`
	ExternalID string         `json:"external_id"` // provider message id, idempotency key
	ThreadID   *int64         `json:"thread_id,omitempty"`
	FromEmail  string         `json:"from_email"`
	ToEmail    string         `json:"to_email"`
	Subject    string         `json:"subject"`
	Body       string         `json:"body"`
	Status     MessageStatus  `json:"status"`
	Category   IntentCategory `json:"category,omitempty"`
	Confidence int            `json:"confidence"` // 0-100
	Priority   Priority       `json:"priority,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
