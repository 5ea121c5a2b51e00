package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// JobType represents the type of a job.
type JobType = string

const (
	// Ingestion: one inbound email from any ingestion path.
	JobIngestMessage JobType = "ingest.message"

	// Approval: a human resolved a queued reply.
	JobApprovalResolve JobType = "approval.resolve"

	// Knowledge: (re)index a knowledge base document.
	JobKnowledgeIndex JobType = "knowledge.index"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// NewPriorityMessage creates a message with specific priority.
func NewPriorityMessage(jobType string, payload map[string]any, priority Priority) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// IsPriority checks if message should go to priority queue.
func (m *Message) IsPriority() bool {
	return m.Priority >= PriorityHigh
}

// IngestPayload carries one inbound email. ExternalID is the idempotency key,
// so redelivery of this job is harmless.
type IngestPayload struct {
	AccountID  string    `json:"account_id"`
	ExternalID string    `json:"external_id"`
	FromEmail  string    `json:"from_email"`
	ToEmail    string    `json:"to_email"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"` // push, catchup, manual
}

type ApprovalResolvePayload struct {
	ApprovalID int64 `json:"approval_id"`
	Approved   bool  `json:"approved"`
}

type KnowledgeIndexPayload struct {
	AccountID string `json:"account_id"`
	SourceID  string `json:"source_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}
