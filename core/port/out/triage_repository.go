// Package out defines outbound ports: persistence repositories and the
// external decision oracles the pipeline consumes. Adapters implement these;
// core services depend only on the interfaces.
package out

import (
	"context"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// MessageRepository persists inbound messages. CreateIfAbsent is the
// idempotency anchor: concurrent ingestion paths submitting the same external
// id must yield exactly one row.
type MessageRepository interface {
	// CreateIfAbsent inserts the message keyed by (account_id, external_id).
	// Returns (message, true) when a new row was created, or the existing
	// row and false when the external id was already known.
	CreateIfAbsent(ctx context.Context, msg *domain.Message) (*domain.Message, bool, error)

	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	GetByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.Message, error)

	// UpdateStatus applies a status transition, refusing moves the message
	// lifecycle forbids.
	UpdateStatus(ctx context.Context, id int64, status domain.MessageStatus) error

	// SetClassification records the immutable classification outcome.
	SetClassification(ctx context.Context, id int64, result *domain.ClassificationResult) error

	SetThread(ctx context.Context, id int64, threadID int64) error
}

// ThreadRepository persists conversation threads keyed by normalized subject
// and participant pair.
type ThreadRepository interface {
	GetOrCreate(ctx context.Context, accountID uuid.UUID, subject, participantA, participantB string) (*domain.Thread, error)
	AppendMessage(ctx context.Context, threadID, messageID int64) error
	MessageCount(ctx context.Context, threadID int64) (int, error)
	IsFirstMessage(ctx context.Context, threadID, messageID int64) (bool, error)
}

// RuleRepository lists per-account automation rules.
type RuleRepository interface {
	ListActive(ctx context.Context, accountID uuid.UUID) ([]*domain.AutomationRule, error)
	GetByID(ctx context.Context, id int64) (*domain.AutomationRule, error)
	IncrementHitCount(ctx context.Context, id int64) error
}

// SettingsRepository loads per-account pipeline settings.
type SettingsRepository interface {
	// Get returns the account settings, or defaults when no row exists.
	Get(ctx context.Context, accountID uuid.UUID) (*domain.AccountSettings, error)
}

// ApprovalRepository manages the human-approval queue.
type ApprovalRepository interface {
	Create(ctx context.Context, item *domain.ApprovalQueueItem) (*domain.ApprovalQueueItem, error)
	GetByID(ctx context.Context, id int64) (*domain.ApprovalQueueItem, error)
	ListPending(ctx context.Context, accountID uuid.UUID) ([]*domain.ApprovalQueueItem, error)
	// Resolve applies the one-way pending → approved|rejected transition.
	Resolve(ctx context.Context, id int64, status domain.ApprovalStatus) error
}

// EscalationRepository manages the human-handling queue.
type EscalationRepository interface {
	Create(ctx context.Context, item *domain.EscalationQueueItem) (*domain.EscalationQueueItem, error)
	ListPending(ctx context.Context, accountID uuid.UUID) ([]*domain.EscalationQueueItem, error)
	MarkResolved(ctx context.Context, id int64) error
}

// ActivityLogger appends audit records. Logging failures are reported but
// never abort the pipeline.
type ActivityLogger interface {
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
}

// BodyArchive stores raw inbound message bodies out of the relational hot
// path. Best effort; archive failures are non-fatal.
type BodyArchive interface {
	Archive(ctx context.Context, accountID uuid.UUID, externalID, body string) error
	Fetch(ctx context.Context, accountID uuid.UUID, externalID string) (string, error)
}
