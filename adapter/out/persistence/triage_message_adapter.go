// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"triage_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MessageAdapter implements out.MessageRepository on PostgreSQL.
type MessageAdapter struct {
	db *sqlx.DB
}

func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

type messageRow struct {
	ID         int64          `db:"id"`
	AccountID  uuid.UUID      `db:"account_id"`
	ExternalID string         `db:"external_id"`
	ThreadID   sql.NullInt64  `db:"thread_id"`
	FromEmail  string         `db:"from_email"`
	ToEmail    string         `db:"to_email"`
	Subject    string         `db:"subject"`
	Body       string         `db:"body"`
	Status     string         `db:"status"`
	Category   sql.NullString `db:"category"`
	Confidence int            `db:"confidence"`
	Priority   sql.NullString `db:"priority"`
	Metadata   []byte         `db:"metadata"`
	ReceivedAt time.Time      `db:"received_at"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r *messageRow) toEntity() *domain.Message {
	msg := &domain.Message{
		ID:         r.ID,
		AccountID:  r.AccountID,
		ExternalID: r.ExternalID,
		FromEmail:  r.FromEmail,
		ToEmail:    r.ToEmail,
		Subject:    r.Subject,
		Body:       r.Body,
		Status:     domain.MessageStatus(r.Status),
		Confidence: r.Confidence,
		ReceivedAt: r.ReceivedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.ThreadID.Valid {
		msg.ThreadID = &r.ThreadID.Int64
	}
	if r.Category.Valid {
		msg.Category = domain.IntentCategory(r.Category.String)
	}
	if r.Priority.Valid {
		msg.Priority = domain.Priority(r.Priority.String)
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &msg.Metadata)
	}
	return msg
}

// CreateIfAbsent inserts the message keyed by (account_id, external_id). A
// conflicting insert returns the existing row, so concurrent submissions of
// the same external id across ingestion paths collapse to one record.
func (a *MessageAdapter) CreateIfAbsent(ctx context.Context, msg *domain.Message) (*domain.Message, bool, error) {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal message metadata: %w", err)
	}
	if msg.Metadata == nil {
		metadata = []byte("{}")
	}

	var row messageRow
	query := `
		INSERT INTO messages (account_id, external_id, from_email, to_email, subject, body, status, metadata, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account_id, external_id) DO NOTHING
		RETURNING *`

	err = a.db.GetContext(ctx, &row, query,
		msg.AccountID, msg.ExternalID, msg.FromEmail, msg.ToEmail,
		msg.Subject, msg.Body, string(msg.Status), metadata, msg.ReceivedAt)
	if err == nil {
		return row.toEntity(), true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create message: %w", err)
	}

	// Conflict path: the row already exists.
	existing, err := a.GetByExternalID(ctx, msg.AccountID, msg.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (a *MessageAdapter) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	var row messageRow
	query := `SELECT * FROM messages WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return row.toEntity(), nil
}

func (a *MessageAdapter) GetByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.Message, error) {
	var row messageRow
	query := `SELECT * FROM messages WHERE account_id = $1 AND external_id = $2`

	if err := a.db.GetContext(ctx, &row, query, accountID, externalID); err != nil {
		return nil, fmt.Errorf("failed to get message by external id: %w", err)
	}
	return row.toEntity(), nil
}

// UpdateStatus applies a lifecycle transition. The WHERE clause enforces the
// monotonic lifecycle at the database, so a replayed worker message can never
// drag a terminal row back to processing.
func (a *MessageAdapter) UpdateStatus(ctx context.Context, id int64, status domain.MessageStatus) error {
	var current string
	if err := a.db.GetContext(ctx, &current, `SELECT status FROM messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to read message status: %w", err)
	}
	if !domain.MessageStatus(current).CanTransitionTo(status) {
		return fmt.Errorf("invalid status transition %s -> %s for message %d", current, status, id)
	}

	query := `UPDATE messages SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := a.db.ExecContext(ctx, query, string(status), id, current)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("concurrent status change on message %d", id)
	}
	return nil
}

func (a *MessageAdapter) SetClassification(ctx context.Context, id int64, result *domain.ClassificationResult) error {
	query := `
		UPDATE messages
		SET category = $1, confidence = $2, priority = $3, updated_at = NOW()
		WHERE id = $4`

	if _, err := a.db.ExecContext(ctx, query,
		string(result.Category), result.Confidence, string(result.Priority), id); err != nil {
		return fmt.Errorf("failed to set classification: %w", err)
	}
	return nil
}

func (a *MessageAdapter) SetThread(ctx context.Context, id int64, threadID int64) error {
	query := `UPDATE messages SET thread_id = $1, updated_at = NOW() WHERE id = $2`

	if _, err := a.db.ExecContext(ctx, query, threadID, id); err != nil {
		return fmt.Errorf("failed to set message thread: %w", err)
	}
	return nil
}
