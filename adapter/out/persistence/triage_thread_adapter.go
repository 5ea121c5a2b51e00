package persistence

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ThreadAdapter implements out.ThreadRepository on PostgreSQL.
type ThreadAdapter struct {
	db *sqlx.DB
}

func NewThreadAdapter(db *sqlx.DB) *ThreadAdapter {
	return &ThreadAdapter{db: db}
}

type threadRow struct {
	ID           int64         `db:"id"`
	AccountID    uuid.UUID     `db:"account_id"`
	Subject      string        `db:"subject"`
	ParticipantA string        `db:"participant_a"`
	ParticipantB string        `db:"participant_b"`
	MessageIDs   pq.Int64Array `db:"message_ids"`
	MessageCount int           `db:"message_count"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

func (r *threadRow) toEntity() *domain.Thread {
	return &domain.Thread{
		ID:           r.ID,
		AccountID:    r.AccountID,
		Subject:      r.Subject,
		ParticipantA: r.ParticipantA,
		ParticipantB: r.ParticipantB,
		MessageIDs:   []int64(r.MessageIDs),
		MessageCount: r.MessageCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// GetOrCreate upserts on the conversation key. The no-op DO UPDATE makes
// RETURNING yield the row on both paths.
func (a *ThreadAdapter) GetOrCreate(ctx context.Context, accountID uuid.UUID, subject, participantA, participantB string) (*domain.Thread, error) {
	var row threadRow
	query := `
		INSERT INTO threads (account_id, subject, participant_a, participant_b)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, subject, participant_a, participant_b)
		DO UPDATE SET updated_at = NOW()
		RETURNING *`

	if err := a.db.GetContext(ctx, &row, query, accountID, subject, participantA, participantB); err != nil {
		return nil, fmt.Errorf("failed to get or create thread: %w", err)
	}
	return row.toEntity(), nil
}

// AppendMessage records the message in arrival order. array_position keeps
// the append idempotent under worker redelivery.
func (a *ThreadAdapter) AppendMessage(ctx context.Context, threadID, messageID int64) error {
	query := `
		UPDATE threads
		SET message_ids = array_append(message_ids, $1),
		    message_count = message_count + 1,
		    updated_at = NOW()
		WHERE id = $2 AND array_position(message_ids, $1) IS NULL`

	if _, err := a.db.ExecContext(ctx, query, messageID, threadID); err != nil {
		return fmt.Errorf("failed to append message to thread: %w", err)
	}
	return nil
}

func (a *ThreadAdapter) MessageCount(ctx context.Context, threadID int64) (int, error) {
	var count int
	query := `SELECT message_count FROM threads WHERE id = $1`

	if err := a.db.GetContext(ctx, &count, query, threadID); err != nil {
		return 0, fmt.Errorf("failed to count thread messages: %w", err)
	}
	return count, nil
}

// IsFirstMessage reports whether the message opened the thread.
func (a *ThreadAdapter) IsFirstMessage(ctx context.Context, threadID, messageID int64) (bool, error) {
	var first bool
	query := `SELECT message_ids[1] = $1 FROM threads WHERE id = $2`

	if err := a.db.GetContext(ctx, &first, query, messageID, threadID); err != nil {
		return false, fmt.Errorf("failed to check first message: %w", err)
	}
	return first, nil
}
