package persistence

import (
	"context"
	"fmt"

	"triage_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// ActivityAdapter implements out.ActivityLogger on PostgreSQL. The log is
// append-only; rows are never updated.
type ActivityAdapter struct {
	db *sqlx.DB
}

func NewActivityAdapter(db *sqlx.DB) *ActivityAdapter {
	return &ActivityAdapter{db: db}
}

func (a *ActivityAdapter) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	metadata := []byte("{}")
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
		metadata = encoded
	}

	query := `
		INSERT INTO activity_log (account_id, message_id, action, actor, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := a.db.ExecContext(ctx, query,
		entry.AccountID, entry.MessageID, entry.Action, string(entry.Actor), entry.Status, metadata); err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}
