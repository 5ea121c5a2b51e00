package persistence

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ApprovalAdapter implements out.ApprovalRepository on PostgreSQL.
type ApprovalAdapter struct {
	db *sqlx.DB
}

func NewApprovalAdapter(db *sqlx.DB) *ApprovalAdapter {
	return &ApprovalAdapter{db: db}
}

type approvalRow struct {
	ID                 int64        `db:"id"`
	AccountID          uuid.UUID    `db:"account_id"`
	MessageID          int64        `db:"message_id"`
	RuleID             int64        `db:"rule_id"`
	ProposedReply      string       `db:"proposed_reply"`
	AdjustedConfidence int          `db:"adjusted_confidence"`
	Status             string       `db:"status"`
	ResolvedAt         *time.Time   `db:"resolved_at"`
	CreatedAt          time.Time    `db:"created_at"`
}

func (r *approvalRow) toEntity() *domain.ApprovalQueueItem {
	return &domain.ApprovalQueueItem{
		ID:                 r.ID,
		AccountID:          r.AccountID,
		MessageID:          r.MessageID,
		RuleID:             r.RuleID,
		ProposedReply:      r.ProposedReply,
		AdjustedConfidence: r.AdjustedConfidence,
		Status:             domain.ApprovalStatus(r.Status),
		ResolvedAt:         r.ResolvedAt,
		CreatedAt:          r.CreatedAt,
	}
}

func (a *ApprovalAdapter) Create(ctx context.Context, item *domain.ApprovalQueueItem) (*domain.ApprovalQueueItem, error) {
	var row approvalRow
	query := `
		INSERT INTO approval_queue (account_id, message_id, rule_id, proposed_reply, adjusted_confidence, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`

	err := a.db.GetContext(ctx, &row, query,
		item.AccountID, item.MessageID, item.RuleID,
		item.ProposedReply, item.AdjustedConfidence, string(domain.ApprovalPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create approval item: %w", err)
	}
	return row.toEntity(), nil
}

func (a *ApprovalAdapter) GetByID(ctx context.Context, id int64) (*domain.ApprovalQueueItem, error) {
	var row approvalRow
	query := `SELECT * FROM approval_queue WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get approval item: %w", err)
	}
	return row.toEntity(), nil
}

func (a *ApprovalAdapter) ListPending(ctx context.Context, accountID uuid.UUID) ([]*domain.ApprovalQueueItem, error) {
	var rows []approvalRow
	query := `SELECT * FROM approval_queue WHERE account_id = $1 AND status = 'pending' ORDER BY created_at`

	if err := a.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	items := make([]*domain.ApprovalQueueItem, len(rows))
	for i, row := range rows {
		items[i] = row.toEntity()
	}
	return items, nil
}

// Resolve applies the one-way pending → approved|rejected transition. The
// status guard in the WHERE clause makes double resolution a no-op error.
func (a *ApprovalAdapter) Resolve(ctx context.Context, id int64, status domain.ApprovalStatus) error {
	query := `
		UPDATE approval_queue
		SET status = $1, resolved_at = NOW()
		WHERE id = $2 AND status = 'pending'`

	result, err := a.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to resolve approval item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("approval item %d is not pending", id)
	}
	return nil
}

// EscalationAdapter implements out.EscalationRepository on PostgreSQL.
type EscalationAdapter struct {
	db *sqlx.DB
}

func NewEscalationAdapter(db *sqlx.DB) *EscalationAdapter {
	return &EscalationAdapter{db: db}
}

type escalationRow struct {
	ID         int64      `db:"id"`
	AccountID  uuid.UUID  `db:"account_id"`
	MessageID  int64      `db:"message_id"`
	Priority   string     `db:"priority"`
	Reason     string     `db:"reason"`
	Status     string     `db:"status"`
	ResolvedAt *time.Time `db:"resolved_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

func (r *escalationRow) toEntity() *domain.EscalationQueueItem {
	return &domain.EscalationQueueItem{
		ID:         r.ID,
		AccountID:  r.AccountID,
		MessageID:  r.MessageID,
		Priority:   domain.Priority(r.Priority),
		Reason:     r.Reason,
		Status:     domain.EscalationStatus(r.Status),
		ResolvedAt: r.ResolvedAt,
		CreatedAt:  r.CreatedAt,
	}
}

func (a *EscalationAdapter) Create(ctx context.Context, item *domain.EscalationQueueItem) (*domain.EscalationQueueItem, error) {
	var row escalationRow
	query := `
		INSERT INTO escalation_queue (account_id, message_id, priority, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	err := a.db.GetContext(ctx, &row, query,
		item.AccountID, item.MessageID, string(item.Priority), item.Reason, string(domain.EscalationPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation item: %w", err)
	}
	return row.toEntity(), nil
}

func (a *EscalationAdapter) ListPending(ctx context.Context, accountID uuid.UUID) ([]*domain.EscalationQueueItem, error) {
	var rows []escalationRow
	query := `SELECT * FROM escalation_queue WHERE account_id = $1 AND status = 'pending' ORDER BY created_at`

	if err := a.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list pending escalations: %w", err)
	}

	items := make([]*domain.EscalationQueueItem, len(rows))
	for i, row := range rows {
		items[i] = row.toEntity()
	}
	return items, nil
}

func (a *EscalationAdapter) MarkResolved(ctx context.Context, id int64) error {
	query := `
		UPDATE escalation_queue
		SET status = 'resolved', resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	if _, err := a.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to resolve escalation item: %w", err)
	}
	return nil
}
