package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RuleAdapter implements out.RuleRepository on PostgreSQL.
type RuleAdapter struct {
	db *sqlx.DB
}

func NewRuleAdapter(db *sqlx.DB) *RuleAdapter {
	return &RuleAdapter{db: db}
}

type ruleRow struct {
	ID            int64     `db:"id"`
	AccountID     uuid.UUID `db:"account_id"`
	Name          string    `db:"name"`
	Category      string    `db:"category"`
	Generic       bool      `db:"generic"`
	Active        bool      `db:"active"`
	ReplyPrompt   string    `db:"reply_prompt"`
	RefundPercent float64   `db:"refund_percent"`
	RefundCap     float64   `db:"refund_cap"`
	RefundFixed   float64   `db:"refund_fixed"`
	Position      int       `db:"position"`
	HitCount      int       `db:"hit_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *ruleRow) toEntity() *domain.AutomationRule {
	return &domain.AutomationRule{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Name:          r.Name,
		Category:      domain.IntentCategory(r.Category),
		Generic:       r.Generic,
		Active:        r.Active,
		ReplyPrompt:   r.ReplyPrompt,
		RefundPercent: r.RefundPercent,
		RefundCap:     r.RefundCap,
		RefundFixed:   r.RefundFixed,
		Position:      r.Position,
		HitCount:      r.HitCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (a *RuleAdapter) ListActive(ctx context.Context, accountID uuid.UUID) ([]*domain.AutomationRule, error) {
	var rows []ruleRow
	query := `SELECT * FROM automation_rules WHERE account_id = $1 AND active = true ORDER BY position`

	if err := a.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}

	rules := make([]*domain.AutomationRule, len(rows))
	for i, row := range rows {
		rules[i] = row.toEntity()
	}
	return rules, nil
}

func (a *RuleAdapter) GetByID(ctx context.Context, id int64) (*domain.AutomationRule, error) {
	var row ruleRow
	query := `SELECT * FROM automation_rules WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return row.toEntity(), nil
}

func (a *RuleAdapter) IncrementHitCount(ctx context.Context, id int64) error {
	query := `UPDATE automation_rules SET hit_count = hit_count + 1, updated_at = NOW() WHERE id = $1`

	if _, err := a.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment rule hit count: %w", err)
	}
	return nil
}

// SettingsAdapter implements out.SettingsRepository on PostgreSQL.
type SettingsAdapter struct {
	db *sqlx.DB
}

func NewSettingsAdapter(db *sqlx.DB) *SettingsAdapter {
	return &SettingsAdapter{db: db}
}

type settingsRow struct {
	AccountID        uuid.UUID      `db:"account_id"`
	RequireApproval  bool           `db:"require_approval"`
	BrandVoice       string         `db:"brand_voice"`
	GroundingTier    string         `db:"grounding_tier"`
	HighValueSenders pq.StringArray `db:"high_value_senders"`
	SenderEmail      string         `db:"sender_email"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r *settingsRow) toEntity() *domain.AccountSettings {
	return &domain.AccountSettings{
		AccountID:        r.AccountID,
		RequireApproval:  r.RequireApproval,
		BrandVoice:       r.BrandVoice,
		GroundingTier:    domain.GroundingTier(r.GroundingTier),
		HighValueSenders: []string(r.HighValueSenders),
		SenderEmail:      r.SenderEmail,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Get returns the account settings, or safe defaults when no row exists.
func (a *SettingsAdapter) Get(ctx context.Context, accountID uuid.UUID) (*domain.AccountSettings, error) {
	var row settingsRow
	query := `SELECT * FROM account_settings WHERE account_id = $1`

	if err := a.db.GetContext(ctx, &row, query, accountID); err != nil {
		if err == sql.ErrNoRows {
			return domain.DefaultAccountSettings(accountID), nil
		}
		return nil, fmt.Errorf("failed to get account settings: %w", err)
	}
	return row.toEntity(), nil
}
