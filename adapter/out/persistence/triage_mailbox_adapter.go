package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

// MailboxAdapter resolves the connected mailbox for an account: its OAuth
// token and sender address. Implements provider.TokenSource and
// provider.SenderResolver.
type MailboxAdapter struct {
	db *sqlx.DB
}

func NewMailboxAdapter(db *sqlx.DB) *MailboxAdapter {
	return &MailboxAdapter{db: db}
}

type mailboxRow struct {
	AccountID    uuid.UUID `db:"account_id"`
	SenderEmail  string    `db:"sender_email"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	TokenExpiry  time.Time `db:"token_expiry"`
}

func (a *MailboxAdapter) TokenFor(ctx context.Context, accountID uuid.UUID) (*oauth2.Token, error) {
	row, err := a.get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Expiry:       row.TokenExpiry,
		TokenType:    "Bearer",
	}, nil
}

func (a *MailboxAdapter) SenderFor(ctx context.Context, accountID uuid.UUID) (string, error) {
	row, err := a.get(ctx, accountID)
	if err != nil {
		return "", err
	}
	return row.SenderEmail, nil
}

func (a *MailboxAdapter) get(ctx context.Context, accountID uuid.UUID) (*mailboxRow, error) {
	var row mailboxRow
	query := `SELECT account_id, sender_email, access_token, refresh_token, token_expiry
		FROM mailbox_connections WHERE account_id = $1`

	if err := a.db.GetContext(ctx, &row, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to get mailbox connection: %w", err)
	}
	return &row, nil
}
