// Package provider contains outbound adapters for external mail providers.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// TokenSource resolves the OAuth token for an account's connected mailbox.
type TokenSource interface {
	TokenFor(ctx context.Context, accountID uuid.UUID) (*oauth2.Token, error)
}

// SenderResolver returns the From address of the account's connected mailbox.
type SenderResolver interface {
	SenderFor(ctx context.Context, accountID uuid.UUID) (string, error)
}

// GmailDelivery sends approved replies through the Gmail API. Implements
// out.DeliveryChannel. Sends are attempted once; a failure surfaces to the
// pipeline, which escalates instead of retrying.
type GmailDelivery struct {
	config  *oauth2.Config
	tokens  TokenSource
	senders SenderResolver
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// GmailDeliveryConfig holds OAuth client settings.
type GmailDeliveryConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func NewGmailDelivery(cfg *GmailDeliveryConfig, tokens TokenSource, senders SenderResolver, log zerolog.Logger) *GmailDelivery {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	logger := log.With().Str("component", "gmail_delivery").Logger()
	cbSettings := gobreaker.Settings{
		Name:        "gmail-send",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &GmailDelivery{
		config:  config,
		tokens:  tokens,
		senders: senders,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		log:     logger,
	}
}

// Send delivers one reply from the account's connected mailbox.
func (d *GmailDelivery) Send(ctx context.Context, accountID uuid.UUID, to, subject, body string) error {
	token, err := d.tokens.TokenFor(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to resolve mailbox token: %w", err)
	}

	from, err := d.senders.SenderFor(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to resolve sender address: %w", err)
	}

	svc, err := d.service(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to build gmail service: %w", err)
	}

	raw := buildRawMessage(from, to, subject, body)
	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	_, err = d.cb.Execute(func() (interface{}, error) {
		return svc.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	})
	if err != nil {
		return d.wrapError(err)
	}

	d.log.Info().Str("account_id", accountID.String()).Str("to", to).Msg("reply delivered")
	return nil
}

func (d *GmailDelivery) service(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return gmail.NewService(ctx, option.WithTokenSource(
		d.config.TokenSource(ctx, token),
	))
}

func (d *GmailDelivery) wrapError(err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return fmt.Errorf("mailbox token expired: %w", err)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return fmt.Errorf("gmail rate limit exceeded: %w", err)
			}
			return fmt.Errorf("gmail access denied: %w", err)
		}
	}
	return fmt.Errorf("gmail send failed: %w", err)
}

func buildRawMessage(from, to, subject, body string) string {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return sb.String()
}
