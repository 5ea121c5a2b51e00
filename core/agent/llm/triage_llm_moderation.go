package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"triage_server/core/port/out"
)

// ModerationAdapter implements out.ModerationOracle using the provider's
// moderation endpoint.
type ModerationAdapter struct {
	client *Client
}

func NewModerationAdapter(client *Client) *ModerationAdapter {
	return &ModerationAdapter{client: client}
}

func (m *ModerationAdapter) Validate(ctx context.Context, text string, accountID uuid.UUID) (*out.ModerationResult, error) {
	flagged, categories, err := m.client.Moderate(ctx, text)
	if err != nil {
		return nil, err
	}

	if flagged {
		return &out.ModerationResult{
			Approved: false,
			Reason:   "content flagged: " + strings.Join(categories, ", "),
		}, nil
	}

	return &out.ModerationResult{Approved: true}, nil
}

// BrandVoiceAdapter implements out.BrandVoiceOracle as an LLM judge against
// the account's configured guidelines.
type BrandVoiceAdapter struct {
	client *Client
}

func NewBrandVoiceAdapter(client *Client) *BrandVoiceAdapter {
	return &BrandVoiceAdapter{client: client}
}

const brandVoiceSystemPrompt = `You review outgoing customer-support replies for brand-voice consistency. Given guidelines and a draft reply, decide if the reply conforms. Respond with JSON only:
{
  "consistent": true|false,
  "reason": "short explanation when inconsistent, empty otherwise"
}`

func (b *BrandVoiceAdapter) CheckVoice(ctx context.Context, text, guidelines string) (*out.ModerationResult, error) {
	if strings.TrimSpace(guidelines) == "" {
		// No guidelines configured; nothing to check against.
		return &out.ModerationResult{Approved: true}, nil
	}

	userPrompt := fmt.Sprintf("Guidelines:\n%s\n\nDraft reply:\n%s", guidelines, truncateBody(text, 2000))

	resp, err := b.client.CompleteJSON(ctx, brandVoiceSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Consistent bool   `json:"consistent"`
		Reason     string `json:"reason"`
	}
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse brand voice response: %w", err)
	}

	return &out.ModerationResult{
		Approved: parsed.Consistent,
		Reason:   parsed.Reason,
	}, nil
}
