package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
)

// SentimentOracle implements out.SentimentOracle on top of the LLM client.
type SentimentOracle struct {
	client *Client
}

func NewSentimentOracle(client *Client) *SentimentOracle {
	return &SentimentOracle{client: client}
}

const sentimentSystemPrompt = `You are a sentiment analyzer for customer support email. Score the emotional polarity of the message and respond with JSON only.

Scores are integers 0-100 per polarity; they need not sum to 100. Confidence is your certainty in the label, 0-100.

Respond with this exact JSON format:
{
  "label": "positive|neutral|negative",
  "scores": {"positive": 0-100, "neutral": 0-100, "negative": 0-100},
  "confidence": 0-100
}`

type sentimentResponse struct {
	Label  string         `json:"label"`
	Scores map[string]int `json:"scores"`
	Conf   int            `json:"confidence"`
}

// Analyze scores the text's emotional polarity.
func (o *SentimentOracle) Analyze(ctx context.Context, text string) (*domain.SentimentAssessment, error) {
	resp, err := o.client.CompleteJSON(ctx, sentimentSystemPrompt, truncateBody(text, 2000))
	if err != nil {
		return nil, err
	}

	var parsed sentimentResponse
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse sentiment response: %w", err)
	}

	scores := make(map[domain.SentimentLabel]int, len(parsed.Scores))
	for k, v := range parsed.Scores {
		scores[domain.SentimentLabel(k)] = clampScore(v)
	}

	label := domain.SentimentLabel(parsed.Label)
	switch label {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
	default:
		label = domain.SentimentNeutral
	}

	return &domain.SentimentAssessment{
		Label:      label,
		Scores:     scores,
		Confidence: clampScore(parsed.Conf),
	}, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
