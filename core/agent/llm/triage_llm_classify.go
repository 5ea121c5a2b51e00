package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/port/out"
)

// ClassifierOracle implements out.ClassificationOracle on top of the LLM
// client.
type ClassifierOracle struct {
	client *Client
}

func NewClassifierOracle(client *Client) *ClassifierOracle {
	return &ClassifierOracle{client: client}
}

const classifySystemPrompt = `You are a support-email intent classifier for a merchant help desk. Analyze the email and respond with JSON only.

Categories (pick ONE):
- order-status: where-is-my-order, shipping and delivery questions
- promo-refund: discount or refund requests tied to promotions
- order-cancellation: requests to cancel an order
- return-request: returns and exchanges
- subscription-change: plan or frequency changes
- subscription-cancel: subscription cancellation requests
- payment-issue: failed charges, double charges, billing problems
- address-change: shipping address corrections
- product-question: pre-sale or usage questions about products
- escalation: explicit demand for a human, legal threats, complaints beyond the above
- general: anything that fits no other category

Confidence: integer 0-100, your certainty in the category.
Priority: one of low, medium, high, urgent.

When knowledge excerpts are provided, ground the category decision in them: prefer a category that the excerpts support and say so in the reasoning. Never state facts that contradict the excerpts.

Respond with this exact JSON format:
{
  "category": "category-name",
  "confidence": 0-100,
  "priority": "low|medium|high|urgent",
  "reasoning": "one or two sentences"
}`

// Classify sends the message to the LLM and parses the strict JSON verdict.
func (o *ClassifierOracle) Classify(ctx context.Context, req *out.ClassifyRequest) (*out.ClassifyResponse, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\nSubject: %s\n\nBody:\n%s", req.From, req.Subject, truncateBody(req.Body, 2000))

	if len(req.Context) > 0 {
		sb.WriteString("\n\nKnowledge excerpts:\n")
		for i, excerpt := range req.Context {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, truncateBody(excerpt, 600))
		}
	}

	resp, err := o.client.CompleteJSON(ctx, classifySystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	var result out.ClassifyResponse
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}

	return &result, nil
}

func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}
