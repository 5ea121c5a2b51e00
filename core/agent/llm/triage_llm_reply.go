package llm

import (
	"context"
	"fmt"
	"strings"
)

// DraftReply generates a customer-facing reply constrained to the supplied
// facts. Handlers pass live data (tracking, refund amounts) as facts; the
// drafter must surface them verbatim and never invent substitutes.
func (c *Client) DraftReply(ctx context.Context, subject, body, guidance string, facts []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer email:\nSubject: %s\n\n%s\n", subject, truncateBody(body, 2000))

	if guidance != "" {
		fmt.Fprintf(&sb, "\nReply guidance:\n%s\n", guidance)
	}

	if len(facts) > 0 {
		sb.WriteString("\nVerified facts (quote these exactly, do not alter numbers or identifiers):\n")
		for _, f := range facts {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}

	systemPrompt := `You draft replies for a merchant's customer-support mailbox. Write a concise, courteous reply to the customer email below. Use only the verified facts provided; if a detail is not in the facts, do not claim it. Output the reply body only, no subject line or signature.`

	return c.CompleteWithSystem(ctx, systemPrompt, sb.String())
}
