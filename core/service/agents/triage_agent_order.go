package agents

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"triage_server/core/port/out"
)

// orderIDPattern matches order references like "#12345" or "order 12345".
var orderIDPattern = regexp.MustCompile(`(?i)(?:order\s*|#)\s*([A-Z0-9][A-Z0-9-]{2,})`)

// ExtractOrderID pulls the first order reference out of message text.
func ExtractOrderID(text string) string {
	m := orderIDPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// OrderStatusHandler answers where-is-my-order questions with live tracking
// data from the commerce collaborator. Tracking details are surfaced
// verbatim, never as placeholders.
type OrderStatusHandler struct {
	drafter  ReplyDrafter
	commerce out.CommerceLookup
	log      zerolog.Logger
}

func NewOrderStatusHandler(drafter ReplyDrafter, commerce out.CommerceLookup, log zerolog.Logger) *OrderStatusHandler {
	return &OrderStatusHandler{drafter: drafter, commerce: commerce, log: log}
}

func (h *OrderStatusHandler) Handle(ctx context.Context, req *Request) (*Proposal, error) {
	orderID := ExtractOrderID(req.Message.Subject + " " + req.Message.Body)
	if orderID == "" {
		return nil, fmt.Errorf("no order reference found in message")
	}

	order, err := h.commerce.LookupOrder(ctx, req.Message.AccountID, orderID)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}

	facts := []string{
		fmt.Sprintf("Order %s status: %s", order.OrderID, order.Status),
	}
	if order.TrackingNumber != "" {
		facts = append(facts, fmt.Sprintf("Tracking number: %s (%s)", order.TrackingNumber, order.Carrier))
	}
	if order.TrackingURL != "" {
		facts = append(facts, "Tracking link: "+order.TrackingURL)
	}
	if order.EstimatedAt != nil {
		facts = append(facts, "Estimated delivery: "+order.EstimatedAt.Format("January 2, 2006"))
	}

	guidance := ""
	if req.Rule != nil {
		guidance = req.Rule.ReplyPrompt
	}

	reply, err := h.drafter.DraftReply(ctx, req.Message.Subject, req.Message.Body, guidance, facts)
	if err != nil {
		return nil, fmt.Errorf("reply draft failed: %w", err)
	}

	return &Proposal{ReplyText: reply, Confidence: 85}, nil
}
