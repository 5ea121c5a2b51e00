package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"triage_server/core/port/out"
)

// PromoRefundHandler computes a concrete refund amount from rule parameters:
// a percentage of the order total with an optional cap, or a fixed amount.
type PromoRefundHandler struct {
	drafter  ReplyDrafter
	commerce out.CommerceLookup
	log      zerolog.Logger
}

func NewPromoRefundHandler(drafter ReplyDrafter, commerce out.CommerceLookup, log zerolog.Logger) *PromoRefundHandler {
	return &PromoRefundHandler{drafter: drafter, commerce: commerce, log: log}
}

func (h *PromoRefundHandler) Handle(ctx context.Context, req *Request) (*Proposal, error) {
	if req.Rule == nil {
		return nil, fmt.Errorf("promo refund requires a matched rule")
	}

	var facts []string
	currency := "USD"

	amount := req.Rule.RefundFixed
	if amount == 0 && req.Rule.RefundPercent > 0 {
		orderID := ExtractOrderID(req.Message.Subject + " " + req.Message.Body)
		if orderID == "" {
			return nil, fmt.Errorf("percentage refund requires an order reference")
		}
		order, err := h.commerce.LookupOrder(ctx, req.Message.AccountID, orderID)
		if err != nil {
			return nil, fmt.Errorf("order lookup failed: %w", err)
		}
		if order.Currency != "" {
			currency = order.Currency
		}

		amount = order.Total * req.Rule.RefundPercent / 100
		if req.Rule.RefundCap > 0 && amount > req.Rule.RefundCap {
			amount = req.Rule.RefundCap
		}
		facts = append(facts, fmt.Sprintf("Order %s total: %.2f %s", order.OrderID, order.Total, currency))
	}

	if amount <= 0 {
		return nil, fmt.Errorf("rule %q resolves to no refund amount", req.Rule.Name)
	}

	facts = append(facts, fmt.Sprintf("Approved refund amount: %.2f %s", amount, currency))

	reply, err := h.drafter.DraftReply(ctx, req.Message.Subject, req.Message.Body, req.Rule.ReplyPrompt, facts)
	if err != nil {
		return nil, fmt.Errorf("reply draft failed: %w", err)
	}

	return &Proposal{ReplyText: reply, Confidence: 80}, nil
}
