package agents

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/port/out"
)

// SagaKind selects which fulfillment operation the saga performs after the
// shipment hold.
type SagaKind int

const (
	SagaCancelOrder SagaKind = iota
	SagaUpdateAddress
)

var addressPattern = regexp.MustCompile(`(?im)^\s*(?:new address|ship to|address)\s*[:\-]\s*(.+)$`)

// OrderSagaHandler handles order-cancellation and address-change requests.
// Both mutate fulfillment state, so they run as a saga against the warehouse
// collaborator: hold the shipment, apply the change, release the hold as
// compensation when the change fails.
type OrderSagaHandler struct {
	drafter     ReplyDrafter
	commerce    out.CommerceLookup
	fulfillment out.FulfillmentService
	kind        SagaKind
	log         zerolog.Logger
}

func NewOrderSagaHandler(drafter ReplyDrafter, commerce out.CommerceLookup, fulfillment out.FulfillmentService, kind SagaKind, log zerolog.Logger) *OrderSagaHandler {
	return &OrderSagaHandler{
		drafter:     drafter,
		commerce:    commerce,
		fulfillment: fulfillment,
		kind:        kind,
		log:         log,
	}
}

func (h *OrderSagaHandler) Handle(ctx context.Context, req *Request) (*Proposal, error) {
	orderID := ExtractOrderID(req.Message.Subject + " " + req.Message.Body)
	if orderID == "" {
		return nil, fmt.Errorf("no order reference found in message")
	}

	accountID := req.Message.AccountID

	order, err := h.commerce.LookupOrder(ctx, accountID, orderID)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}

	var facts []string

	switch h.kind {
	case SagaCancelOrder:
		if err := h.runSaga(ctx, accountID, orderID, func() error {
			return h.fulfillment.CancelOrder(ctx, accountID, orderID)
		}); err != nil {
			return nil, err
		}
		facts = []string{fmt.Sprintf("Order %s has been cancelled; it was in status %q", order.OrderID, order.Status)}

	case SagaUpdateAddress:
		address := extractAddress(req.Message.Body)
		if address == "" {
			return nil, fmt.Errorf("no new address found in message")
		}
		if err := h.runSaga(ctx, accountID, orderID, func() error {
			return h.fulfillment.UpdateAddress(ctx, accountID, orderID, address)
		}); err != nil {
			return nil, err
		}
		facts = []string{fmt.Sprintf("Shipping address for order %s updated to: %s", order.OrderID, address)}
	}

	guidance := ""
	if req.Rule != nil {
		guidance = req.Rule.ReplyPrompt
	}

	reply, err := h.drafter.DraftReply(ctx, req.Message.Subject, req.Message.Body, guidance, facts)
	if err != nil {
		return nil, fmt.Errorf("reply draft failed: %w", err)
	}

	return &Proposal{ReplyText: reply, Confidence: 78}, nil
}

// runSaga holds the shipment, applies the mutation, and releases the hold as
// compensation when the mutation fails.
func (h *OrderSagaHandler) runSaga(ctx context.Context, accountID uuid.UUID, orderID string, apply func() error) error {
	if err := h.fulfillment.HoldShipment(ctx, accountID, orderID); err != nil {
		return fmt.Errorf("shipment hold failed: %w", err)
	}

	if err := apply(); err != nil {
		if relErr := h.fulfillment.ReleaseShipment(ctx, accountID, orderID); relErr != nil {
			h.log.Error().Err(relErr).Str("order_id", orderID).
				Msg("saga compensation failed, shipment left on hold")
		}
		return fmt.Errorf("fulfillment update failed: %w", err)
	}

	return nil
}

func extractAddress(body string) string {
	m := addressPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
