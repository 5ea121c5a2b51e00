// Package agents implements the intent-specific reply handlers. A static
// registry maps every category to exactly one handler, built at startup and
// injected into the pipeline.
package agents

import (
	"context"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// ReplyDrafter turns message context and verified facts into reply text.
// Satisfied by llm.Client.
type ReplyDrafter interface {
	DraftReply(ctx context.Context, subject, body, guidance string, facts []string) (string, error)
}

// Confidence bounds for any proposed reply.
const (
	MinReplyConfidence = 10
	MaxReplyConfidence = 95

	// FallbackConfidence is fixed for the conservative reply used when a
	// handler fails.
	FallbackConfidence = 15

	fallbackReply = "Thank you for reaching out. Your request needs a closer look from our team; a support agent will follow up with you shortly."
)

// Request carries everything a handler needs to propose a reply.
type Request struct {
	Message   *domain.Message
	Rule      *domain.AutomationRule
	Settings  *domain.AccountSettings
	Sentiment *domain.SentimentAssessment // nil when the oracle was unavailable
}

// Proposal is a handler's proposed reply with its confidence after sentiment
// adjustment.
type Proposal struct {
	ReplyText  string
	Confidence int
	Fallback   bool // conservative fallback after handler failure
}

// Handler produces a proposed reply for one intent category.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Proposal, error)
}

// Registry resolves handlers per category. Construction is static: every
// valid category gets a handler once, at startup.
type Registry struct {
	handlers map[domain.IntentCategory]Handler
	log      zerolog.Logger
}

// RegistryDeps holds the collaborators the handlers need.
type RegistryDeps struct {
	LLM         ReplyDrafter
	Commerce    out.CommerceLookup
	Fulfillment out.FulfillmentService
}

// NewRegistry builds the category → handler map.
func NewRegistry(deps *RegistryDeps, log zerolog.Logger) *Registry {
	log = log.With().Str("component", "agent_registry").Logger()

	orderStatus := NewOrderStatusHandler(deps.LLM, deps.Commerce, log)
	refund := NewPromoRefundHandler(deps.LLM, deps.Commerce, log)
	cancel := NewOrderSagaHandler(deps.LLM, deps.Commerce, deps.Fulfillment, SagaCancelOrder, log)
	address := NewOrderSagaHandler(deps.LLM, deps.Commerce, deps.Fulfillment, SagaUpdateAddress, log)
	general := NewGeneralHandler(deps.LLM, log)

	return &Registry{
		log: log,
		handlers: map[domain.IntentCategory]Handler{
			domain.CategoryOrderStatus:        orderStatus,
			domain.CategoryPromoRefund:        refund,
			domain.CategoryOrderCancellation:  cancel,
			domain.CategoryAddressChange:      address,
			domain.CategoryReturnRequest:      general,
			domain.CategorySubscriptionChange: general,
			domain.CategorySubscriptionCancel: general,
			domain.CategoryPaymentIssue:       general,
			domain.CategoryProductQuestion:    general,
			domain.CategoryGeneral:            general,
			// escalation never dispatches; the router catches it first.
		},
	}
}

// Dispatch runs the category's handler, applies the sentiment confidence
// adjustment, and falls back to a conservative low-confidence reply when the
// handler fails. A handler failure never aborts the pipeline.
func (r *Registry) Dispatch(ctx context.Context, category domain.IntentCategory, req *Request) *Proposal {
	handler, ok := r.handlers[category]
	if !ok {
		r.log.Warn().Str("category", string(category)).
			Msg("no handler registered, using fallback reply")
		return &Proposal{ReplyText: fallbackReply, Confidence: FallbackConfidence, Fallback: true}
	}

	proposal, err := handler.Handle(ctx, req)
	if err != nil {
		r.log.Warn().Err(err).Str("category", string(category)).
			Msg("handler failed, using fallback reply")
		return &Proposal{ReplyText: fallbackReply, Confidence: FallbackConfidence, Fallback: true}
	}

	proposal.Confidence = AdjustConfidence(proposal.Confidence, req.Sentiment)
	return proposal
}

// AdjustConfidence shifts a handler's confidence by sentiment evidence and
// clamps to the allowed range.
func AdjustConfidence(confidence int, s *domain.SentimentAssessment) int {
	if s != nil {
		switch {
		case s.Label == domain.SentimentNegative && s.Negative() > 75 && s.Confidence > 90:
			confidence -= 25
		case s.Label == domain.SentimentNegative && s.Negative() > 60 && s.Confidence > 80:
			confidence -= 15
		case s.Label == domain.SentimentNegative && s.Negative() > 45 && s.Confidence > 70:
			confidence -= 8
		case s.Label == domain.SentimentPositive && s.Confidence > 80:
			confidence += 5
		}
	}

	if confidence < MinReplyConfidence {
		return MinReplyConfidence
	}
	if confidence > MaxReplyConfidence {
		return MaxReplyConfidence
	}
	return confidence
}
