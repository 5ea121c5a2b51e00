package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// GeneralHandler drafts replies for categories with no side effects:
// return-request, subscription changes, payment issues, product questions and
// general inquiries. The matched rule's guidance shapes the reply.
type GeneralHandler struct {
	drafter ReplyDrafter
	log     zerolog.Logger
}

func NewGeneralHandler(drafter ReplyDrafter, log zerolog.Logger) *GeneralHandler {
	return &GeneralHandler{drafter: drafter, log: log}
}

func (h *GeneralHandler) Handle(ctx context.Context, req *Request) (*Proposal, error) {
	guidance := ""
	if req.Rule != nil {
		guidance = req.Rule.ReplyPrompt
	}

	reply, err := h.drafter.DraftReply(ctx, req.Message.Subject, req.Message.Body, guidance, nil)
	if err != nil {
		return nil, fmt.Errorf("reply draft failed: %w", err)
	}

	return &Proposal{ReplyText: reply, Confidence: 72}, nil
}
