// Package classify maps message text to a support intent, grounding the
// decision in retrieved knowledge when any is available.
package classify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/agent/rag"
	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// Degraded fallback values when the classification oracle fails. The pipeline
// never halts on classifier failure; low confidence routes the message to a
// human instead.
const (
	fallbackConfidence = 30
	fallbackReasoning  = "classification oracle unavailable; defaulted to general"
)

// Classifier produces the ClassificationResult for a message.
type Classifier struct {
	oracle    out.ClassificationOracle
	grounding *rag.Engine // nil disables grounding
	timeout   time.Duration
	log       zerolog.Logger
}

func NewClassifier(oracle out.ClassificationOracle, grounding *rag.Engine, timeout time.Duration, log zerolog.Logger) *Classifier {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Classifier{
		oracle:    oracle,
		grounding: grounding,
		timeout:   timeout,
		log:       log.With().Str("component", "classifier").Logger(),
	}
}

// Classify grounds the category decision in retrieved content when possible,
// falling back to ungrounded reasoning, and to a degraded general result when
// the oracle itself fails. Output shape is identical on every path.
func (c *Classifier) Classify(ctx context.Context, msg *domain.Message, accountID uuid.UUID, tier domain.GroundingTier) *domain.ClassificationResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var excerpts []string
	grounded := false

	if c.grounding != nil {
		result, err := c.grounding.Retrieve(ctx, accountID, msg.Subject+"\n"+msg.Body, tier)
		if err != nil {
			c.log.Warn().Err(err).Str("external_id", msg.ExternalID).
				Msg("grounding unavailable, classifying ungrounded")
		} else if result.HasGroundedKnowledge {
			excerpts = result.Excerpts()
			grounded = true
		}
	}

	resp, err := c.oracle.Classify(ctx, &out.ClassifyRequest{
		Subject: msg.Subject,
		Body:    msg.Body,
		From:    msg.FromEmail,
		Context: excerpts,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("external_id", msg.ExternalID).
			Msg("classification oracle failed, using degraded fallback")
		return &domain.ClassificationResult{
			Category:   domain.CategoryGeneral,
			Confidence: fallbackConfidence,
			Priority:   domain.PriorityMedium,
			Reasoning:  fallbackReasoning,
			Degraded:   true,
		}
	}

	return &domain.ClassificationResult{
		Category:   domain.ParseIntentCategory(resp.Category),
		Confidence: clamp(resp.Confidence, 0, 100),
		Priority:   parsePriority(resp.Priority),
		Reasoning:  resp.Reasoning,
		Grounded:   grounded,
	}
}

func parsePriority(s string) domain.Priority {
	switch domain.Priority(s) {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUrgent:
		return domain.Priority(s)
	default:
		return domain.PriorityMedium
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
