// Package sentiment evaluates emotional risk with contextual threshold
// adjustment and decides whether a message must escalate on sentiment alone.
package sentiment

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// Threshold model. The nominal high-risk threshold relaxes for recognized
// high-value customers, long threads and billing topics; adjustments are
// additive and the effective threshold never drops below the floor.
const (
	NominalThreshold = 75
	ThresholdFloor   = 30

	highValueRelax  = 15
	longThreadRelax = 10
	billingRelax    = 10

	longThreadMessages = 3
)

var billingKeywords = []string{
	"charge", "charged", "billing", "invoice", "refund", "payment",
	"subscription fee", "overcharge", "double charged",
}

// Urgency keywords force priority to urgent regardless of sentiment scores.
var urgencyKeywords = []string{
	"emergency", "lawsuit", "lawyer", "attorney", "legal action",
	"chargeback", "fraud", "sue you", "better business bureau",
}

// Context carries the per-message signals that relax the risk threshold.
type Context struct {
	HighValueCustomer bool
	ThreadMessages    int
}

// RiskAssessment is the evaluator's verdict for one message.
type RiskAssessment struct {
	Assessment         *domain.SentimentAssessment
	EffectiveThreshold int
	Escalate           bool
	Priority           domain.Priority // set when Escalate or urgency keywords hit
	ForcedUrgent       bool            // urgency keyword match
	Unavailable        bool            // oracle failure; sentiment escalation skipped
	Reason             string
}

// Evaluator scores emotional risk for inbound messages.
type Evaluator struct {
	oracle  out.SentimentOracle
	timeout time.Duration
	log     zerolog.Logger
}

func NewEvaluator(oracle out.SentimentOracle, timeout time.Duration, log zerolog.Logger) *Evaluator {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Evaluator{
		oracle:  oracle,
		timeout: timeout,
		log:     log.With().Str("component", "sentiment").Logger(),
	}
}

// Evaluate analyzes the body and applies the escalation rules:
//   - negative > effective threshold AND confidence > 90 → escalate urgent
//   - negative > 85 AND confidence > 80 → escalate high
//
// Urgency keywords force priority to urgent independent of scores. On oracle
// failure sentiment escalation is skipped and the pipeline proceeds on
// classifier output alone.
func (e *Evaluator) Evaluate(ctx context.Context, body string, sctx Context) *RiskAssessment {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	forcedUrgent := containsAny(body, urgencyKeywords)
	threshold := e.effectiveThreshold(body, sctx)

	assessment, err := e.oracle.Analyze(ctx, body)
	if err != nil {
		e.log.Warn().Err(err).Msg("sentiment oracle failed, skipping sentiment escalation")
		result := &RiskAssessment{
			EffectiveThreshold: threshold,
			Unavailable:        true,
			ForcedUrgent:       forcedUrgent,
		}
		if forcedUrgent {
			result.Priority = domain.PriorityUrgent
		}
		return result
	}

	result := &RiskAssessment{
		Assessment:         assessment,
		EffectiveThreshold: threshold,
		ForcedUrgent:       forcedUrgent,
	}

	negative := assessment.Negative()
	confidence := assessment.Confidence

	switch {
	case negative > threshold && confidence > 90:
		result.Escalate = true
		result.Priority = domain.PriorityUrgent
		result.Reason = "negative sentiment above risk threshold with very high confidence"
	case negative > 85 && confidence > 80:
		result.Escalate = true
		result.Priority = domain.PriorityHigh
		result.Reason = "strongly negative sentiment with high confidence"
	}

	if forcedUrgent {
		result.Priority = domain.PriorityUrgent
	}

	return result
}

// effectiveThreshold applies the additive contextual relaxations, clamped to
// the floor.
func (e *Evaluator) effectiveThreshold(body string, sctx Context) int {
	threshold := NominalThreshold

	if sctx.HighValueCustomer {
		threshold -= highValueRelax
	}
	if sctx.ThreadMessages > longThreadMessages {
		threshold -= longThreadRelax
	}
	if containsAny(body, billingKeywords) {
		threshold -= billingRelax
	}

	if threshold < ThresholdFloor {
		threshold = ThresholdFloor
	}
	return threshold
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
