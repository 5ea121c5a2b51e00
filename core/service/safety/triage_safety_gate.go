// Package safety validates proposed replies before any customer-facing send.
package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// Validator layers, recorded verbatim when a check rejects.
const (
	LayerRecipient  = "recipient"
	LayerModeration = "moderation"
	LayerBrandVoice = "brand_voice"
	LayerSentiment  = "outgoing_sentiment"
)

// Outgoing replies whose own negative sentiment scores this high are blocked;
// the drafter produced something a customer should never receive.
const outgoingNegativeLimit = 60

// blockedRecipientPatterns match test, demo and unattended addresses that
// must never receive automated replies.
var blockedRecipientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(test|demo|sample)[0-9._+-]*@`),
	regexp.MustCompile(`(?i)^(no-?reply|donotreply|do-not-reply)@`),
	regexp.MustCompile(`(?i)@(example\.(com|org|net)|test\.com|mailinator\.com|localhost)$`),
}

// Verdict is the gate's decision for one proposed reply.
type Verdict struct {
	Approved    bool
	FailedLayer string // empty when approved
	Reason      string
}

// Gate runs the recipient check and the three-layer content validator.
type Gate struct {
	moderation out.ModerationOracle
	brandVoice out.BrandVoiceOracle
	sentiment  out.SentimentOracle
	timeout    time.Duration
	log        zerolog.Logger
}

func NewGate(moderation out.ModerationOracle, brandVoice out.BrandVoiceOracle, sentiment out.SentimentOracle, timeout time.Duration, log zerolog.Logger) *Gate {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gate{
		moderation: moderation,
		brandVoice: brandVoice,
		sentiment:  sentiment,
		timeout:    timeout,
		log:        log.With().Str("component", "safety_gate").Logger(),
	}
}

// Validate checks the recipient, then content moderation, brand voice, and a
// sentiment re-check of the outgoing text. The first failing layer decides
// the verdict. A rejected reply is never retried automatically.
func (g *Gate) Validate(ctx context.Context, recipient, replyText string, settings *domain.AccountSettings) *Verdict {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if reason := checkRecipient(recipient); reason != "" {
		return g.reject(LayerRecipient, reason)
	}

	modResult, err := g.moderation.Validate(ctx, replyText, settings.AccountID)
	if err != nil {
		// A validator that cannot run is a failed check, not a pass.
		return g.reject(LayerModeration, fmt.Sprintf("moderation check unavailable: %v", err))
	}
	if !modResult.Approved {
		return g.reject(LayerModeration, modResult.Reason)
	}

	voiceResult, err := g.brandVoice.CheckVoice(ctx, replyText, settings.BrandVoice)
	if err != nil {
		return g.reject(LayerBrandVoice, fmt.Sprintf("brand voice check unavailable: %v", err))
	}
	if !voiceResult.Approved {
		return g.reject(LayerBrandVoice, voiceResult.Reason)
	}

	assessment, err := g.sentiment.Analyze(ctx, replyText)
	if err != nil {
		return g.reject(LayerSentiment, fmt.Sprintf("outgoing sentiment check unavailable: %v", err))
	}
	if assessment.Negative() > outgoingNegativeLimit {
		return g.reject(LayerSentiment, fmt.Sprintf("outgoing text scored negative=%d", assessment.Negative()))
	}

	return &Verdict{Approved: true}
}

func (g *Gate) reject(layer, reason string) *Verdict {
	g.log.Info().Str("layer", layer).Str("reason", reason).Msg("proposed reply blocked")
	return &Verdict{FailedLayer: layer, Reason: reason}
}

func checkRecipient(recipient string) string {
	addr := strings.TrimSpace(strings.ToLower(recipient))
	if addr == "" {
		return "empty recipient address"
	}
	for _, pattern := range blockedRecipientPatterns {
		if pattern.MatchString(addr) {
			return "recipient matches blocked pattern " + pattern.String()
		}
	}
	return ""
}
