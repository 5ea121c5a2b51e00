// Package routing combines classifier output and sentiment risk into one of
// three dispositions: automate, approve, or escalate.
package routing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/sentiment"
)

// Confidence gates. Below MinConfidence the message always escalates; between
// MinConfidence and GenericFallbackBelow a generic rule may still catch it.
const (
	MinConfidence        = 60
	GenericFallbackBelow = 70
)

// Router is the deterministic routing decision engine. Given the same inputs
// it always produces the same decision.
type Router struct {
	ruleRepo out.RuleRepository
	log      zerolog.Logger
}

func NewRouter(ruleRepo out.RuleRepository, log zerolog.Logger) *Router {
	return &Router{
		ruleRepo: ruleRepo,
		log:      log.With().Str("component", "router").Logger(),
	}
}

// Decide applies the decision order:
//  1. sentiment-triggered escalation overrides everything
//  2. low classifier confidence or explicit escalation category escalates
//  3. exact active rule match; generic fallback when confidence < 70
//  4. no rule → escalate
//  5. rule + approval required → approve
//  6. otherwise → automate
func (r *Router) Decide(
	ctx context.Context,
	accountID uuid.UUID,
	classification *domain.ClassificationResult,
	risk *sentiment.RiskAssessment,
	settings *domain.AccountSettings,
) *domain.RoutingDecision {
	decision := r.decide(ctx, accountID, classification, risk, settings)

	// Hit counts are advisory; a failed bump never changes the decision.
	if decision.Rule != nil {
		if err := r.ruleRepo.IncrementHitCount(ctx, decision.Rule.ID); err != nil {
			r.log.Warn().Err(err).Int64("rule_id", decision.Rule.ID).
				Msg("rule hit count update failed")
		}
	}

	// Reason strings are logged verbatim for the audit trail.
	r.log.Info().
		Str("account_id", accountID.String()).
		Str("disposition", string(decision.Disposition)).
		Str("priority", string(decision.Priority)).
		Str("reason", decision.Reason).
		Msg("routing decision")

	return decision
}

func (r *Router) decide(
	ctx context.Context,
	accountID uuid.UUID,
	classification *domain.ClassificationResult,
	risk *sentiment.RiskAssessment,
	settings *domain.AccountSettings,
) *domain.RoutingDecision {
	// 1. Sentiment escalation overrides classifier confidence and category.
	if risk != nil && risk.Escalate {
		return &domain.RoutingDecision{
			Disposition: domain.DispositionEscalate,
			Priority:    risk.Priority,
			Reason: fmt.Sprintf("sentiment risk: %s (negative=%d confidence=%d threshold=%d)",
				risk.Reason, risk.Assessment.Negative(), risk.Assessment.Confidence, risk.EffectiveThreshold),
		}
	}

	priority := classification.Priority
	if risk != nil && risk.ForcedUrgent {
		priority = domain.PriorityUrgent
	}

	// 2. Low confidence or explicit escalation category.
	if classification.Confidence < MinConfidence {
		return &domain.RoutingDecision{
			Disposition: domain.DispositionEscalate,
			Priority:    priority,
			Reason:      "low confidence classification",
		}
	}
	if classification.Category == domain.CategoryEscalation {
		return &domain.RoutingDecision{
			Disposition: domain.DispositionEscalate,
			Priority:    priority,
			Reason:      "explicit escalation category",
		}
	}

	// 3. Rule resolution. Rules gate automation: the static category→handler
	// table never bypasses this.
	rule := r.resolveRule(ctx, accountID, classification)

	// 4. No rule resolves.
	if rule == nil {
		return &domain.RoutingDecision{
			Disposition: domain.DispositionEscalate,
			Priority:    priority,
			Reason:      "no matching rule",
		}
	}

	// 5. Approval gate. Default is approval required.
	if settings == nil || settings.RequireApproval {
		return &domain.RoutingDecision{
			Disposition: domain.DispositionApprove,
			Priority:    priority,
			Reason:      fmt.Sprintf("rule %q matched, approval required", rule.Name),
			Rule:        rule,
		}
	}

	// 6. Automate.
	return &domain.RoutingDecision{
		Disposition: domain.DispositionAutomate,
		Priority:    priority,
		Reason:      fmt.Sprintf("rule %q matched, automation allowed", rule.Name),
		Rule:        rule,
	}
}

// resolveRule finds an exact active category match, falling back to a generic
// rule only when confidence is below the generic-fallback gate. Rule listing
// failure resolves to no rule, which escalates.
func (r *Router) resolveRule(ctx context.Context, accountID uuid.UUID, classification *domain.ClassificationResult) *domain.AutomationRule {
	rules, err := r.ruleRepo.ListActive(ctx, accountID)
	if err != nil {
		r.log.Warn().Err(err).Str("account_id", accountID.String()).
			Msg("rule lookup failed, escalating")
		return nil
	}

	var generic *domain.AutomationRule
	for _, rule := range rules {
		if rule.Category == classification.Category && !rule.Generic {
			return rule
		}
		if rule.Generic && generic == nil {
			generic = rule
		}
	}

	if classification.Confidence < GenericFallbackBelow {
		return generic
	}
	return nil
}
