// Package pipeline orchestrates the classification-and-routing flow: every
// inbound message reaches exactly one terminal outcome exactly once, across
// all ingestion paths.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/agents"
	"triage_server/core/service/classify"
	"triage_server/core/service/routing"
	"triage_server/core/service/safety"
	"triage_server/core/service/sentiment"
	"triage_server/core/service/threads"
	"triage_server/pkg/apperr"
)

// Outcome summarizes how the pipeline disposed of one inbound message.
type Outcome struct {
	Message     *domain.Message
	Disposition domain.Disposition
	Duplicate   bool
	ReplySent   bool
}

// Dispatcher produces a proposed reply for a category. Satisfied by
// agents.Registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, category domain.IntentCategory, req *agents.Request) *agents.Proposal
}

// Deps holds the pipeline's collaborators, injected at construction.
type Deps struct {
	Messages    out.MessageRepository
	Settings    out.SettingsRepository
	Approvals   out.ApprovalRepository
	Escalations out.EscalationRepository
	Activity    out.ActivityLogger
	Bodies      out.BodyArchive // optional
	Delivery    out.DeliveryChannel

	Linker     *threads.Linker
	Classifier *classify.Classifier
	Sentiment  *sentiment.Evaluator
	Router     *routing.Router
	Agents     Dispatcher
	Safety     *safety.Gate
}

// Pipeline processes inbound messages end to end.
type Pipeline struct {
	deps Deps
	log  zerolog.Logger

	// threadLocks serializes messages sharing a conversation key so
	// first-message logic sees arrival order. Best effort, in-process.
	// Entries are refcounted and evicted once the last holder releases.
	mu          sync.Mutex
	threadLocks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Deps, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		deps:        deps,
		log:         log.With().Str("component", "pipeline").Logger(),
		threadLocks: make(map[string]*threadLock),
	}
}

// Process ingests one message. Safe to call concurrently from every ingestion
// path; duplicates by external id are detected and skipped.
func (p *Pipeline) Process(ctx context.Context, incoming *domain.Message) (*Outcome, error) {
	unlock := p.lockThread(incoming)
	defer unlock()

	incoming.Status = domain.StatusReceived
	msg, created, err := p.deps.Messages.CreateIfAbsent(ctx, incoming)
	if err != nil {
		return nil, apperr.Database(err)
	}

	if !created {
		return p.resume(ctx, msg)
	}

	p.audit(ctx, msg, domain.ActionMessageReceived, domain.ActorSystem, "success", nil)
	p.archiveBody(ctx, msg)

	if err := p.deps.Messages.UpdateStatus(ctx, msg.ID, domain.StatusProcessing); err != nil {
		return nil, apperr.Database(err)
	}
	msg.Status = domain.StatusProcessing

	return p.run(ctx, msg)
}

// resume disposes of a resubmitted external id. A terminal row is a plain
// duplicate skip. A non-terminal row means an earlier attempt was interrupted
// and the message must still reach a terminal status: a row in received never
// got as far as dispatch, so the full flow is safe to rerun; a row in
// processing may already have had its reply delivered, so it is escalated
// instead of re-dispatched.
func (p *Pipeline) resume(ctx context.Context, msg *domain.Message) (*Outcome, error) {
	if msg.Status.IsTerminal() {
		p.log.Debug().Str("external_id", msg.ExternalID).Msg("duplicate submission, skipping")
		p.audit(ctx, msg, domain.ActionMessageDuplicate, domain.ActorSystem, "skipped", nil)
		return &Outcome{Message: msg, Duplicate: true, Disposition: dispositionFor(msg.Status)}, nil
	}

	if msg.Status == domain.StatusReceived {
		if err := p.deps.Messages.UpdateStatus(ctx, msg.ID, domain.StatusProcessing); err != nil {
			return nil, apperr.Database(err)
		}
		msg.Status = domain.StatusProcessing
		out, err := p.run(ctx, msg)
		if out != nil {
			out.Duplicate = true
		}
		return out, err
	}

	p.log.Warn().Str("external_id", msg.ExternalID).
		Msg("resubmission found message stuck in processing, escalating")
	out, err := p.escalate(ctx, msg, domain.PriorityHigh,
		"processing interrupted before reaching a terminal status")
	if out != nil {
		out.Duplicate = true
	}
	return out, err
}

// run executes the decision flow for a freshly created message. Every path
// out of here lands the message in a terminal status.
func (p *Pipeline) run(ctx context.Context, msg *domain.Message) (*Outcome, error) {
	settings, err := p.deps.Settings.Get(ctx, msg.AccountID)
	if err != nil {
		p.log.Warn().Err(err).Msg("settings load failed, using defaults")
		settings = domain.DefaultAccountSettings(msg.AccountID)
	}

	// Thread linking is non-fatal; absence of a thread means first message.
	link, linkErr := p.deps.Linker.Link(ctx, msg)
	if linkErr != nil {
		p.audit(ctx, msg, domain.ActionThreadLinked, domain.ActorSystem, "failure",
			map[string]any{"error": linkErr.Error()})
	} else if link.Linked {
		msg.ThreadID = &link.Thread.ID
		if err := p.deps.Messages.SetThread(ctx, msg.ID, link.Thread.ID); err != nil {
			p.log.Warn().Err(err).Msg("thread back-reference update failed")
		}
		p.audit(ctx, msg, domain.ActionThreadLinked, domain.ActorSystem, "success",
			map[string]any{"thread_id": link.Thread.ID, "first_message": link.FirstMessage})
	}

	classification := p.deps.Classifier.Classify(ctx, msg, msg.AccountID, settings.GroundingTier)
	if err := p.deps.Messages.SetClassification(ctx, msg.ID, classification); err != nil {
		p.log.Warn().Err(err).Msg("classification persist failed")
	}
	msg.Category = classification.Category
	msg.Confidence = classification.Confidence
	msg.Priority = classification.Priority
	p.audit(ctx, msg, domain.ActionClassified, domain.ActorAI, "success", map[string]any{
		"category":   classification.Category,
		"confidence": classification.Confidence,
		"grounded":   classification.Grounded,
		"degraded":   classification.Degraded,
	})

	risk := p.deps.Sentiment.Evaluate(ctx, msg.Body, sentiment.Context{
		HighValueCustomer: settings.IsHighValueSender(msg.FromEmail),
		ThreadMessages:    link.MessageCount,
	})
	sentimentStatus := "success"
	if risk.Unavailable {
		sentimentStatus = "skipped"
	}
	p.audit(ctx, msg, domain.ActionSentimentScored, domain.ActorAI, sentimentStatus, map[string]any{
		"escalate":  risk.Escalate,
		"threshold": risk.EffectiveThreshold,
	})

	decision := p.deps.Router.Decide(ctx, msg.AccountID, classification, risk, settings)
	p.audit(ctx, msg, domain.ActionRouted, domain.ActorAI, "success", map[string]any{
		"disposition": decision.Disposition,
		"reason":      decision.Reason,
		"priority":    decision.Priority,
	})

	switch decision.Disposition {
	case domain.DispositionEscalate:
		return p.escalate(ctx, msg, decision.Priority, decision.Reason)

	case domain.DispositionApprove, domain.DispositionAutomate:
		proposal := p.deps.Agents.Dispatch(ctx, classification.Category, &agents.Request{
			Message:   msg,
			Rule:      decision.Rule,
			Settings:  settings,
			Sentiment: risk.Assessment,
		})
		p.audit(ctx, msg, domain.ActionReplyProposed, domain.ActorAI, "success", map[string]any{
			"confidence": proposal.Confidence,
			"fallback":   proposal.Fallback,
		})

		if decision.Disposition == domain.DispositionApprove {
			return p.queueForApproval(ctx, msg, decision, proposal)
		}
		return p.sendReply(ctx, msg, settings, proposal.ReplyText, domain.ActorAI)
	}

	// Unreachable with a valid disposition; escalate rather than strand.
	return p.escalate(ctx, msg, domain.PriorityMedium, "unrecognized disposition")
}

// ResolveApproval applies a human decision to a queued reply. Approval
// re-enters delivery and ends resolved; rejection ends escalated.
func (p *Pipeline) ResolveApproval(ctx context.Context, itemID int64, approved bool) (*Outcome, error) {
	item, err := p.deps.Approvals.GetByID(ctx, itemID)
	if err != nil {
		return nil, apperr.NotFound(fmt.Sprintf("approval item %d not found", itemID))
	}

	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}
	if !item.CanResolve(status) {
		return nil, apperr.Conflict(fmt.Sprintf("approval item %d already %s", itemID, item.Status))
	}

	if err := p.deps.Approvals.Resolve(ctx, itemID, status); err != nil {
		return nil, apperr.Database(err)
	}

	msg, err := p.deps.Messages.GetByID(ctx, item.MessageID)
	if err != nil {
		return nil, apperr.Database(err)
	}

	p.audit(ctx, msg, domain.ActionApprovalResolved, domain.ActorHuman, string(status), map[string]any{
		"approval_id": itemID,
	})

	if !approved {
		return p.escalate(ctx, msg, domain.PriorityMedium, "proposed reply rejected by reviewer")
	}

	settings, err := p.deps.Settings.Get(ctx, msg.AccountID)
	if err != nil {
		settings = domain.DefaultAccountSettings(msg.AccountID)
	}

	return p.sendReply(ctx, msg, settings, item.ProposedReply, domain.ActorHuman)
}

// sendReply runs the safety gate and the delivery attempt. A blocked or
// failed send escalates; it is never silently dropped or retried.
func (p *Pipeline) sendReply(ctx context.Context, msg *domain.Message, settings *domain.AccountSettings, replyText string, actor domain.ActivityActor) (*Outcome, error) {
	verdict := p.deps.Safety.Validate(ctx, msg.FromEmail, replyText, settings)
	if !verdict.Approved {
		p.audit(ctx, msg, domain.ActionReplyBlocked, domain.ActorSystem, "blocked", map[string]any{
			"layer":  verdict.FailedLayer,
			"reason": verdict.Reason,
		})
		return p.escalate(ctx, msg, domain.PriorityHigh,
			fmt.Sprintf("reply blocked by safety gate (%s): %s", verdict.FailedLayer, verdict.Reason))
	}

	subject := replySubject(msg.Subject)
	if err := p.deps.Delivery.Send(ctx, msg.AccountID, msg.FromEmail, subject, replyText); err != nil {
		p.audit(ctx, msg, domain.ActionDeliveryFailed, domain.ActorSystem, "failure", map[string]any{
			"error": err.Error(),
		})
		return p.escalate(ctx, msg, domain.PriorityHigh, "delivery failed: "+err.Error())
	}

	p.audit(ctx, msg, domain.ActionReplySent, actor, "success", nil)

	if err := p.deps.Messages.UpdateStatus(ctx, msg.ID, domain.StatusResolved); err != nil {
		return nil, apperr.Database(err)
	}
	msg.Status = domain.StatusResolved

	return &Outcome{Message: msg, Disposition: domain.DispositionAutomate, ReplySent: true}, nil
}

func (p *Pipeline) queueForApproval(ctx context.Context, msg *domain.Message, decision *domain.RoutingDecision, proposal *agents.Proposal) (*Outcome, error) {
	item := &domain.ApprovalQueueItem{
		AccountID:          msg.AccountID,
		MessageID:          msg.ID,
		ProposedReply:      proposal.ReplyText,
		AdjustedConfidence: proposal.Confidence,
		Status:             domain.ApprovalPending,
		CreatedAt:          time.Now(),
	}
	if decision.Rule != nil {
		item.RuleID = decision.Rule.ID
	}

	if _, err := p.deps.Approvals.Create(ctx, item); err != nil {
		// Can't park the reply for review; hand the whole message to a human.
		return p.escalate(ctx, msg, decision.Priority, "approval queue unavailable: "+err.Error())
	}

	p.audit(ctx, msg, domain.ActionApprovalQueued, domain.ActorAI, "success", map[string]any{
		"confidence": proposal.Confidence,
	})

	if err := p.deps.Messages.UpdateStatus(ctx, msg.ID, domain.StatusAwaitingApproval); err != nil {
		return nil, apperr.Database(err)
	}
	msg.Status = domain.StatusAwaitingApproval

	return &Outcome{Message: msg, Disposition: domain.DispositionApprove}, nil
}

func (p *Pipeline) escalate(ctx context.Context, msg *domain.Message, priority domain.Priority, reason string) (*Outcome, error) {
	if priority == "" {
		priority = domain.PriorityMedium
	}

	item := &domain.EscalationQueueItem{
		AccountID: msg.AccountID,
		MessageID: msg.ID,
		Priority:  priority,
		Reason:    reason,
		Status:    domain.EscalationPending,
		CreatedAt: time.Now(),
	}
	if _, err := p.deps.Escalations.Create(ctx, item); err != nil {
		p.log.Error().Err(err).Int64("message_id", msg.ID).
			Msg("escalation queue write failed")
	}

	p.audit(ctx, msg, domain.ActionEscalated, domain.ActorSystem, "success", map[string]any{
		"priority": priority,
		"reason":   reason,
	})

	if err := p.deps.Messages.UpdateStatus(ctx, msg.ID, domain.StatusEscalated); err != nil {
		return nil, apperr.Database(err)
	}
	msg.Status = domain.StatusEscalated

	return &Outcome{Message: msg, Disposition: domain.DispositionEscalate}, nil
}

// audit appends an activity record; logging failure is reported but never
// aborts the pipeline.
func (p *Pipeline) audit(ctx context.Context, msg *domain.Message, action string, actor domain.ActivityActor, status string, metadata map[string]any) {
	entry := &domain.ActivityLogEntry{
		AccountID: msg.AccountID,
		MessageID: msg.ID,
		Action:    action,
		Actor:     actor,
		Status:    status,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := p.deps.Activity.Append(ctx, entry); err != nil {
		p.log.Warn().Err(err).Str("action", action).Msg("activity log append failed")
	}
}

func (p *Pipeline) archiveBody(ctx context.Context, msg *domain.Message) {
	if p.deps.Bodies == nil {
		return
	}
	if err := p.deps.Bodies.Archive(ctx, msg.AccountID, msg.ExternalID, msg.Body); err != nil {
		p.log.Warn().Err(err).Str("external_id", msg.ExternalID).Msg("body archive failed")
	}
}

// lockThread serializes processing per conversation key. The returned func
// releases the lock and drops the table entry when no one else holds it.
func (p *Pipeline) lockThread(msg *domain.Message) func() {
	a, b := domain.ParticipantPair(msg.FromEmail, msg.ToEmail)
	key := msg.AccountID.String() + "|" + domain.NormalizeSubject(msg.Subject) + "|" + a + "|" + b

	p.mu.Lock()
	lock, ok := p.threadLocks[key]
	if !ok {
		lock = &threadLock{}
		p.threadLocks[key] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		p.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(p.threadLocks, key)
		}
		p.mu.Unlock()
	}
}

func replySubject(subject string) string {
	normalized := domain.NormalizeSubject(subject)
	if normalized == "" {
		return "Re: your message"
	}
	return "Re: " + normalized
}

func dispositionFor(status domain.MessageStatus) domain.Disposition {
	switch status {
	case domain.StatusAwaitingApproval:
		return domain.DispositionApprove
	case domain.StatusEscalated:
		return domain.DispositionEscalate
	default:
		return domain.DispositionAutomate
	}
}
