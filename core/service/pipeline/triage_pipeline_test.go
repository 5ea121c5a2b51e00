package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/agents"
	"triage_server/core/service/classify"
	"triage_server/core/service/routing"
	"triage_server/core/service/safety"
	"triage_server/core/service/sentiment"
	"triage_server/core/service/threads"
)

// --- port stubs ---

type memMessages struct {
	byExternal map[string]*domain.Message
	byID       map[int64]*domain.Message
	nextID     int64
	statuses   []domain.MessageStatus

	// one-shot write failure injected for a specific target status
	failOn  domain.MessageStatus
	failErr error
}

func newMemMessages() *memMessages {
	return &memMessages{
		byExternal: make(map[string]*domain.Message),
		byID:       make(map[int64]*domain.Message),
	}
}

func (m *memMessages) CreateIfAbsent(_ context.Context, msg *domain.Message) (*domain.Message, bool, error) {
	key := msg.AccountID.String() + "|" + msg.ExternalID
	if existing, ok := m.byExternal[key]; ok {
		return existing, false, nil
	}
	m.nextID++
	stored := *msg
	stored.ID = m.nextID
	m.byExternal[key] = &stored
	m.byID[stored.ID] = &stored
	m.statuses = append(m.statuses, stored.Status)
	return &stored, true, nil
}

func (m *memMessages) GetByID(_ context.Context, id int64) (*domain.Message, error) {
	msg, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (m *memMessages) GetByExternalID(_ context.Context, accountID uuid.UUID, externalID string) (*domain.Message, error) {
	return m.byExternal[accountID.String()+"|"+externalID], nil
}

func (m *memMessages) UpdateStatus(_ context.Context, id int64, status domain.MessageStatus) error {
	if m.failErr != nil && status == m.failOn {
		err := m.failErr
		m.failErr = nil
		return err
	}
	msg := m.byID[id]
	if !msg.Status.CanTransitionTo(status) {
		return errors.New("illegal status transition " + string(msg.Status) + " -> " + string(status))
	}
	msg.Status = status
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memMessages) SetClassification(_ context.Context, id int64, result *domain.ClassificationResult) error {
	msg := m.byID[id]
	msg.Category = result.Category
	msg.Confidence = result.Confidence
	msg.Priority = result.Priority
	return nil
}

func (m *memMessages) SetThread(_ context.Context, id int64, threadID int64) error {
	m.byID[id].ThreadID = &threadID
	return nil
}

type memSettings struct{ settings *domain.AccountSettings }

func (m *memSettings) Get(_ context.Context, accountID uuid.UUID) (*domain.AccountSettings, error) {
	if m.settings == nil {
		return domain.DefaultAccountSettings(accountID), nil
	}
	return m.settings, nil
}

type memApprovals struct {
	items  map[int64]*domain.ApprovalQueueItem
	nextID int64
	err    error
}

func newMemApprovals() *memApprovals {
	return &memApprovals{items: make(map[int64]*domain.ApprovalQueueItem)}
}

func (m *memApprovals) Create(_ context.Context, item *domain.ApprovalQueueItem) (*domain.ApprovalQueueItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	item.ID = m.nextID
	m.items[item.ID] = item
	return item, nil
}

func (m *memApprovals) GetByID(_ context.Context, id int64) (*domain.ApprovalQueueItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return item, nil
}

func (m *memApprovals) ListPending(_ context.Context, _ uuid.UUID) ([]*domain.ApprovalQueueItem, error) {
	return nil, nil
}

func (m *memApprovals) Resolve(_ context.Context, id int64, status domain.ApprovalStatus) error {
	item := m.items[id]
	if item.Status != domain.ApprovalPending {
		return errors.New("not pending")
	}
	item.Status = status
	now := time.Now()
	item.ResolvedAt = &now
	return nil
}

type memEscalations struct {
	items []*domain.EscalationQueueItem
}

func (m *memEscalations) Create(_ context.Context, item *domain.EscalationQueueItem) (*domain.EscalationQueueItem, error) {
	item.ID = int64(len(m.items) + 1)
	m.items = append(m.items, item)
	return item, nil
}

func (m *memEscalations) ListPending(_ context.Context, _ uuid.UUID) ([]*domain.EscalationQueueItem, error) {
	return m.items, nil
}

func (m *memEscalations) MarkResolved(_ context.Context, _ int64) error { return nil }

type memActivity struct {
	entries []*domain.ActivityLogEntry
	err     error
}

func (m *memActivity) Append(_ context.Context, entry *domain.ActivityLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memActivity) actions() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type stubDelivery struct {
	err   error
	sends int

	lastTo      string
	lastSubject string
	lastBody    string
}

func (s *stubDelivery) Send(_ context.Context, _ uuid.UUID, to, subject, body string) error {
	s.sends++
	s.lastTo, s.lastSubject, s.lastBody = to, subject, body
	return s.err
}

type stubThreads struct{ thread *domain.Thread }

func (s *stubThreads) GetOrCreate(_ context.Context, _ uuid.UUID, _, _, _ string) (*domain.Thread, error) {
	return s.thread, nil
}
func (s *stubThreads) AppendMessage(_ context.Context, _, _ int64) error { return nil }
func (s *stubThreads) MessageCount(_ context.Context, _ int64) (int, error) {
	return s.thread.MessageCount, nil
}
func (s *stubThreads) IsFirstMessage(_ context.Context, _, _ int64) (bool, error) {
	return s.thread.MessageCount <= 1, nil
}

type stubClassifyOracle struct {
	resp *out.ClassifyResponse
	err  error
}

func (s *stubClassifyOracle) Classify(_ context.Context, _ *out.ClassifyRequest) (*out.ClassifyResponse, error) {
	return s.resp, s.err
}

type stubSentimentOracle struct {
	assessment *domain.SentimentAssessment
	err        error
}

func (s *stubSentimentOracle) Analyze(_ context.Context, _ string) (*domain.SentimentAssessment, error) {
	return s.assessment, s.err
}

type stubRules struct{ rules []*domain.AutomationRule }

func (s *stubRules) ListActive(_ context.Context, _ uuid.UUID) ([]*domain.AutomationRule, error) {
	return s.rules, nil
}
func (s *stubRules) GetByID(_ context.Context, _ int64) (*domain.AutomationRule, error) {
	return nil, nil
}
func (s *stubRules) IncrementHitCount(_ context.Context, _ int64) error { return nil }

type stubModeration struct {
	result *out.ModerationResult
}

func (s *stubModeration) Validate(_ context.Context, _ string, _ uuid.UUID) (*out.ModerationResult, error) {
	return s.result, nil
}

type stubVoice struct{}

func (s *stubVoice) CheckVoice(_ context.Context, _, _ string) (*out.ModerationResult, error) {
	return &out.ModerationResult{Approved: true}, nil
}

type stubDispatcher struct {
	proposal *agents.Proposal
	calls    int
}

func (s *stubDispatcher) Dispatch(_ context.Context, _ domain.IntentCategory, _ *agents.Request) *agents.Proposal {
	s.calls++
	return s.proposal
}

// --- fixture ---

type fixture struct {
	pipeline    *Pipeline
	messages    *memMessages
	approvals   *memApprovals
	escalations *memEscalations
	activity    *memActivity
	delivery    *stubDelivery
	dispatcher  *stubDispatcher
}

func calmOracle() *stubSentimentOracle {
	return &stubSentimentOracle{assessment: &domain.SentimentAssessment{
		Label:      domain.SentimentNeutral,
		Scores:     map[domain.SentimentLabel]int{domain.SentimentNegative: 10},
		Confidence: 85,
	}}
}

type fixtureOpts struct {
	settings        *domain.AccountSettings
	classify        *stubClassifyOracle
	inboundSent     *stubSentimentOracle
	rules           []*domain.AutomationRule
	moderationBlock bool
	deliveryErr     error
	dispatcher      *stubDispatcher
}

func newFixture(opts fixtureOpts) *fixture {
	log := zerolog.Nop()

	if opts.classify == nil {
		opts.classify = &stubClassifyOracle{resp: &out.ClassifyResponse{
			Category: "promo-refund", Confidence: 90, Priority: "medium",
		}}
	}
	if opts.inboundSent == nil {
		opts.inboundSent = calmOracle()
	}
	if opts.rules == nil {
		opts.rules = []*domain.AutomationRule{
			{ID: 1, Name: "refunds", Category: domain.CategoryPromoRefund, Active: true},
		}
	}
	if opts.dispatcher == nil {
		opts.dispatcher = &stubDispatcher{proposal: &agents.Proposal{
			ReplyText: "We have issued your refund.", Confidence: 82,
		}}
	}

	moderation := &stubModeration{result: &out.ModerationResult{Approved: true}}
	if opts.moderationBlock {
		moderation.result = &out.ModerationResult{Approved: false, Reason: "flagged content"}
	}

	f := &fixture{
		messages:    newMemMessages(),
		approvals:   newMemApprovals(),
		escalations: &memEscalations{},
		activity:    &memActivity{},
		delivery:    &stubDelivery{err: opts.deliveryErr},
		dispatcher:  opts.dispatcher,
	}

	f.pipeline = New(Deps{
		Messages:    f.messages,
		Settings:    &memSettings{settings: opts.settings},
		Approvals:   f.approvals,
		Escalations: f.escalations,
		Activity:    f.activity,
		Delivery:    f.delivery,
		Linker:      threads.NewLinker(&stubThreads{thread: &domain.Thread{ID: 1, MessageCount: 1}}, log),
		Classifier:  classify.NewClassifier(opts.classify, nil, time.Second, log),
		Sentiment:   sentiment.NewEvaluator(opts.inboundSent, time.Second, log),
		Router:      routing.NewRouter(&stubRules{rules: opts.rules}, log),
		Agents:      opts.dispatcher,
		Safety:      safety.NewGate(moderation, &stubVoice{}, calmOracle(), time.Second, log),
	}, log)

	return f
}

func inbound(accountID uuid.UUID, externalID string) *domain.Message {
	return &domain.Message{
		AccountID:  accountID,
		ExternalID: externalID,
		FromEmail:  "customer@shop.com",
		ToEmail:    "support@acme.com",
		Subject:    "Re: refund for order #12345",
		Body:       "I would like the promised refund please.",
		ReceivedAt: time.Now(),
	}
}

func contains(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

// --- tests ---

func TestProcessAutomated(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
	})

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-1"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if !got.ReplySent {
		t.Error("ReplySent = false")
	}
	if got.Message.Status != domain.StatusResolved {
		t.Errorf("Status = %q, want resolved", got.Message.Status)
	}
	if f.delivery.sends != 1 {
		t.Errorf("delivery sends = %d, want 1", f.delivery.sends)
	}
	if f.delivery.lastTo != "customer@shop.com" {
		t.Errorf("reply sent to %q", f.delivery.lastTo)
	}
	if f.delivery.lastSubject != "Re: refund for order #12345" {
		t.Errorf("reply subject = %q", f.delivery.lastSubject)
	}
	if len(f.escalations.items) != 0 {
		t.Errorf("escalations = %d, want 0", len(f.escalations.items))
	}

	// Lifecycle is monotonic: received → processing → resolved.
	want := []domain.MessageStatus{domain.StatusReceived, domain.StatusProcessing, domain.StatusResolved}
	if len(f.messages.statuses) != len(want) {
		t.Fatalf("status history = %v", f.messages.statuses)
	}
	for i, s := range want {
		if f.messages.statuses[i] != s {
			t.Errorf("status[%d] = %q, want %q", i, f.messages.statuses[i], s)
		}
	}

	for _, action := range []string{
		domain.ActionMessageReceived, domain.ActionThreadLinked, domain.ActionClassified,
		domain.ActionSentimentScored, domain.ActionRouted, domain.ActionReplyProposed,
		domain.ActionReplySent,
	} {
		if !contains(f.activity.actions(), action) {
			t.Errorf("audit trail missing %q: %v", action, f.activity.actions())
		}
	}
}

func TestProcessDuplicate(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
	})

	first, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-1"))
	if err != nil {
		t.Fatalf("first Process() error: %v", err)
	}
	second, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-1"))
	if err != nil {
		t.Fatalf("second Process() error: %v", err)
	}

	if !second.Duplicate {
		t.Error("Duplicate = false on resubmission")
	}
	if second.Message.ID != first.Message.ID {
		t.Errorf("duplicate resolved to different message: %d vs %d", second.Message.ID, first.Message.ID)
	}
	if f.delivery.sends != 1 {
		t.Errorf("delivery sends = %d, want 1 (duplicate must not redeliver)", f.delivery.sends)
	}
	if f.dispatcher.calls != 1 {
		t.Errorf("dispatcher calls = %d, want 1", f.dispatcher.calls)
	}
	if !contains(f.activity.actions(), domain.ActionMessageDuplicate) {
		t.Error("duplicate submission not audited")
	}
}

func TestProcessApprovalPath(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: true},
	})

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-2"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if got.Disposition != domain.DispositionApprove {
		t.Errorf("Disposition = %q, want approve", got.Disposition)
	}
	if got.Message.Status != domain.StatusAwaitingApproval {
		t.Errorf("Status = %q, want awaiting_approval", got.Message.Status)
	}
	if f.delivery.sends != 0 {
		t.Errorf("delivery sends = %d, want 0 before approval", f.delivery.sends)
	}
	if len(f.approvals.items) != 1 {
		t.Fatalf("approval items = %d, want 1", len(f.approvals.items))
	}
	item := f.approvals.items[1]
	if item.ProposedReply != "We have issued your refund." {
		t.Errorf("ProposedReply = %q", item.ProposedReply)
	}
	if item.RuleID != 1 {
		t.Errorf("RuleID = %d, want 1", item.RuleID)
	}
	if item.Status != domain.ApprovalPending {
		t.Errorf("Status = %q, want pending", item.Status)
	}
}

func TestResolveApproval(t *testing.T) {
	t.Run("approved delivers the queued reply", func(t *testing.T) {
		accountID := uuid.New()
		f := newFixture(fixtureOpts{
			settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: true},
		})
		if _, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-3")); err != nil {
			t.Fatal(err)
		}

		got, err := f.pipeline.ResolveApproval(context.Background(), 1, true)
		if err != nil {
			t.Fatalf("ResolveApproval() error: %v", err)
		}
		if !got.ReplySent {
			t.Error("ReplySent = false after approval")
		}
		if got.Message.Status != domain.StatusResolved {
			t.Errorf("Status = %q, want resolved", got.Message.Status)
		}
		if f.delivery.lastBody != "We have issued your refund." {
			t.Errorf("delivered body = %q, want the queued proposal", f.delivery.lastBody)
		}
	})

	t.Run("rejected escalates", func(t *testing.T) {
		accountID := uuid.New()
		f := newFixture(fixtureOpts{
			settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: true},
		})
		if _, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-4")); err != nil {
			t.Fatal(err)
		}

		got, err := f.pipeline.ResolveApproval(context.Background(), 1, false)
		if err != nil {
			t.Fatalf("ResolveApproval() error: %v", err)
		}
		if got.Message.Status != domain.StatusEscalated {
			t.Errorf("Status = %q, want escalated", got.Message.Status)
		}
		if f.delivery.sends != 0 {
			t.Errorf("delivery sends = %d, want 0 for rejection", f.delivery.sends)
		}
		if len(f.escalations.items) != 1 {
			t.Errorf("escalations = %d, want 1", len(f.escalations.items))
		}
	})

	t.Run("double resolution conflicts", func(t *testing.T) {
		accountID := uuid.New()
		f := newFixture(fixtureOpts{
			settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: true},
		})
		if _, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-5")); err != nil {
			t.Fatal(err)
		}

		if _, err := f.pipeline.ResolveApproval(context.Background(), 1, true); err != nil {
			t.Fatal(err)
		}
		if _, err := f.pipeline.ResolveApproval(context.Background(), 1, false); err == nil {
			t.Error("second resolution succeeded, want conflict")
		}
		if f.delivery.sends != 1 {
			t.Errorf("delivery sends = %d, want 1", f.delivery.sends)
		}
	})
}

func TestProcessRetryAfterInterruption(t *testing.T) {
	t.Run("interrupted mid-processing escalates, never redelivers", func(t *testing.T) {
		accountID := uuid.New()
		f := newFixture(fixtureOpts{
			settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
		})
		f.messages.failOn = domain.StatusResolved
		f.messages.failErr = errors.New("connection reset")

		if _, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-11")); err == nil {
			t.Fatal("first Process() succeeded, want transient failure on the resolved write")
		}
		if f.delivery.sends != 1 {
			t.Fatalf("delivery sends after first attempt = %d, want 1", f.delivery.sends)
		}

		got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-11"))
		if err != nil {
			t.Fatalf("retry Process() error: %v", err)
		}

		if !got.Duplicate {
			t.Error("Duplicate = false on retry")
		}
		if !got.Message.Status.IsTerminal() {
			t.Errorf("Status = %q, retry left the message non-terminal", got.Message.Status)
		}
		if got.Message.Status != domain.StatusEscalated {
			t.Errorf("Status = %q, want escalated (reply may already be out)", got.Message.Status)
		}
		if f.delivery.sends != 1 {
			t.Errorf("delivery sends = %d, want 1 (retry must not redeliver)", f.delivery.sends)
		}
		if f.dispatcher.calls != 1 {
			t.Errorf("dispatcher calls = %d, want 1 (retry must not re-dispatch)", f.dispatcher.calls)
		}
		if len(f.escalations.items) != 1 {
			t.Errorf("escalations = %d, want 1", len(f.escalations.items))
		}
	})

	t.Run("interrupted before processing reruns the flow", func(t *testing.T) {
		accountID := uuid.New()
		f := newFixture(fixtureOpts{
			settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
		})
		f.messages.failOn = domain.StatusProcessing
		f.messages.failErr = errors.New("connection reset")

		if _, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-12")); err == nil {
			t.Fatal("first Process() succeeded, want transient failure on the processing write")
		}
		if f.delivery.sends != 0 {
			t.Fatalf("delivery sends after first attempt = %d, want 0", f.delivery.sends)
		}

		got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-12"))
		if err != nil {
			t.Fatalf("retry Process() error: %v", err)
		}

		if !got.Duplicate {
			t.Error("Duplicate = false on retry")
		}
		if got.Message.Status != domain.StatusResolved {
			t.Errorf("Status = %q, want resolved", got.Message.Status)
		}
		if !got.ReplySent {
			t.Error("ReplySent = false, retry should have finished delivery")
		}
		if f.delivery.sends != 1 {
			t.Errorf("delivery sends = %d, want exactly 1", f.delivery.sends)
		}
	})
}

func TestProcessSafetyBlock(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings:        &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
		moderationBlock: true,
	})

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-6"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if got.Message.Status != domain.StatusEscalated {
		t.Errorf("Status = %q, want escalated", got.Message.Status)
	}
	if f.delivery.sends != 0 {
		t.Errorf("delivery sends = %d, want 0 for blocked reply", f.delivery.sends)
	}
	if !contains(f.activity.actions(), domain.ActionReplyBlocked) {
		t.Error("blocked reply not audited")
	}
	if len(f.escalations.items) != 1 || f.escalations.items[0].Priority != domain.PriorityHigh {
		t.Errorf("escalations = %+v, want one high-priority item", f.escalations.items)
	}
}

func TestProcessDeliveryFailure(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings:    &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
		deliveryErr: errors.New("mailbox token revoked"),
	})

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-7"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if got.Message.Status != domain.StatusEscalated {
		t.Errorf("Status = %q, want escalated", got.Message.Status)
	}
	// A failed send is escalated, never retried.
	if f.delivery.sends != 1 {
		t.Errorf("delivery sends = %d, want exactly 1", f.delivery.sends)
	}
	if !contains(f.activity.actions(), domain.ActionDeliveryFailed) {
		t.Error("delivery failure not audited")
	}
}

func TestProcessDegradedClassifierEndsTerminal(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
		classify: &stubClassifyOracle{err: errors.New("oracle down")},
	})

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-8"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	// Degraded classification has confidence 30, below the routing gate.
	if got.Message.Status != domain.StatusEscalated {
		t.Errorf("Status = %q, want escalated", got.Message.Status)
	}
	if !got.Message.Status.IsTerminal() {
		t.Error("message stranded in non-terminal status")
	}
}

func TestProcessApprovalQueueUnavailable(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: true},
	})
	f.approvals.err = errors.New("table locked")

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-9"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.Message.Status != domain.StatusEscalated {
		t.Errorf("Status = %q, want escalated when approvals are unavailable", got.Message.Status)
	}
}

func TestAuditFailureDoesNotAbort(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
	})
	f.activity.err = errors.New("audit store down")

	got, err := f.pipeline.Process(context.Background(), inbound(accountID, "msg-10"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.Message.Status != domain.StatusResolved {
		t.Errorf("Status = %q, want resolved despite audit failures", got.Message.Status)
	}
}

func TestThreadLockEviction(t *testing.T) {
	accountID := uuid.New()
	f := newFixture(fixtureOpts{
		settings: &domain.AccountSettings{AccountID: accountID, RequireApproval: false},
	})

	for i := 0; i < 5; i++ {
		in := inbound(accountID, fmt.Sprintf("msg-lock-%d", i))
		in.Subject = fmt.Sprintf("question %d", i)
		if _, err := f.pipeline.Process(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}

	f.pipeline.mu.Lock()
	n := len(f.pipeline.threadLocks)
	f.pipeline.mu.Unlock()
	if n != 0 {
		t.Errorf("thread lock table holds %d entries after processing, want 0", n)
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Order question", "Re: Order question"},
		{"Re: Order question", "Re: Order question"},
		{"", "Re: your message"},
		{"Re:", "Re: your message"},
	}
	for _, tt := range tests {
		if got := replySubject(tt.in); got != tt.want {
			t.Errorf("replySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
