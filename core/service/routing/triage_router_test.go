package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/service/sentiment"
)

type stubRuleRepo struct {
	rules []*domain.AutomationRule
	err   error
	hits  map[int64]int
}

func (s *stubRuleRepo) ListActive(_ context.Context, _ uuid.UUID) ([]*domain.AutomationRule, error) {
	return s.rules, s.err
}

func (s *stubRuleRepo) GetByID(_ context.Context, _ int64) (*domain.AutomationRule, error) {
	return nil, nil
}

func (s *stubRuleRepo) IncrementHitCount(_ context.Context, id int64) error {
	if s.hits == nil {
		s.hits = make(map[int64]int)
	}
	s.hits[id]++
	return nil
}

func classified(category domain.IntentCategory, confidence int) *domain.ClassificationResult {
	return &domain.ClassificationResult{
		Category:   category,
		Confidence: confidence,
		Priority:   domain.PriorityMedium,
	}
}

func TestDecide(t *testing.T) {
	accountID := uuid.New()
	refundRule := &domain.AutomationRule{ID: 1, Name: "promo refunds", Category: domain.CategoryPromoRefund, Active: true}
	genericRule := &domain.AutomationRule{ID: 2, Name: "catch-all", Category: domain.CategoryGeneral, Generic: true, Active: true}
	autoSettings := &domain.AccountSettings{AccountID: accountID, RequireApproval: false}
	approvalSettings := &domain.AccountSettings{AccountID: accountID, RequireApproval: true}

	tests := []struct {
		name            string
		classification  *domain.ClassificationResult
		risk            *sentiment.RiskAssessment
		settings        *domain.AccountSettings
		rules           []*domain.AutomationRule
		ruleErr         error
		wantDisposition domain.Disposition
		wantPriority    domain.Priority
		wantRuleID      int64
	}{
		{
			name:           "sentiment escalation overrides matching rule",
			classification: classified(domain.CategoryPromoRefund, 95),
			risk: &sentiment.RiskAssessment{
				Escalate: true,
				Priority: domain.PriorityUrgent,
				Assessment: &domain.SentimentAssessment{
					Scores:     map[domain.SentimentLabel]int{domain.SentimentNegative: 92},
					Confidence: 95,
				},
			},
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{refundRule},
			wantDisposition: domain.DispositionEscalate,
			wantPriority:    domain.PriorityUrgent,
		},
		{
			name:            "low confidence escalates before rules are consulted",
			classification:  classified(domain.CategoryPromoRefund, 59),
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{refundRule, genericRule},
			wantDisposition: domain.DispositionEscalate,
		},
		{
			name:            "confidence at gate passes",
			classification:  classified(domain.CategoryPromoRefund, 60),
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{refundRule},
			wantDisposition: domain.DispositionAutomate,
			wantRuleID:      1,
		},
		{
			name:            "escalation category always escalates",
			classification:  classified(domain.CategoryEscalation, 99),
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{genericRule},
			wantDisposition: domain.DispositionEscalate,
		},
		{
			name:            "no matching rule escalates",
			classification:  classified(domain.CategoryOrderStatus, 95),
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{refundRule},
			wantDisposition: domain.DispositionEscalate,
		},
		{
			name:            "generic fallback applies below gate",
			classification:  classified(domain.CategoryOrderStatus, 65),
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{refundRule, genericRule},
			wantDisposition: domain.DispositionAutomate,
			wantRuleID:      2,
		},
		{
			name:            "generic fallback does not apply at high confidence",
			classification:  classified(domain.CategoryOrderStatus, 70),
			settings:        autoSettings,
			rules:           []*domain.AutomationRule{refundRule, genericRule},
			wantDisposition: domain.DispositionEscalate,
		},
		{
			name:            "approval required queues instead of automating",
			classification:  classified(domain.CategoryPromoRefund, 90),
			settings:        approvalSettings,
			rules:           []*domain.AutomationRule{refundRule},
			wantDisposition: domain.DispositionApprove,
			wantRuleID:      1,
		},
		{
			name:            "nil settings defaults to approval",
			classification:  classified(domain.CategoryPromoRefund, 90),
			settings:        nil,
			rules:           []*domain.AutomationRule{refundRule},
			wantDisposition: domain.DispositionApprove,
			wantRuleID:      1,
		},
		{
			name:            "rule listing failure escalates",
			classification:  classified(domain.CategoryPromoRefund, 90),
			settings:        autoSettings,
			ruleErr:         errors.New("connection refused"),
			wantDisposition: domain.DispositionEscalate,
		},
		{
			name:           "forced urgent carries priority on non-escalating path",
			classification: classified(domain.CategoryPromoRefund, 90),
			risk: &sentiment.RiskAssessment{
				ForcedUrgent: true,
				Priority:     domain.PriorityUrgent,
			},
			settings:        approvalSettings,
			rules:           []*domain.AutomationRule{refundRule},
			wantDisposition: domain.DispositionApprove,
			wantPriority:    domain.PriorityUrgent,
			wantRuleID:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRuleRepo{rules: tt.rules, err: tt.ruleErr}
			r := NewRouter(repo, zerolog.Nop())
			got := r.Decide(context.Background(), accountID, tt.classification, tt.risk, tt.settings)

			if got.Disposition != tt.wantDisposition {
				t.Errorf("Disposition = %q, want %q (reason %q)", got.Disposition, tt.wantDisposition, got.Reason)
			}
			if tt.wantPriority != "" && got.Priority != tt.wantPriority {
				t.Errorf("Priority = %q, want %q", got.Priority, tt.wantPriority)
			}
			if tt.wantRuleID != 0 {
				if got.Rule == nil {
					t.Fatal("Rule = nil, want resolved rule")
				}
				if got.Rule.ID != tt.wantRuleID {
					t.Errorf("Rule.ID = %d, want %d", got.Rule.ID, tt.wantRuleID)
				}
				if repo.hits[tt.wantRuleID] != 1 {
					t.Errorf("hit count for rule %d = %d, want 1", tt.wantRuleID, repo.hits[tt.wantRuleID])
				}
			}
			if got.Reason == "" {
				t.Error("Reason is empty")
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	accountID := uuid.New()
	repo := &stubRuleRepo{rules: []*domain.AutomationRule{
		{ID: 1, Name: "refunds", Category: domain.CategoryPromoRefund, Active: true},
	}}
	r := NewRouter(repo, zerolog.Nop())

	c := classified(domain.CategoryPromoRefund, 80)
	settings := &domain.AccountSettings{AccountID: accountID, RequireApproval: true}

	first := r.Decide(context.Background(), accountID, c, nil, settings)
	for i := 0; i < 5; i++ {
		got := r.Decide(context.Background(), accountID, c, nil, settings)
		if got.Disposition != first.Disposition || got.Reason != first.Reason {
			t.Fatalf("decision changed between runs: %+v vs %+v", got, first)
		}
	}
}
