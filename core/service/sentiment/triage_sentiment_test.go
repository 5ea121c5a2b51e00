package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
)

type stubOracle struct {
	assessment *domain.SentimentAssessment
	err        error
}

func (s *stubOracle) Analyze(_ context.Context, _ string) (*domain.SentimentAssessment, error) {
	return s.assessment, s.err
}

func negativeAssessment(negative, confidence int) *domain.SentimentAssessment {
	return &domain.SentimentAssessment{
		Label:      domain.SentimentNegative,
		Scores:     map[domain.SentimentLabel]int{domain.SentimentNegative: negative},
		Confidence: confidence,
	}
}

func TestEffectiveThreshold(t *testing.T) {
	e := NewEvaluator(&stubOracle{}, time.Second, zerolog.Nop())

	tests := []struct {
		name string
		body string
		sctx Context
		want int
	}{
		{
			name: "nominal",
			body: "where is my order",
			sctx: Context{},
			want: 75,
		},
		{
			name: "high value customer",
			body: "where is my order",
			sctx: Context{HighValueCustomer: true},
			want: 60,
		},
		{
			name: "long thread",
			body: "where is my order",
			sctx: Context{ThreadMessages: 4},
			want: 65,
		},
		{
			name: "thread at boundary does not relax",
			body: "where is my order",
			sctx: Context{ThreadMessages: 3},
			want: 75,
		},
		{
			name: "billing keyword",
			body: "I was double charged for this",
			sctx: Context{},
			want: 65,
		},
		{
			name: "billing keyword case insensitive",
			body: "REFUND me now",
			sctx: Context{},
			want: 65,
		},
		{
			name: "all relaxations stack",
			body: "this invoice is wrong",
			sctx: Context{HighValueCustomer: true, ThreadMessages: 10},
			want: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.effectiveThreshold(tt.body, tt.sctx)
			if got != tt.want {
				t.Errorf("effectiveThreshold() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvaluateEscalation(t *testing.T) {
	tests := []struct {
		name         string
		assessment   *domain.SentimentAssessment
		body         string
		sctx         Context
		wantEscalate bool
		wantPriority domain.Priority
	}{
		{
			name:         "calm message does not escalate",
			assessment:   negativeAssessment(20, 95),
			body:         "thanks for the quick reply",
			wantEscalate: false,
		},
		{
			name:         "above threshold with very high confidence escalates urgent",
			assessment:   negativeAssessment(80, 95),
			body:         "this is unacceptable",
			wantEscalate: true,
			wantPriority: domain.PriorityUrgent,
		},
		{
			name:         "above threshold but confidence exactly 90 does not trigger urgent rule",
			assessment:   negativeAssessment(80, 90),
			body:         "this is unacceptable",
			wantEscalate: false,
		},
		{
			name:         "strongly negative with high confidence escalates high",
			assessment:   negativeAssessment(90, 85),
			body:         "worst support I have ever dealt with",
			sctx:         Context{}, // threshold 75, but confidence below 91
			wantEscalate: true,
			wantPriority: domain.PriorityHigh,
		},
		{
			name:         "negative exactly 85 does not trigger high rule",
			assessment:   negativeAssessment(85, 85),
			body:         "pretty unhappy here",
			wantEscalate: false,
		},
		{
			name:         "relaxed threshold catches moderate negativity",
			assessment:   negativeAssessment(62, 95),
			body:         "hello again about my account",
			sctx:         Context{HighValueCustomer: true}, // threshold 60
			wantEscalate: true,
			wantPriority: domain.PriorityUrgent,
		},
		{
			name:         "same scores without relaxation stay below threshold",
			assessment:   negativeAssessment(62, 95),
			body:         "hello again about my account",
			sctx:         Context{},
			wantEscalate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(&stubOracle{assessment: tt.assessment}, time.Second, zerolog.Nop())
			got := e.Evaluate(context.Background(), tt.body, tt.sctx)

			if got.Escalate != tt.wantEscalate {
				t.Errorf("Escalate = %v, want %v (reason %q)", got.Escalate, tt.wantEscalate, got.Reason)
			}
			if tt.wantEscalate && got.Priority != tt.wantPriority {
				t.Errorf("Priority = %q, want %q", got.Priority, tt.wantPriority)
			}
			if got.Unavailable {
				t.Error("Unavailable = true for healthy oracle")
			}
		})
	}
}

func TestEvaluateUrgencyKeywords(t *testing.T) {
	e := NewEvaluator(&stubOracle{assessment: negativeAssessment(10, 50)}, time.Second, zerolog.Nop())

	got := e.Evaluate(context.Background(), "I will file a chargeback with my bank", Context{})
	if !got.ForcedUrgent {
		t.Fatal("ForcedUrgent = false for chargeback mention")
	}
	if got.Priority != domain.PriorityUrgent {
		t.Errorf("Priority = %q, want urgent", got.Priority)
	}
	if got.Escalate {
		t.Error("urgency keyword alone must not set Escalate")
	}
}

func TestEvaluateOracleFailure(t *testing.T) {
	e := NewEvaluator(&stubOracle{err: errors.New("model timeout")}, time.Second, zerolog.Nop())

	got := e.Evaluate(context.Background(), "my lawyer will be in touch", Context{})
	if !got.Unavailable {
		t.Fatal("Unavailable = false after oracle error")
	}
	if got.Escalate {
		t.Error("oracle failure must not escalate on sentiment")
	}
	// Keyword urgency survives oracle failure.
	if !got.ForcedUrgent || got.Priority != domain.PriorityUrgent {
		t.Errorf("ForcedUrgent = %v, Priority = %q, want forced urgent", got.ForcedUrgent, got.Priority)
	}
	if got.EffectiveThreshold != NominalThreshold {
		t.Errorf("EffectiveThreshold = %d, want %d", got.EffectiveThreshold, NominalThreshold)
	}
}
