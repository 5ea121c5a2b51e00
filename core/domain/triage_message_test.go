package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from MessageStatus
		to   MessageStatus
		want bool
	}{
		{StatusReceived, StatusProcessing, true},
		{StatusReceived, StatusResolved, false},
		{StatusReceived, StatusReceived, false},
		{StatusProcessing, StatusResolved, true},
		{StatusProcessing, StatusAwaitingApproval, true},
		{StatusProcessing, StatusEscalated, true},
		{StatusProcessing, StatusReceived, false},
		{StatusAwaitingApproval, StatusResolved, true},
		{StatusAwaitingApproval, StatusEscalated, true},
		{StatusAwaitingApproval, StatusProcessing, false},
		{StatusResolved, StatusProcessing, false},
		{StatusResolved, StatusEscalated, false},
		{StatusEscalated, StatusResolved, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[MessageStatus]bool{
		StatusReceived:         false,
		StatusProcessing:       false,
		StatusResolved:         true,
		StatusAwaitingApproval: true,
		StatusEscalated:        true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestParseIntentCategory(t *testing.T) {
	tests := []struct {
		in   string
		want IntentCategory
	}{
		{"order-status", CategoryOrderStatus},
		{"promo-refund", CategoryPromoRefund},
		{"escalation", CategoryEscalation},
		{"general", CategoryGeneral},
		{"ORDER-STATUS", CategoryGeneral}, // case sensitive on purpose
		{"something-new", CategoryGeneral},
		{"", CategoryGeneral},
	}

	for _, tt := range tests {
		if got := ParseIntentCategory(tt.in); got != tt.want {
			t.Errorf("ParseIntentCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApprovalCanResolve(t *testing.T) {
	pending := &ApprovalQueueItem{Status: ApprovalPending}
	if !pending.CanResolve(ApprovalApproved) || !pending.CanResolve(ApprovalRejected) {
		t.Error("pending item must accept approval and rejection")
	}
	if pending.CanResolve(ApprovalPending) {
		t.Error("pending -> pending is not a resolution")
	}

	done := &ApprovalQueueItem{Status: ApprovalApproved}
	if done.CanResolve(ApprovalRejected) {
		t.Error("resolved item must not resolve again")
	}
}

func TestGroundingTierThreshold(t *testing.T) {
	tests := []struct {
		tier GroundingTier
		want float64
	}{
		{GroundingHigh, 0.75},
		{GroundingBalanced, 0.70},
		{GroundingExploratory, 0.65},
		{GroundingTier("unknown"), 0.70},
	}
	for _, tt := range tests {
		if got := tt.tier.Threshold(); got != tt.want {
			t.Errorf("Threshold(%s) = %f, want %f", tt.tier, got, tt.want)
		}
	}
}
