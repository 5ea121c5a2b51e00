package worker

import (
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	m := NewMessage(JobIngestMessage, map[string]any{"external_id": "x-1"})

	if m.ID == "" {
		t.Error("ID is empty")
	}
	if m.Type != JobIngestMessage {
		t.Errorf("Type = %q, want %q", m.Type, JobIngestMessage)
	}
	if m.Priority != PriorityNormal {
		t.Errorf("Priority = %d, want normal", m.Priority)
	}
	if m.Retries != 0 {
		t.Errorf("Retries = %d, want 0", m.Retries)
	}
}

func TestIsPriority(t *testing.T) {
	tests := []struct {
		priority Priority
		want     bool
	}{
		{PriorityLow, false},
		{PriorityNormal, false},
		{PriorityHigh, true},
		{PriorityCritical, true},
	}

	for _, tt := range tests {
		m := NewPriorityMessage(JobApprovalResolve, nil, tt.priority)
		if got := m.IsPriority(); got != tt.want {
			t.Errorf("IsPriority(%d) = %v, want %v", tt.priority, got, tt.want)
		}
	}
}

func TestParsePayload(t *testing.T) {
	received := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMessage(JobIngestMessage, map[string]any{
		"account_id":  "9f4a2d1c-0000-0000-0000-000000000001",
		"external_id": "gmail-abc123",
		"from_email":  "customer@shop.com",
		"subject":     "where is my order",
		"received_at": received.Format(time.RFC3339),
		"source":      "catchup",
	})

	payload, err := ParsePayload[IngestPayload](m)
	if err != nil {
		t.Fatalf("ParsePayload() error: %v", err)
	}
	if payload.ExternalID != "gmail-abc123" {
		t.Errorf("ExternalID = %q", payload.ExternalID)
	}
	if payload.Source != "catchup" {
		t.Errorf("Source = %q", payload.Source)
	}
	if !payload.ReceivedAt.Equal(received) {
		t.Errorf("ReceivedAt = %v, want %v", payload.ReceivedAt, received)
	}
}

func TestParsePayloadWrongShape(t *testing.T) {
	m := NewMessage(JobApprovalResolve, map[string]any{
		"approval_id": "not-a-number",
	})

	if _, err := ParsePayload[ApprovalResolvePayload](m); err == nil {
		t.Error("expected error for mistyped payload field")
	}
}
