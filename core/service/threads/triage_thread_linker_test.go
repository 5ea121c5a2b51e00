package threads

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
)

type stubThreadRepo struct {
	thread    *domain.Thread
	getErr    error
	appendErr error
	count     int
	countErr  error
	first     bool
	firstErr  error

	gotSubject string
	gotA, gotB string
	appended   []int64
}

func (s *stubThreadRepo) GetOrCreate(_ context.Context, _ uuid.UUID, subject, a, b string) (*domain.Thread, error) {
	s.gotSubject, s.gotA, s.gotB = subject, a, b
	return s.thread, s.getErr
}

func (s *stubThreadRepo) AppendMessage(_ context.Context, _ int64, messageID int64) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, messageID)
	return nil
}

func (s *stubThreadRepo) MessageCount(_ context.Context, _ int64) (int, error) {
	return s.count, s.countErr
}

func (s *stubThreadRepo) IsFirstMessage(_ context.Context, _, _ int64) (bool, error) {
	return s.first, s.firstErr
}

func TestLink(t *testing.T) {
	msg := &domain.Message{
		ID:        7,
		AccountID: uuid.New(),
		FromEmail: "Customer@Shop.COM",
		ToEmail:   "support@acme.com",
		Subject:   "Re: RE: Fwd: my order",
	}

	repo := &stubThreadRepo{
		thread: &domain.Thread{ID: 3, MessageCount: 1},
		count:  2,
		first:  false,
	}
	l := NewLinker(repo, zerolog.Nop())

	got, err := l.Link(context.Background(), msg)
	if err != nil {
		t.Fatalf("Link() error: %v", err)
	}

	if !got.Linked {
		t.Error("Linked = false")
	}
	if got.FirstMessage {
		t.Error("FirstMessage = true for second message")
	}
	if got.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", got.MessageCount)
	}
	if repo.gotSubject != "my order" {
		t.Errorf("normalized subject = %q, want %q", repo.gotSubject, "my order")
	}
	// Participants are lowercased and canonically ordered.
	if repo.gotA != "customer@shop.com" || repo.gotB != "support@acme.com" {
		t.Errorf("participants = %q, %q", repo.gotA, repo.gotB)
	}
	if len(repo.appended) != 1 || repo.appended[0] != 7 {
		t.Errorf("appended = %v, want [7]", repo.appended)
	}
}

func TestLinkStorageFailure(t *testing.T) {
	tests := []struct {
		name string
		repo *stubThreadRepo
	}{
		{"lookup fails", &stubThreadRepo{getErr: errors.New("connection refused")}},
		{"append fails", &stubThreadRepo{thread: &domain.Thread{ID: 1}, appendErr: errors.New("deadlock")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLinker(tt.repo, zerolog.Nop())
			got, err := l.Link(context.Background(), &domain.Message{ID: 1, Subject: "help"})

			if err == nil {
				t.Error("expected link failure error")
			}
			// The result is still usable: treated as a first message.
			if got == nil {
				t.Fatal("result is nil on failure")
			}
			if got.Linked {
				t.Error("Linked = true on storage failure")
			}
			if !got.FirstMessage || got.MessageCount != 1 {
				t.Errorf("got %+v, want first-message fallback", got)
			}
		})
	}
}

func TestLinkCountFallback(t *testing.T) {
	repo := &stubThreadRepo{
		thread:   &domain.Thread{ID: 3, MessageCount: 4},
		countErr: errors.New("timeout"),
		firstErr: errors.New("timeout"),
	}
	l := NewLinker(repo, zerolog.Nop())

	got, err := l.Link(context.Background(), &domain.Message{ID: 9, Subject: "order"})
	if err != nil {
		t.Fatalf("Link() error: %v", err)
	}
	// Count falls back to the thread's stored count plus this message.
	if got.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", got.MessageCount)
	}
	if got.FirstMessage {
		t.Error("FirstMessage = true, count fallback says otherwise")
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Order question", "Order question"},
		{"Re: Order question", "Order question"},
		{"RE: re: FWD: Order question", "Order question"},
		{"Fw: refund", "refund"},
		{"  spaced   out  subject ", "spaced out subject"},
		{"", ""},
		{"Re:", ""},
	}

	for _, tt := range tests {
		if got := domain.NormalizeSubject(tt.in); got != tt.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParticipantPair(t *testing.T) {
	a1, b1 := domain.ParticipantPair("alice@a.com", "bob@b.com")
	a2, b2 := domain.ParticipantPair("Bob@B.com", " alice@a.com ")
	if a1 != a2 || b1 != b2 {
		t.Errorf("pair not canonical: (%q,%q) vs (%q,%q)", a1, b1, a2, b2)
	}
	if a1 != "alice@a.com" || b1 != "bob@b.com" {
		t.Errorf("pair = %q, %q", a1, b1)
	}
}
