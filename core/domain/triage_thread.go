package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Thread groups messages inferred to belong to one conversation. The key is
// the normalized subject plus the unordered participant pair, so a reply from
// either side lands in the same thread.
type Thread struct {
	ID           int64     `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Subject      string    `json:"subject"` // normalized
	ParticipantA string    `json:"participant_a"`
	ParticipantB string    `json:"participant_b"`
	MessageIDs   []int64   `json:"message_ids"` // arrival order
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeSubject strips reply/forward prefixes and collapses whitespace so
// "RE: Re: Fwd: Order question" and "Order question" share a thread key.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			if strings.HasPrefix(lower, prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// ParticipantPair orders two addresses canonically so (a,b) and (b,a) produce
// the same pair.
func ParticipantPair(from, to string) (string, string) {
	a := strings.ToLower(strings.TrimSpace(from))
	b := strings.ToLower(strings.TrimSpace(to))
	if a > b {
		a, b = b, a
	}
	return a, b
}
