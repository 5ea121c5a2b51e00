package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Automation Rules
// =============================================================================

// AutomationRule is a per-account, user-configured auto-responder rule. Rule
// resolution is the gating mechanism for automated replies: no active rule
// (or generic fallback) means the message escalates to a human.
type AutomationRule struct {
	ID          int64          `json:"id"`
	AccountID   uuid.UUID      `json:"account_id"`
	Name        string         `json:"name"`
	Category    IntentCategory `json:"category"`
	Generic     bool           `json:"generic"` // fallback rule for low-confidence matches
	Active      bool           `json:"active"`
	ReplyPrompt string         `json:"reply_prompt"` // handler guidance / template seed

	// Refund parameters (promo-refund handlers).
	RefundPercent float64 `json:"refund_percent,omitempty"` // 0 when unset
	RefundCap     float64 `json:"refund_cap,omitempty"`     // max amount, 0 = uncapped
	RefundFixed   float64 `json:"refund_fixed,omitempty"`   // fixed amount, wins over percent

	Position  int       `json:"position"`
	HitCount  int       `json:"hit_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroundingTier selects the similarity threshold for knowledge retrieval.
type GroundingTier string

const (
	GroundingHigh        GroundingTier = "high"
	GroundingBalanced    GroundingTier = "balanced"
	GroundingExploratory GroundingTier = "exploratory"
)

// Threshold returns the minimum cosine similarity for an accepted source.
func (t GroundingTier) Threshold() float64 {
	switch t {
	case GroundingHigh:
		return 0.75
	case GroundingExploratory:
		return 0.65
	default:
		return 0.70
	}
}

// AccountSettings holds per-account pipeline configuration.
type AccountSettings struct {
	AccountID        uuid.UUID     `json:"account_id"`
	RequireApproval  bool          `json:"require_approval"` // default true
	BrandVoice       string        `json:"brand_voice"`      // validator guidelines
	GroundingTier    GroundingTier `json:"grounding_tier"`
	HighValueSenders []string      `json:"high_value_senders"`
	SenderEmail      string        `json:"sender_email"` // connected mailbox address
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// DefaultAccountSettings applies safe defaults for accounts with no row.
func DefaultAccountSettings(accountID uuid.UUID) *AccountSettings {
	return &AccountSettings{
		AccountID:       accountID,
		RequireApproval: true,
		GroundingTier:   GroundingBalanced,
	}
}

// IsHighValueSender reports whether the address is flagged on the account.
func (s *AccountSettings) IsHighValueSender(email string) bool {
	for _, v := range s.HighValueSenders {
		if strings.EqualFold(v, email) {
			return true
		}
	}
	return false
}
