package domain

// IntentCategory is the closed set of support intents the pipeline understands.
// Routing and dispatch match exhaustively on it; an unrecognized string parses
// to CategoryGeneral rather than flowing through untyped.
type IntentCategory string

const (
	CategoryOrderStatus        IntentCategory = "order-status"
	CategoryPromoRefund        IntentCategory = "promo-refund"
	CategoryOrderCancellation  IntentCategory = "order-cancellation"
	CategoryReturnRequest      IntentCategory = "return-request"
	CategorySubscriptionChange IntentCategory = "subscription-change"
	CategorySubscriptionCancel IntentCategory = "subscription-cancel"
	CategoryPaymentIssue       IntentCategory = "payment-issue"
	CategoryAddressChange      IntentCategory = "address-change"
	CategoryProductQuestion    IntentCategory = "product-question"
	CategoryEscalation         IntentCategory = "escalation"
	CategoryGeneral            IntentCategory = "general"
)

// AllCategories lists every valid intent, in prompt order.
func AllCategories() []IntentCategory {
	return []IntentCategory{
		CategoryOrderStatus,
		CategoryPromoRefund,
		CategoryOrderCancellation,
		CategoryReturnRequest,
		CategorySubscriptionChange,
		CategorySubscriptionCancel,
		CategoryPaymentIssue,
		CategoryAddressChange,
		CategoryProductQuestion,
		CategoryEscalation,
		CategoryGeneral,
	}
}

// IsValid reports whether c is a member of the closed set.
func (c IntentCategory) IsValid() bool {
	switch c {
	case CategoryOrderStatus, CategoryPromoRefund, CategoryOrderCancellation,
		CategoryReturnRequest, CategorySubscriptionChange, CategorySubscriptionCancel,
		CategoryPaymentIssue, CategoryAddressChange, CategoryProductQuestion,
		CategoryEscalation, CategoryGeneral:
		return true
	}
	return false
}

// ParseIntentCategory maps a raw string to a valid category, falling back to
// general for anything outside the closed set.
func ParseIntentCategory(s string) IntentCategory {
	c := IntentCategory(s)
	if c.IsValid() {
		return c
	}
	return CategoryGeneral
}

// ClassificationResult is the classifier's verdict for one message.
// Immutable once produced.
type ClassificationResult struct {
	Category   IntentCategory `json:"category"`
	Confidence int            `json:"confidence"` // 0-100
	Priority   Priority       `json:"priority"`
	Reasoning  string         `json:"reasoning"`
	Grounded   bool           `json:"grounded"` // decision backed by retrieved knowledge
	Degraded   bool           `json:"degraded"` // oracle failure fallback
}

// SentimentLabel is the dominant emotional polarity of a message.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// SentimentAssessment is a derived value computed per message; it is not
// persisted independently of the message it scored.
type SentimentAssessment struct {
	Label      SentimentLabel         `json:"label"`
	Scores     map[SentimentLabel]int `json:"scores"`     // 0-100 per polarity
	Confidence int                    `json:"confidence"` // 0-100
}

// Negative returns the negative polarity score, 0 when absent.
func (a *SentimentAssessment) Negative() int {
	if a == nil {
		return 0
	}
	return a.Scores[SentimentNegative]
}

// Positive returns the positive polarity score, 0 when absent.
func (a *SentimentAssessment) Positive() int {
	if a == nil {
		return 0
	}
	return a.Scores[SentimentPositive]
}

// Disposition is the routing outcome for a message.
type Disposition string

const (
	DispositionAutomate Disposition = "automate"
	DispositionApprove  Disposition = "approve"
	DispositionEscalate Disposition = "escalate"
)

// RoutingDecision is a deterministic pure function result of classification,
// sentiment and the applicable rule set.
type RoutingDecision struct {
	Disposition Disposition     `json:"disposition"`
	Priority    Priority        `json:"priority"`
	Reason      string          `json:"reason"`
	Rule        *AutomationRule `json:"-"` // resolved rule, nil when escalating
}
