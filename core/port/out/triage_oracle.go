package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// ClassifyRequest carries message text plus optional grounding context to the
// classification oracle.
type ClassifyRequest struct {
	Subject string
	Body    string
	From    string
	// Context holds retrieved knowledge excerpts the oracle must ground its
	// category decision in. Empty means classify ungrounded.
	Context []string
}

// ClassifyResponse mirrors domain.ClassificationResult at the oracle
// boundary; the service layer converts and annotates it.
type ClassifyResponse struct {
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	Priority   string `json:"priority"`
	Reasoning  string `json:"reasoning"`
}

// ClassificationOracle maps message text to an intent category.
type ClassificationOracle interface {
	Classify(ctx context.Context, req *ClassifyRequest) (*ClassifyResponse, error)
}

// EmbeddingOracle turns text into a fixed-length vector.
type EmbeddingOracle interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SentimentOracle scores emotional polarity of text.
type SentimentOracle interface {
	Analyze(ctx context.Context, text string) (*domain.SentimentAssessment, error)
}

// ModerationResult reports whether outgoing content cleared moderation.
type ModerationResult struct {
	Approved bool
	Reason   string
}

// ModerationOracle validates proposed outgoing content.
type ModerationOracle interface {
	Validate(ctx context.Context, text string, accountID uuid.UUID) (*ModerationResult, error)
}

// BrandVoiceOracle checks outgoing text against account guidelines.
type BrandVoiceOracle interface {
	CheckVoice(ctx context.Context, text, guidelines string) (*ModerationResult, error)
}

// OrderInfo is the commerce collaborator's view of an order.
type OrderInfo struct {
	OrderID        string
	Status         string
	TrackingNumber string
	Carrier        string
	TrackingURL    string
	Total          float64
	Currency       string
	OrderedAt      time.Time
	EstimatedAt    *time.Time
}

// CommerceLookup queries live order data from the merchant's commerce
// platform. Read-only; safe to retry.
type CommerceLookup interface {
	LookupOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*OrderInfo, error)
}

// FulfillmentService is the warehouse collaborator used by the cancellation
// and address-change sagas.
type FulfillmentService interface {
	// HoldShipment reserves the order against further fulfillment steps.
	HoldShipment(ctx context.Context, accountID uuid.UUID, orderID string) error
	// ReleaseShipment compensates a hold when the saga aborts.
	ReleaseShipment(ctx context.Context, accountID uuid.UUID, orderID string) error
	// CancelOrder finalizes a cancellation for a held order.
	CancelOrder(ctx context.Context, accountID uuid.UUID, orderID string) error
	// UpdateAddress rewrites the shipping address for a held order.
	UpdateAddress(ctx context.Context, accountID uuid.UUID, orderID, address string) error
}

// DeliveryChannel sends a reply through the account's own connected mailbox.
// Sends are never retried automatically.
type DeliveryChannel interface {
	Send(ctx context.Context, accountID uuid.UUID, to, subject, body string) error
}
