// Package events publishes BookProof lifecycle events to Kafka. Handlers and
// services depend on the Publisher interface; deployments without brokers get
// the noop implementation.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types carried in the envelope.
const (
	TypePurchaseCompleted = "purchase.completed"
	TypeCommissionStatus  = "commission.status_changed"
	TypePayoutCompleted   = "payout.completed"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

func newEnvelope(eventType string, payload any) Envelope {
	return Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

// PurchaseCompleted is emitted when a credit purchase's payment confirms.
type PurchaseCompleted struct {
	PurchaseID string `json:"purchase_id"`
	AuthorID   string `json:"author_id"`
	Amount     string `json:"amount"`
	Credits    int64  `json:"credits"`
}

// CommissionStatus is emitted on every commission state transition.
type CommissionStatus struct {
	CommissionID string `json:"commission_id"`
	AffiliateID  string `json:"affiliate_id"`
	Status       string `json:"status"`
}

// PayoutCompleted is emitted when an admin completes a payout.
type PayoutCompleted struct {
	PayoutID      string `json:"payout_id"`
	AffiliateID   string `json:"affiliate_id"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transaction_id"`
}

// Publisher is the event sink the domain services write to.
type Publisher interface {
	PublishPurchaseCompleted(purchaseID, authorID string, amount decimal.Decimal, credits int64) error
	PublishCommissionStatus(commissionID, affiliateID string, status string) error
	PublishPayoutCompleted(payoutID, affiliateID string, amount decimal.Decimal, transactionID string) error
	Close() error
}

// Noop discards all events. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishPurchaseCompleted(string, string, decimal.Decimal, int64) error { return nil }
func (Noop) PublishCommissionStatus(string, string, string) error                  { return nil }
func (Noop) PublishPayoutCompleted(string, string, decimal.Decimal, string) error  { return nil }
func (Noop) Close() error                                                          { return nil }
