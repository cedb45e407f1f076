package credit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the billing gateway's view of a purchase.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

var (
	// ErrPurchaseNotFound is returned when a purchase does not exist or does
	// not belong to the acting author.
	ErrPurchaseNotFound = errors.New("credit purchase not found")
	// ErrActivationWindowClosed is returned when activating a purchase after
	// its activation deadline. Credits are forfeited, not recoverable.
	ErrActivationWindowClosed = errors.New("activation window closed")
	// ErrAlreadyActivated is returned when activating a purchase twice.
	ErrAlreadyActivated = errors.New("purchase already activated")
	// ErrPaymentNotConfirmed is returned when acting on a purchase whose
	// payment has not been confirmed.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
)

// Purchase is one historical credit ledger entry. Never deleted; mutated only
// by activation and payment status changes.
type Purchase struct {
	ID                 string
	AuthorID           string
	Credits            int64
	AmountPaid         decimal.Decimal
	Currency           string
	CouponCode         string
	Discount           decimal.Decimal
	PurchasedAt        time.Time
	ExpiresAt          time.Time
	ActivationDeadline time.Time
	Activated          bool
	ActivatedAt        *time.Time
	PaymentStatus      PaymentStatus
}

// available reports whether the purchase's credits count toward the author's
// balance at the given time: activated, payment-confirmed, and unexpired.
// A purchase never activated inside its window is excluded regardless of
// remaining validity (explicit forfeiture rule).
func (p *Purchase) available(now time.Time) bool {
	return p.Activated && p.PaymentStatus == PaymentConfirmed && now.Before(p.ExpiresAt)
}

// UsageRecord tracks credits consumed from a specific purchase.
type UsageRecord struct {
	ID         string
	PurchaseID string
	Credits    int64
	UsedAt     time.Time
}

// Balance summarizes an author's credit ledger.
type Balance struct {
	TotalPurchased int64
	TotalUsed      int64
	Available      int64
	ExpiringCount  int
	NextExpiration *time.Time
}

// ComputeBalance folds an author's purchase and usage records into a Balance.
// lookAhead controls the expiring-soon window. Pure: no I/O, no clock.
func ComputeBalance(purchases []Purchase, usages []UsageRecord, lookAhead time.Duration, now time.Time) Balance {
	usedPer := make(map[string]int64, len(usages))
	var b Balance
	for _, u := range usages {
		usedPer[u.PurchaseID] += u.Credits
		b.TotalUsed += u.Credits
	}

	for i := range purchases {
		p := &purchases[i]
		if p.PaymentStatus == PaymentConfirmed {
			b.TotalPurchased += p.Credits
		}
		if !p.available(now) {
			continue
		}

		remaining := p.Credits - usedPer[p.ID]
		if remaining > 0 {
			b.Available += remaining
		}
		if p.ExpiresAt.Sub(now) <= lookAhead {
			b.ExpiringCount++
		}
		if b.NextExpiration == nil || p.ExpiresAt.Before(*b.NextExpiration) {
			exp := p.ExpiresAt
			b.NextExpiration = &exp
		}
	}
	return b
}

// Repository defines persistence for the credit ledger.
type Repository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id string) (*Purchase, error)
	SetPaymentStatus(ctx context.Context, id string, status PaymentStatus) error
	MarkActivated(ctx context.Context, id string, at time.Time) error
	ListByAuthor(ctx context.Context, authorID string) ([]Purchase, error)
	ListUsageByAuthor(ctx context.Context, authorID string) ([]UsageRecord, error)
}
