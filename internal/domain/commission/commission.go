package commission

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is a commission's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Event drives the commission state machine.
type Event string

const (
	EventHoldingPeriodElapsed Event = "holding_period_elapsed"
	EventRefunded             Event = "refunded"
	EventAdminApprove         Event = "admin_approve"
	EventAdminPay             Event = "admin_pay"
	EventAdminCancel          Event = "admin_cancel"
)

var (
	// ErrNotFound is returned when a commission does not exist.
	ErrNotFound = errors.New("commission not found")
	// ErrInvalidTransition is returned when an event is not valid for the
	// commission's current status.
	ErrInvalidTransition = errors.New("invalid commission status transition")
	// ErrMalformedInput signals negative amounts or rates; a precondition
	// violation, not a business-rule failure.
	ErrMalformedInput = errors.New("malformed commission input")
)

var hundred = decimal.NewFromInt(100)

// Commission is an affiliate's earning on one referred credit purchase.
// Amount = PurchaseAmount × Rate / 100, fixed at creation; immutable once paid.
type Commission struct {
	ID            string
	AffiliateID   string
	PurchaseID    string
	AuthorID      string
	PurchaseAmount decimal.Decimal
	Rate          decimal.Decimal
	Amount        decimal.Decimal
	Status        Status
	CreatedAt     time.Time
	ApprovedAt    *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
}

// Calculate returns purchase amount × rate / 100 rounded to 2 decimal places.
func Calculate(amount, rate decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Decimal{}, errors.Wrap(ErrMalformedInput, "negative purchase amount")
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Decimal{}, errors.Wrap(ErrMalformedInput, "rate out of [0, 100]")
	}
	return amount.Mul(rate).Div(hundred).Round(2), nil
}

// Next applies an event to a status. Terminal states (paid, cancelled) absorb
// every event: the returned status equals current and changed is false. An
// undefined (status, event) pair likewise returns the current status unchanged.
func Next(current Status, ev Event) (next Status, changed bool) {
	switch current {
	case StatusPending:
		switch ev {
		case EventHoldingPeriodElapsed, EventAdminApprove:
			return StatusApproved, true
		case EventRefunded, EventAdminCancel:
			return StatusCancelled, true
		}
	case StatusApproved:
		switch ev {
		case EventAdminPay:
			return StatusPaid, true
		case EventRefunded, EventAdminCancel:
			return StatusCancelled, true
		}
	}
	return current, false
}

// Repository defines persistence for affiliate commissions.
type Repository interface {
	Create(ctx context.Context, c *Commission) error
	GetByID(ctx context.Context, id string) (*Commission, error)
	SetStatus(ctx context.Context, id string, status Status, at time.Time) error
	ListByAffiliate(ctx context.Context, affiliateID string) ([]Commission, error)
	// ListPendingCreatedBefore returns pending commissions whose holding
	// period has elapsed, i.e. created at or before the cutoff.
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]Commission, error)
	SumApprovedUnpaid(ctx context.Context, affiliateID string) (decimal.Decimal, error)
}
