package payout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is a payout request's lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var (
	// ErrNotFound is returned when a payout request does not exist.
	ErrNotFound = errors.New("payout request not found")
	// ErrAmountExceedsBalance is returned when the requested amount exceeds
	// the affiliate's approved unpaid commission total.
	ErrAmountExceedsBalance = errors.New("payout amount exceeds approved commission balance")
	// ErrNonPositiveAmount is returned for zero or negative payout amounts.
	ErrNonPositiveAmount = errors.New("payout amount must be positive")
	// ErrInvalidTransition is returned for admin actions not valid in the
	// request's current status.
	ErrInvalidTransition = errors.New("invalid payout status transition")
	// ErrTransactionIDRequired is returned when completing a payout without an
	// external transaction reference.
	ErrTransactionIDRequired = errors.New("transaction id required to complete payout")
)

// Request is an affiliate's withdrawal request. Created by affiliate action;
// mutated by admin action only.
type Request struct {
	ID            string
	AffiliateID   string
	Amount        decimal.Decimal
	Method        string
	MaskedDetails string
	Status        Status
	TransactionID string
	RequestedAt   time.Time
	ResolvedAt    *time.Time
}

// ValidateAmount enforces the request-time invariant: the amount is positive
// and does not exceed the affiliate's approved unpaid commission total.
func ValidateAmount(requested, approvedUnpaid decimal.Decimal) error {
	if requested.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}
	if requested.GreaterThan(approvedUnpaid) {
		return ErrAmountExceedsBalance
	}
	return nil
}

// Next returns the status after an admin action, or false when the action is
// not valid for the current status.
func Next(current Status, action Action) (Status, bool) {
	switch current {
	case StatusRequested:
		switch action {
		case ActionApprove:
			return StatusApproved, true
		case ActionReject:
			return StatusRejected, true
		}
	case StatusApproved:
		if action == ActionComplete {
			return StatusCompleted, true
		}
	}
	return current, false
}

// Action is an admin operation on a payout request.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
)

// MaskDetails keeps only the last four characters of a payment detail string,
// padding the rest with asterisks. Full details never reach storage.
func MaskDetails(details string) string {
	trimmed := strings.TrimSpace(details)
	if len(trimmed) <= 4 {
		return strings.Repeat("*", len(trimmed))
	}
	return strings.Repeat("*", len(trimmed)-4) + trimmed[len(trimmed)-4:]
}

// Repository defines persistence for payout requests.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	SetStatus(ctx context.Context, id string, status Status, transactionID string, at time.Time) error
	ListByAffiliate(ctx context.Context, affiliateID string) ([]Request, error)
	// MarkCommissionsPaid marks the affiliate's oldest approved commissions as
	// paid, up to the payout amount, linking them to the payout.
	MarkCommissionsPaid(ctx context.Context, affiliateID, payoutID string, upTo decimal.Decimal) error
}
