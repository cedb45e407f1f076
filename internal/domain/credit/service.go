package credit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/coupon"
)

// CouponService is the slice of the coupon service checkout needs.
type CouponService interface {
	Evaluate(ctx context.Context, code, userID string, amount decimal.Decimal, credits int, kind coupon.PurchaseKind) (coupon.Evaluation, error)
	Redeem(ctx context.Context, code, userID, purchaseID string, discount decimal.Decimal) error
}

// CommissionRecorder creates an affiliate commission for a referred purchase.
type CommissionRecorder interface {
	RecordForPurchase(ctx context.Context, affiliateID, purchaseID, authorID string, amount decimal.Decimal) error
}

// ReferrerFinder resolves the affiliate who referred an author, if any.
// Returns ("", nil) when the author was not referred.
type ReferrerFinder interface {
	ReferrerOf(ctx context.Context, authorID string) (string, error)
}

// EventPublisher announces confirmed purchases to downstream consumers.
type EventPublisher interface {
	PublishPurchaseCompleted(purchaseID, authorID string, amount decimal.Decimal, credits int64) error
}

// ErrCouponRejected wraps the validation reason when a checkout names an
// invalid coupon. The reason travels as data to the HTTP layer.
type ErrCouponRejected struct {
	Reason coupon.Reason
}

func (e *ErrCouponRejected) Error() string {
	return "coupon rejected: " + string(e.Reason)
}

// Config holds the ledger timing rules.
type Config struct {
	// Validity is how long purchased credits stay usable.
	Validity time.Duration
	// ActivationWindow is how long the author has to activate a purchase
	// before its credits are forfeited.
	ActivationWindow time.Duration
	// ExpiryLookAhead is the expiring-soon window reported in balances.
	ExpiryLookAhead time.Duration
}

// Service implements the credit ledger operations around the pure accounting.
type Service struct {
	repo        Repository
	coupons     CouponService
	commissions CommissionRecorder
	referrers   ReferrerFinder
	events      EventPublisher
	cfg         Config
	now         func() time.Time
}

// NewService creates a credit Service.
func NewService(
	repo Repository,
	coupons CouponService,
	commissions CommissionRecorder,
	referrers ReferrerFinder,
	events EventPublisher,
	cfg Config,
) *Service {
	return &Service{
		repo:        repo,
		coupons:     coupons,
		commissions: commissions,
		referrers:   referrers,
		events:      events,
		cfg:         cfg,
		now:         time.Now,
	}
}

// CheckoutRequest holds the input for starting a credit purchase.
type CheckoutRequest struct {
	AuthorID   string
	Credits    int64
	Amount     decimal.Decimal
	Currency   string
	CouponCode string
}

// Checkout prices the purchase (applying a coupon when provided) and records
// it as payment-pending. The coupon is only evaluated here; redemption waits
// for payment confirmation.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Purchase, error) {
	if req.Credits <= 0 {
		return nil, errors.New("credits must be greater than 0")
	}
	if req.Amount.IsNegative() {
		return nil, errors.New("amount must be non-negative")
	}

	price := req.Amount
	discount := decimal.Zero
	if req.CouponCode != "" {
		ev, err := s.coupons.Evaluate(ctx, req.CouponCode, req.AuthorID, req.Amount, int(req.Credits), coupon.KindCredits)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate coupon")
		}
		if !ev.Valid {
			return nil, &ErrCouponRejected{Reason: ev.Reason}
		}
		price = ev.FinalPrice
		discount = ev.Discount
	}

	now := s.now()
	p := &Purchase{
		ID:                 uuid.New().String(),
		AuthorID:           req.AuthorID,
		Credits:            req.Credits,
		AmountPaid:         price,
		Currency:           req.Currency,
		CouponCode:         req.CouponCode,
		Discount:           discount,
		PurchasedAt:        now,
		ExpiresAt:          now.Add(s.cfg.Validity),
		ActivationDeadline: now.Add(s.cfg.ActivationWindow),
		PaymentStatus:      PaymentPending,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create purchase")
	}
	return p, nil
}

// ConfirmPayment marks the purchase confirmed, redeems the coupon it was
// priced with, records the affiliate commission when the author was referred,
// and publishes the completion event.
func (s *Service) ConfirmPayment(ctx context.Context, purchaseID string) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus == PaymentConfirmed {
		return p, nil // idempotent confirm
	}

	if err := s.repo.SetPaymentStatus(ctx, p.ID, PaymentConfirmed); err != nil {
		return nil, errors.Wrap(err, "confirm payment")
	}
	p.PaymentStatus = PaymentConfirmed

	if p.CouponCode != "" {
		if err := s.coupons.Redeem(ctx, p.CouponCode, p.AuthorID, p.ID, p.Discount); err != nil {
			// Duplicate redemption means a concurrent confirm already did the
			// work; any other failure aborts the confirmation flow.
			if !errors.Is(err, coupon.ErrAlreadyRedeemed) {
				return nil, errors.Wrap(err, "redeem coupon")
			}
		}
	}

	affiliateID, err := s.referrers.ReferrerOf(ctx, p.AuthorID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve referrer")
	}
	if affiliateID != "" {
		if err := s.commissions.RecordForPurchase(ctx, affiliateID, p.ID, p.AuthorID, p.AmountPaid); err != nil {
			return nil, errors.Wrap(err, "record commission")
		}
	}

	if err := s.events.PublishPurchaseCompleted(p.ID, p.AuthorID, p.AmountPaid, p.Credits); err != nil {
		return nil, errors.Wrap(err, "publish purchase completed")
	}
	return p, nil
}

// Activate makes the purchase's credits spendable. Allowed only inside the
// activation window and only for payment-confirmed purchases.
func (s *Service) Activate(ctx context.Context, purchaseID, authorID string) error {
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return err
	}
	if p.AuthorID != authorID {
		return ErrPurchaseNotFound
	}
	if p.Activated {
		return ErrAlreadyActivated
	}
	if p.PaymentStatus != PaymentConfirmed {
		return ErrPaymentNotConfirmed
	}
	now := s.now()
	if now.After(p.ActivationDeadline) {
		return ErrActivationWindowClosed
	}
	return s.repo.MarkActivated(ctx, p.ID, now)
}

// Balance computes the author's current credit balance.
func (s *Service) Balance(ctx context.Context, authorID string) (Balance, error) {
	purchases, err := s.repo.ListByAuthor(ctx, authorID)
	if err != nil {
		return Balance{}, errors.Wrap(err, "list purchases")
	}
	usages, err := s.repo.ListUsageByAuthor(ctx, authorID)
	if err != nil {
		return Balance{}, errors.Wrap(err, "list usage")
	}
	return ComputeBalance(purchases, usages, s.cfg.ExpiryLookAhead, s.now()), nil
}
