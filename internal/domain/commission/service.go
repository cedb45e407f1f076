package commission

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateSource yields an affiliate's commission rate: a custom override when one
// is set, otherwise the platform default.
type RateSource interface {
	CommissionRate(ctx context.Context, affiliateID string) (decimal.Decimal, error)
}

// EventPublisher announces commission lifecycle changes.
type EventPublisher interface {
	PublishCommissionStatus(commissionID, affiliateID string, status string) error
}

// Config holds the commission timing rules.
type Config struct {
	// HoldingPeriod is how long a pending commission waits before automatic
	// approval, matching the platform's refund-eligibility window.
	HoldingPeriod time.Duration
}

// Service manages commission creation and status transitions.
type Service struct {
	repo   Repository
	rates  RateSource
	events EventPublisher
	cfg    Config
	lg     *zap.Logger
	now    func() time.Time
}

// NewService creates a commission Service.
func NewService(repo Repository, rates RateSource, events EventPublisher, cfg Config, lg *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		rates:  rates,
		events: events,
		cfg:    cfg,
		lg:     lg,
		now:    time.Now,
	}
}

// RecordForPurchase creates a pending commission for a referred purchase.
// The rate applied is frozen into the record.
func (s *Service) RecordForPurchase(ctx context.Context, affiliateID, purchaseID, authorID string, amount decimal.Decimal) error {
	rate, err := s.rates.CommissionRate(ctx, affiliateID)
	if err != nil {
		return errors.Wrap(err, "resolve commission rate")
	}
	commissionAmount, err := Calculate(amount, rate)
	if err != nil {
		return err
	}

	c := &Commission{
		ID:             uuid.New().String(),
		AffiliateID:    affiliateID,
		PurchaseID:     purchaseID,
		AuthorID:       authorID,
		PurchaseAmount: amount,
		Rate:           rate,
		Amount:         commissionAmount,
		Status:         StatusPending,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return errors.Wrap(err, "create commission")
	}
	return s.events.PublishCommissionStatus(c.ID, c.AffiliateID, string(c.Status))
}

// Apply runs one state-machine event against a stored commission and persists
// the result. Terminal or undefined transitions return ErrInvalidTransition.
func (s *Service) Apply(ctx context.Context, id string, ev Event) (*Commission, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, changed := Next(c.Status, ev)
	if !changed {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s on %s", ev, c.Status)
	}

	at := s.now()
	if err := s.repo.SetStatus(ctx, c.ID, next, at); err != nil {
		return nil, errors.Wrap(err, "set commission status")
	}
	c.Status = next
	switch next {
	case StatusApproved:
		c.ApprovedAt = &at
	case StatusPaid:
		c.PaidAt = &at
	case StatusCancelled:
		c.CancelledAt = &at
	}

	if err := s.events.PublishCommissionStatus(c.ID, c.AffiliateID, string(next)); err != nil {
		return nil, errors.Wrap(err, "publish commission status")
	}
	return c, nil
}

// ApproveMatured promotes every pending commission whose holding period has
// elapsed. Called periodically by the background sweeper; failures on one
// commission do not block the rest.
func (s *Service) ApproveMatured(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.HoldingPeriod)
	matured, err := s.repo.ListPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "list matured commissions")
	}

	approved := 0
	for _, c := range matured {
		if _, err := s.Apply(ctx, c.ID, EventHoldingPeriodElapsed); err != nil {
			s.lg.Warn("approve matured commission",
				zap.String("commission_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		approved++
	}
	return approved, nil
}

// ListByAffiliate returns an affiliate's commissions, newest first.
func (s *Service) ListByAffiliate(ctx context.Context, affiliateID string) ([]Commission, error) {
	return s.repo.ListByAffiliate(ctx, affiliateID)
}

// ApprovedUnpaidTotal returns the sum an affiliate could request as a payout.
func (s *Service) ApprovedUnpaidTotal(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	return s.repo.SumApprovedUnpaid(ctx, affiliateID)
}
