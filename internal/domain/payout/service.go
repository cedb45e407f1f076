package payout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceSource yields the affiliate's approved unpaid commission total.
type BalanceSource interface {
	ApprovedUnpaidTotal(ctx context.Context, affiliateID string) (decimal.Decimal, error)
}

// EventPublisher announces completed payouts.
type EventPublisher interface {
	PublishPayoutCompleted(payoutID, affiliateID string, amount decimal.Decimal, transactionID string) error
}

// Service manages payout requests.
type Service struct {
	repo     Repository
	balances BalanceSource
	events   EventPublisher
	now      func() time.Time
}

// NewService creates a payout Service.
func NewService(repo Repository, balances BalanceSource, events EventPublisher) *Service {
	return &Service{
		repo:     repo,
		balances: balances,
		events:   events,
		now:      time.Now,
	}
}

// RequestPayout validates the amount against the affiliate's approved unpaid
// total at request time and records the request. Payment details are masked
// before they reach storage.
func (s *Service) RequestPayout(ctx context.Context, affiliateID string, amount decimal.Decimal, method, details string) (*Request, error) {
	available, err := s.balances.ApprovedUnpaidTotal(ctx, affiliateID)
	if err != nil {
		return nil, errors.Wrap(err, "approved unpaid total")
	}
	if err := ValidateAmount(amount, available); err != nil {
		return nil, err
	}

	r := &Request{
		ID:            uuid.New().String(),
		AffiliateID:   affiliateID,
		Amount:        amount,
		Method:        method,
		MaskedDetails: MaskDetails(details),
		Status:        StatusRequested,
		RequestedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create payout request")
	}
	return r, nil
}

// Resolve applies an admin action. Completing a payout records the external
// transaction id, marks the covered commissions paid, and publishes the event.
func (s *Service) Resolve(ctx context.Context, id string, action Action, transactionID string) (*Request, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, ok := Next(r.Status, action)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s on %s", action, r.Status)
	}
	if action == ActionComplete && transactionID == "" {
		return nil, ErrTransactionIDRequired
	}

	at := s.now()
	if err := s.repo.SetStatus(ctx, r.ID, next, transactionID, at); err != nil {
		return nil, errors.Wrap(err, "set payout status")
	}
	r.Status = next
	r.TransactionID = transactionID
	r.ResolvedAt = &at

	if next == StatusCompleted {
		if err := s.repo.MarkCommissionsPaid(ctx, r.AffiliateID, r.ID, r.Amount); err != nil {
			return nil, errors.Wrap(err, "mark commissions paid")
		}
		if err := s.events.PublishPayoutCompleted(r.ID, r.AffiliateID, r.Amount, transactionID); err != nil {
			return nil, errors.Wrap(err, "publish payout completed")
		}
	}
	return r, nil
}

// ListByAffiliate returns an affiliate's payout requests, newest first.
func (s *Service) ListByAffiliate(ctx context.Context, affiliateID string) ([]Request, error) {
	return s.repo.ListByAffiliate(ctx, affiliateID)
}
