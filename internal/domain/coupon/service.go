package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invalidator evicts a cached coupon after its stored state changes.
type Invalidator interface {
	Invalidate(ctx context.Context, code string) error
}

// Service orchestrates coupon evaluation and redemption. Lookups go through
// finder (possibly a cache in front of the repository); mutations and usage
// counts always hit the repository.
type Service struct {
	repo   Repository
	finder Finder
	cache  Invalidator
	now    func() time.Time
}

// NewService creates a coupon Service. finder may be the repository itself or
// a caching wrapper around it; cache may be nil when caching is disabled.
func NewService(repo Repository, finder Finder, cache Invalidator) *Service {
	return &Service{
		repo:   repo,
		finder: finder,
		cache:  cache,
		now:    time.Now,
	}
}

// Evaluate validates a coupon code against the candidate purchase and computes
// the discount. It never mutates usage counters: a missing coupon or any
// failed check comes back as an invalid Evaluation, not an error.
func (s *Service) Evaluate(
	ctx context.Context,
	code, userID string,
	amount decimal.Decimal,
	credits int,
	kind PurchaseKind,
) (Evaluation, error) {
	c, err := s.finder.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid(ReasonNotFound), nil
		}
		return Evaluation{}, errors.Wrap(err, "lookup coupon")
	}

	prior, err := s.repo.CountUserRedemptions(ctx, c.ID, userID)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "count prior redemptions")
	}

	return Evaluate(c, Input{
		PriorUserUses:  prior,
		PurchaseAmount: amount,
		CreditQuantity: credits,
		Kind:           kind,
		Now:            s.now(),
	})
}

// Redeem consumes one use of the coupon for the given purchase. It is called
// only after payment confirms; the storage layer re-checks both usage limits
// inside a serializable transaction so the per-user cap holds under
// concurrent attempts.
func (s *Service) Redeem(ctx context.Context, code, userID, purchaseID string, discount decimal.Decimal) error {
	err := s.repo.Redeem(ctx, RedeemParams{
		Code:       code,
		UserID:     userID,
		PurchaseID: purchaseID,
		Discount:   discount,
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		if cerr := s.cache.Invalidate(ctx, code); cerr != nil {
			// Stale cache entries only affect currentUses freshness; the
			// transactional redemption path stays correct.
			return nil
		}
	}
	return nil
}

// Create registers a new coupon after checking the rule invariant.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	if err := c.ValidateRule(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = s.now()
	}
	return s.repo.Create(ctx, c)
}

// Deactivate soft-disables a coupon. Coupons are never physically deleted.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	if err := s.repo.Deactivate(ctx, code); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, code)
	}
	return nil
}

// List returns all coupons, active or not.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}
