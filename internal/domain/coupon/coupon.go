package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the purchase amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the purchase amount.
	DiscountFixed DiscountType = "fixed"
)

// Scope restricts which purchase kinds a coupon may discount.
type Scope string

const (
	ScopeCredits         Scope = "credits"
	ScopeKeywordResearch Scope = "keyword_research"
	ScopeBoth            Scope = "both"
)

// PurchaseKind identifies what the acting user is buying.
type PurchaseKind string

const (
	KindCredits         PurchaseKind = "credits"
	KindKeywordResearch PurchaseKind = "keyword_research"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned by redemption when the coupon's total
	// usage limit was exhausted between evaluation and redemption.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached is returned by redemption when the user's
	// per-coupon limit was exhausted between evaluation and redemption.
	ErrPerUserLimitReached = errors.New("per-user coupon limit reached")
	// ErrAlreadyRedeemed is returned when the same purchase attempts to redeem
	// a coupon twice.
	ErrAlreadyRedeemed = errors.New("coupon already redeemed for this purchase")
	// ErrInvalidRule is returned when a coupon definition violates the
	// one-value-field invariant.
	ErrInvalidRule = errors.New("invalid coupon rule")
)

// Coupon defines a discount code's behaviour and eligibility constraints.
// Exactly one of Percent/Amount is meaningful, consistent with DiscountType.
type Coupon struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Percent      decimal.Decimal
	Amount       decimal.Decimal
	Scope        Scope
	MinPurchase  decimal.Decimal
	MinCredits   int
	MaxUses      int // 0 = unlimited
	MaxUsesPerUser int
	Active       bool
	ValidFrom    time.Time
	ValidUntil   *time.Time
	CurrentUses  int
	CreatedAt    time.Time
}

// ValidateRule checks the definition invariant: the value field populated must
// match the discount type, and limits must be non-negative.
func (c *Coupon) ValidateRule() error {
	switch c.DiscountType {
	case DiscountPercentage:
		if c.Percent.LessThanOrEqual(decimal.Zero) || c.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Wrap(ErrInvalidRule, "percent must be in (0, 100]")
		}
		if !c.Amount.IsZero() {
			return errors.Wrap(ErrInvalidRule, "fixed amount set on percentage coupon")
		}
	case DiscountFixed:
		if c.Amount.LessThanOrEqual(decimal.Zero) {
			return errors.Wrap(ErrInvalidRule, "fixed amount must be positive")
		}
		if !c.Percent.IsZero() {
			return errors.Wrap(ErrInvalidRule, "percent set on fixed-amount coupon")
		}
	default:
		return errors.Wrapf(ErrInvalidRule, "unknown discount type %q", c.DiscountType)
	}
	if c.MaxUses < 0 || c.MaxUsesPerUser < 1 {
		return errors.Wrap(ErrInvalidRule, "usage limits out of range")
	}
	if c.MinPurchase.IsNegative() || c.MinCredits < 0 {
		return errors.Wrap(ErrInvalidRule, "minimums must be non-negative")
	}
	return nil
}

// AppliesTo reports whether the coupon scope covers the given purchase kind.
func (c *Coupon) AppliesTo(kind PurchaseKind) bool {
	switch c.Scope {
	case ScopeBoth:
		return true
	case ScopeCredits:
		return kind == KindCredits
	case ScopeKeywordResearch:
		return kind == KindKeywordResearch
	default:
		return false
	}
}

// Usage records a single successful redemption. Immutable once written.
type Usage struct {
	ID         string
	CouponID   string
	UserID     string
	PurchaseID string
	Discount   decimal.Decimal
	UsedAt     time.Time
}

// RedeemParams carries everything the storage layer needs to redeem a coupon
// atomically: increment current_uses and insert the usage record in a single
// serializable transaction, re-checking both limits under the row lock.
type RedeemParams struct {
	Code       string
	UserID     string
	PurchaseID string
	Discount   decimal.Decimal
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Deactivate(ctx context.Context, code string) error
	List(ctx context.Context) ([]Coupon, error)
	CountUserRedemptions(ctx context.Context, couponID, userID string) (int, error)
	Redeem(ctx context.Context, p RedeemParams) error
}

// Finder is the read side of Repository; the cache layer implements it too.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
