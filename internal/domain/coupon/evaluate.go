package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Reason is a machine-readable validation failure. The set is closed: callers
// map each reason to a user-facing message.
type Reason string

const (
	ReasonNotFound             Reason = "NOT_FOUND"
	ReasonInactive             Reason = "INACTIVE"
	ReasonExpired              Reason = "EXPIRED"
	ReasonNotYetValid          Reason = "NOT_YET_VALID"
	ReasonUsageLimitReached    Reason = "USAGE_LIMIT_REACHED"
	ReasonPerUserLimitReached  Reason = "PER_USER_LIMIT_REACHED"
	ReasonNotApplicable        Reason = "NOT_APPLICABLE"
	ReasonMinimumNotMet        Reason = "MINIMUM_NOT_MET"
	ReasonMinimumCreditsNotMet Reason = "MINIMUM_CREDITS_NOT_MET"
)

// ErrMalformedInput signals a precondition violation (negative amounts, nil
// coupon). It is fatal to the caller's request, unlike a validation Reason.
var ErrMalformedInput = errors.New("malformed evaluation input")

var hundred = decimal.NewFromInt(100)

// Input holds the candidate purchase being evaluated against a coupon.
type Input struct {
	PriorUserUses  int
	PurchaseAmount decimal.Decimal
	CreditQuantity int
	Kind           PurchaseKind
	Now            time.Time
}

// Evaluation is the outcome of evaluating a coupon: either a failure reason or
// a computed discount and final price. Evaluation never mutates the coupon.
type Evaluation struct {
	Valid      bool
	Reason     Reason
	Discount   decimal.Decimal
	FinalPrice decimal.Decimal
}

func invalid(r Reason) Evaluation {
	return Evaluation{Reason: r}
}

// Evaluate runs the ordered validation checks and computes the discount.
// The first failing check wins. The caller resolves ReasonNotFound itself
// (a missing coupon never reaches this function).
func Evaluate(c *Coupon, in Input) (Evaluation, error) {
	if c == nil {
		return Evaluation{}, errors.Wrap(ErrMalformedInput, "nil coupon")
	}
	if in.PurchaseAmount.IsNegative() || in.CreditQuantity < 0 {
		return Evaluation{}, errors.Wrap(ErrMalformedInput, "negative purchase amount or credit quantity")
	}
	if in.Now.IsZero() {
		return Evaluation{}, errors.Wrap(ErrMalformedInput, "zero evaluation time")
	}

	if !c.Active {
		return invalid(ReasonInactive), nil
	}
	if in.Now.Before(c.ValidFrom) {
		return invalid(ReasonNotYetValid), nil
	}
	if c.ValidUntil != nil && in.Now.After(*c.ValidUntil) {
		return invalid(ReasonExpired), nil
	}
	if c.MaxUses > 0 && c.CurrentUses >= c.MaxUses {
		return invalid(ReasonUsageLimitReached), nil
	}
	if in.PriorUserUses >= c.MaxUsesPerUser {
		return invalid(ReasonPerUserLimitReached), nil
	}
	if !c.AppliesTo(in.Kind) {
		return invalid(ReasonNotApplicable), nil
	}
	if c.MinPurchase.IsPositive() && in.PurchaseAmount.LessThan(c.MinPurchase) {
		return invalid(ReasonMinimumNotMet), nil
	}
	if c.MinCredits > 0 && in.CreditQuantity < c.MinCredits {
		return invalid(ReasonMinimumCreditsNotMet), nil
	}

	discount := computeDiscount(c, in.PurchaseAmount)
	final := in.PurchaseAmount.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Evaluation{
		Valid:      true,
		Discount:   discount.Round(2),
		FinalPrice: final.Round(2),
	}, nil
}

// computeDiscount applies the rule's discount, capped at the purchase amount.
func computeDiscount(c *Coupon, amount decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountPercentage:
		d := amount.Mul(c.Percent).Div(hundred)
		return decimal.Min(d, amount)
	case DiscountFixed:
		return decimal.Min(c.Amount, amount)
	default:
		return decimal.Zero
	}
}
