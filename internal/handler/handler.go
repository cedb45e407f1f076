// Package handler exposes the HTTP API, delegating business logic to the
// domain services.
package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/auth"
	"github.com/bookproof/bookproof/internal/domain/commission"
	"github.com/bookproof/bookproof/internal/domain/coupon"
	"github.com/bookproof/bookproof/internal/domain/credit"
	"github.com/bookproof/bookproof/internal/domain/payout"
	"github.com/bookproof/bookproof/internal/domain/user"
)

// AuthService is the slice of the auth service the handler needs.
type AuthService interface {
	Register(ctx context.Context, email, password string, role user.Role, referral string) (*user.User, error)
	Login(ctx context.Context, email, password string) (string, *user.User, error)
}

// CouponService covers coupon evaluation and admin management.
type CouponService interface {
	Evaluate(ctx context.Context, code, userID string, amount decimal.Decimal, credits int, kind coupon.PurchaseKind) (coupon.Evaluation, error)
	Create(ctx context.Context, c *coupon.Coupon) error
	Deactivate(ctx context.Context, code string) error
	List(ctx context.Context) ([]coupon.Coupon, error)
}

// CreditService covers the credit purchase lifecycle and balances.
type CreditService interface {
	Checkout(ctx context.Context, req credit.CheckoutRequest) (*credit.Purchase, error)
	ConfirmPayment(ctx context.Context, purchaseID string) (*credit.Purchase, error)
	Activate(ctx context.Context, purchaseID, authorID string) error
	Balance(ctx context.Context, authorID string) (credit.Balance, error)
}

// CommissionService covers commission listing and admin transitions.
type CommissionService interface {
	Apply(ctx context.Context, id string, ev commission.Event) (*commission.Commission, error)
	ListByAffiliate(ctx context.Context, affiliateID string) ([]commission.Commission, error)
}

// PayoutService covers payout requests and admin resolution.
type PayoutService interface {
	RequestPayout(ctx context.Context, affiliateID string, amount decimal.Decimal, method, details string) (*payout.Request, error)
	Resolve(ctx context.Context, id string, action payout.Action, transactionID string) (*payout.Request, error)
	ListByAffiliate(ctx context.Context, affiliateID string) ([]payout.Request, error)
}

// AffiliateDirectory resolves the affiliate profile behind a logged-in user.
type AffiliateDirectory interface {
	FindAffiliateByUser(ctx context.Context, userID string) (*user.AffiliateProfile, error)
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Handler wires HTTP routes to the domain services.
type Handler struct {
	auth        AuthService
	coupons     CouponService
	credits     CreditService
	commissions CommissionService
	payouts     PayoutService
	affiliates  AffiliateDirectory
	tokens      TokenVerifier
}

// New constructs a Handler with the required domain dependencies.
func New(
	authSvc AuthService,
	coupons CouponService,
	credits CreditService,
	commissions CommissionService,
	payouts PayoutService,
	affiliates AffiliateDirectory,
	tokens TokenVerifier,
) *Handler {
	return &Handler{
		auth:        authSvc,
		coupons:     coupons,
		credits:     credits,
		commissions: commissions,
		payouts:     payouts,
		affiliates:  affiliates,
		tokens:      tokens,
	}
}

// Routes returns the API mux. Health probes are mounted separately by the
// application wiring.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)

	mux.Handle("GET /api/coupons/validate", h.guard(user.PermValidateCoupons, h.validateCoupon))

	mux.Handle("POST /api/purchases", h.guard(user.PermBuyCredits, h.checkout))
	mux.Handle("POST /api/purchases/{id}/confirm", h.guard(user.PermBuyCredits, h.confirmPurchase))
	mux.Handle("POST /api/purchases/{id}/activate", h.guard(user.PermBuyCredits, h.activatePurchase))
	mux.Handle("GET /api/credits/balance", h.guard(user.PermViewBalance, h.balance))

	mux.Handle("GET /api/affiliate/commissions", h.guard(user.PermViewCommissions, h.listCommissions))
	mux.Handle("GET /api/affiliate/payouts", h.guard(user.PermRequestPayout, h.listPayouts))
	mux.Handle("POST /api/affiliate/payouts", h.guard(user.PermRequestPayout, h.requestPayout))

	mux.Handle("POST /api/admin/coupons", h.guard(user.PermManageCoupons, h.createCoupon))
	mux.Handle("GET /api/admin/coupons", h.guard(user.PermManageCoupons, h.listCoupons))
	mux.Handle("POST /api/admin/coupons/{code}/deactivate", h.guard(user.PermManageCoupons, h.deactivateCoupon))
	mux.Handle("POST /api/admin/commissions/{id}/{action}", h.guard(user.PermManageCommissions, h.commissionAction))
	mux.Handle("POST /api/admin/payouts/{id}/{action}", h.guard(user.PermManagePayouts, h.payoutAction))

	return mux
}
