package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookproof/bookproof/internal/auth"
	"github.com/bookproof/bookproof/internal/domain/commission"
	"github.com/bookproof/bookproof/internal/domain/coupon"
	"github.com/bookproof/bookproof/internal/domain/credit"
	"github.com/bookproof/bookproof/internal/domain/payout"
	"github.com/bookproof/bookproof/internal/domain/user"
)

// --- Mock implementations ---

type mockTokens struct {
	identities map[string]auth.Identity
}

func (m *mockTokens) Verify(token string) (auth.Identity, error) {
	id, ok := m.identities[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type mockAuthSvc struct {
	registerErr error
	loginErr    error
	user        *user.User
	token       string
}

func (m *mockAuthSvc) Register(_ context.Context, email, _ string, role user.Role, _ string) (*user.User, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &user.User{ID: "u1", Email: email, Role: role}, nil
}

func (m *mockAuthSvc) Login(_ context.Context, _, _ string) (string, *user.User, error) {
	if m.loginErr != nil {
		return "", nil, m.loginErr
	}
	return m.token, m.user, nil
}

type mockCouponSvc struct {
	evaluation  coupon.Evaluation
	evaluateErr error
	created     []*coupon.Coupon
	deactivated []string
	coupons     []coupon.Coupon
}

func (m *mockCouponSvc) Evaluate(_ context.Context, _, _ string, _ decimal.Decimal, _ int, _ coupon.PurchaseKind) (coupon.Evaluation, error) {
	if m.evaluateErr != nil {
		return coupon.Evaluation{}, m.evaluateErr
	}
	return m.evaluation, nil
}

func (m *mockCouponSvc) Create(_ context.Context, c *coupon.Coupon) error {
	m.created = append(m.created, c)
	return nil
}

func (m *mockCouponSvc) Deactivate(_ context.Context, code string) error {
	m.deactivated = append(m.deactivated, code)
	return nil
}

func (m *mockCouponSvc) List(_ context.Context) ([]coupon.Coupon, error) {
	return m.coupons, nil
}

type mockCreditSvc struct {
	purchase    *credit.Purchase
	checkoutErr error
	confirmErr  error
	activateErr error
	balanceOut  credit.Balance
	activated   []string
}

func (m *mockCreditSvc) Checkout(_ context.Context, _ credit.CheckoutRequest) (*credit.Purchase, error) {
	if m.checkoutErr != nil {
		return nil, m.checkoutErr
	}
	return m.purchase, nil
}

func (m *mockCreditSvc) ConfirmPayment(_ context.Context, _ string) (*credit.Purchase, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	return m.purchase, nil
}

func (m *mockCreditSvc) Activate(_ context.Context, purchaseID, _ string) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activated = append(m.activated, purchaseID)
	return nil
}

func (m *mockCreditSvc) Balance(_ context.Context, _ string) (credit.Balance, error) {
	return m.balanceOut, nil
}

type mockCommissionSvc struct {
	commission *commission.Commission
	applyErr   error
	applied    []commission.Event
	list       []commission.Commission
}

func (m *mockCommissionSvc) Apply(_ context.Context, _ string, ev commission.Event) (*commission.Commission, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.applied = append(m.applied, ev)
	return m.commission, nil
}

func (m *mockCommissionSvc) ListByAffiliate(_ context.Context, _ string) ([]commission.Commission, error) {
	return m.list, nil
}

type mockPayoutSvc struct {
	request    *payout.Request
	requestErr error
	resolveErr error
	resolved   []payout.Action
	txIDs      []string
	list       []payout.Request
}

func (m *mockPayoutSvc) RequestPayout(_ context.Context, _ string, _ decimal.Decimal, _, _ string) (*payout.Request, error) {
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	return m.request, nil
}

func (m *mockPayoutSvc) Resolve(_ context.Context, _ string, action payout.Action, transactionID string) (*payout.Request, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	m.resolved = append(m.resolved, action)
	m.txIDs = append(m.txIDs, transactionID)
	return m.request, nil
}

func (m *mockPayoutSvc) ListByAffiliate(_ context.Context, _ string) ([]payout.Request, error) {
	return m.list, nil
}

type mockDirectory struct {
	profile *user.AffiliateProfile
}

func (m *mockDirectory) FindAffiliateByUser(_ context.Context, _ string) (*user.AffiliateProfile, error) {
	if m.profile == nil {
		return nil, user.ErrNotFound
	}
	return m.profile, nil
}

// --- Fixture ---

type fixture struct {
	auth        *mockAuthSvc
	coupons     *mockCouponSvc
	credits     *mockCreditSvc
	commissions *mockCommissionSvc
	payouts     *mockPayoutSvc
	directory   *mockDirectory
	mux         *http.ServeMux
}

func newFixture() *fixture {
	f := &fixture{
		auth:        &mockAuthSvc{},
		coupons:     &mockCouponSvc{},
		credits:     &mockCreditSvc{},
		commissions: &mockCommissionSvc{},
		payouts:     &mockPayoutSvc{},
		directory:   &mockDirectory{profile: &user.AffiliateProfile{ID: "aff1", UserID: "u-aff"}},
	}
	tokens := &mockTokens{identities: map[string]auth.Identity{
		"author-token":    {UserID: "u-author", Role: user.RoleAuthor},
		"affiliate-token": {UserID: "u-aff", Role: user.RoleAffiliate},
		"admin-token":     {UserID: "u-admin", Role: user.RoleAdmin},
	}}
	h := New(f.auth, f.coupons, f.credits, f.commissions, f.payouts, f.directory, tokens)
	f.mux = h.Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// --- Tests ---

func TestRegisterEndpoint(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"a@b.com","password":"password123","role":"author"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp userResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "a@b.com", resp.Email)
	assert.Equal(t, "author", resp.Role)
}

func TestRegisterErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"duplicate email", user.ErrEmailTaken, http.StatusConflict},
		{"invalid input", errors.Wrap(auth.ErrInvalidInput, "password too short"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.auth.registerErr = tt.err

			rec := f.do(t, http.MethodPost, "/api/auth/register", "",
				`{"email":"a@b.com","password":"x","role":"author"}`)
			assert.Equal(t, tt.code, rec.Code)

			var resp errorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	f := newFixture()
	f.auth.token = "issued-token"
	f.auth.user = &user.User{ID: "u1", Email: "a@b.com", Role: user.RoleAuthor}

	rec := f.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"a@b.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "issued-token", resp.Token)
	assert.Equal(t, "u1", resp.User.ID)
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture()
	f.auth.loginErr = auth.ErrBadCredentials

	rec := f.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"a@b.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuard(t *testing.T) {
	f := newFixture()

	// No token at all.
	rec := f.do(t, http.MethodGet, "/api/credits/balance", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token the verifier rejects.
	rec = f.do(t, http.MethodGet, "/api/credits/balance", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token, wrong role.
	rec = f.do(t, http.MethodGet, "/api/credits/balance", "affiliate-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/coupons", "author-token", `{"code":"X","discount_type":"percentage"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidateCouponInvalidIsData(t *testing.T) {
	f := newFixture()
	f.coupons.evaluation = coupon.Evaluation{Valid: false, Reason: coupon.ReasonExpired}

	rec := f.do(t, http.MethodGet, "/api/coupons/validate?code=OLD10&amount=100&credits=100", "author-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Valid)
	assert.Equal(t, string(coupon.ReasonExpired), resp.Reason)
	assert.Empty(t, resp.Discount)
}

func TestValidateCouponValid(t *testing.T) {
	f := newFixture()
	f.coupons.evaluation = coupon.Evaluation{
		Valid:      true,
		Discount:   decimal.NewFromInt(20),
		FinalPrice: decimal.NewFromInt(80),
	}

	rec := f.do(t, http.MethodGet, "/api/coupons/validate?code=SAVE20&amount=100&credits=100", "author-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, "20", resp.Discount)
	assert.Equal(t, "80", resp.FinalPrice)
}

func TestValidateCouponBadInput(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/coupons/validate", "author-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/coupons/validate?code=X&amount=abc", "author-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/coupons/validate?code=X&credits=1.5", "author-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func testPurchase() *credit.Purchase {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return &credit.Purchase{
		ID:                 "p1",
		AuthorID:           "u-author",
		Credits:            100,
		AmountPaid:         decimal.NewFromInt(80),
		Currency:           "USD",
		CouponCode:         "SAVE20",
		Discount:           decimal.NewFromInt(20),
		PurchasedAt:        now,
		ExpiresAt:          now.AddDate(1, 0, 0),
		ActivationDeadline: now.AddDate(0, 1, 0),
		PaymentStatus:      credit.PaymentPending,
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	f := newFixture()
	f.credits.purchase = testPurchase()

	rec := f.do(t, http.MethodPost, "/api/purchases", "author-token",
		`{"credits":100,"amount":"100","coupon_code":"SAVE20"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp purchaseResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "p1", resp.ID)
	assert.Equal(t, "80", resp.AmountPaid)
	assert.Equal(t, "20", resp.Discount)
	assert.Equal(t, string(credit.PaymentPending), resp.PaymentStatus)
}

func TestCheckoutRejectedCoupon(t *testing.T) {
	f := newFixture()
	f.credits.checkoutErr = &credit.ErrCouponRejected{Reason: coupon.ReasonUsageLimitReached}

	rec := f.do(t, http.MethodPost, "/api/purchases", "author-token",
		`{"credits":100,"amount":"100","coupon_code":"DEAD"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestConfirmAndActivateEndpoints(t *testing.T) {
	f := newFixture()
	p := testPurchase()
	p.PaymentStatus = credit.PaymentConfirmed
	f.credits.purchase = p

	rec := f.do(t, http.MethodPost, "/api/purchases/p1/confirm", "author-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/purchases/p1/activate", "author-token", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"p1"}, f.credits.activated)
}

func TestActivateConflicts(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{credit.ErrAlreadyActivated, http.StatusConflict},
		{credit.ErrPaymentNotConfirmed, http.StatusConflict},
		{credit.ErrActivationWindowClosed, http.StatusConflict},
		{credit.ErrPurchaseNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		f := newFixture()
		f.credits.activateErr = tt.err

		rec := f.do(t, http.MethodPost, "/api/purchases/p1/activate", "author-token", "")
		assert.Equal(t, tt.code, rec.Code, "error %v", tt.err)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	f := newFixture()
	f.credits.balanceOut = credit.Balance{TotalPurchased: 100, TotalUsed: 40, Available: 60, ExpiringCount: 1}

	rec := f.do(t, http.MethodGet, "/api/credits/balance", "author-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp balanceResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(60), resp.Available)
	assert.Equal(t, 1, resp.ExpiringCount)
}

func TestListCommissionsResolvesProfile(t *testing.T) {
	f := newFixture()
	f.commissions.list = []commission.Commission{{
		ID:             "c1",
		PurchaseID:     "p1",
		PurchaseAmount: decimal.NewFromInt(100),
		Rate:           decimal.NewFromInt(10),
		Amount:         decimal.NewFromInt(10),
		Status:         commission.StatusPending,
	}}

	rec := f.do(t, http.MethodGet, "/api/affiliate/commissions", "affiliate-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []commissionResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "10", resp[0].Amount)
	assert.Equal(t, string(commission.StatusPending), resp[0].Status)
}

func TestAffiliateWithoutProfile(t *testing.T) {
	f := newFixture()
	f.directory.profile = nil

	rec := f.do(t, http.MethodGet, "/api/affiliate/commissions", "affiliate-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestPayoutEndpoint(t *testing.T) {
	f := newFixture()
	f.payouts.request = &payout.Request{
		ID:            "pay1",
		AffiliateID:   "aff1",
		Amount:        decimal.NewFromInt(50),
		Method:        "paypal",
		MaskedDetails: "***************.com",
		Status:        payout.StatusRequested,
	}

	rec := f.do(t, http.MethodPost, "/api/affiliate/payouts", "affiliate-token",
		`{"amount":"50","method":"paypal","details":"someone@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp payoutResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "***************.com", resp.MaskedDetails)
	assert.Equal(t, string(payout.StatusRequested), resp.Status)
}

func TestRequestPayoutExceedsBalance(t *testing.T) {
	f := newFixture()
	f.payouts.requestErr = payout.ErrAmountExceedsBalance

	rec := f.do(t, http.MethodPost, "/api/affiliate/payouts", "affiliate-token",
		`{"amount":"5000","method":"paypal","details":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminCommissionAction(t *testing.T) {
	f := newFixture()
	f.commissions.commission = &commission.Commission{ID: "c1", Status: commission.StatusApproved}

	rec := f.do(t, http.MethodPost, "/api/admin/commissions/c1/approve", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []commission.Event{commission.EventAdminApprove}, f.commissions.applied)

	rec = f.do(t, http.MethodPost, "/api/admin/commissions/c1/destroy", "admin-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCommissionInvalidTransition(t *testing.T) {
	f := newFixture()
	f.commissions.applyErr = commission.ErrInvalidTransition

	rec := f.do(t, http.MethodPost, "/api/admin/commissions/c1/pay", "admin-token", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminPayoutComplete(t *testing.T) {
	f := newFixture()
	f.payouts.request = &payout.Request{ID: "pay1", Status: payout.StatusCompleted, TransactionID: "tx-9"}

	rec := f.do(t, http.MethodPost, "/api/admin/payouts/pay1/complete", "admin-token",
		`{"transaction_id":"tx-9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []payout.Action{payout.ActionComplete}, f.payouts.resolved)
	assert.Equal(t, []string{"tx-9"}, f.payouts.txIDs)
}

func TestAdminPayoutCompleteWithoutTransactionID(t *testing.T) {
	f := newFixture()
	f.payouts.resolveErr = payout.ErrTransactionIDRequired

	rec := f.do(t, http.MethodPost, "/api/admin/payouts/pay1/complete", "admin-token", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminCouponLifecycle(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/admin/coupons", "admin-token",
		`{"code":"SAVE20","discount_type":"percentage","percent":"20","min_purchase":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.coupons.created, 1)
	assert.Equal(t, coupon.ScopeBoth, f.coupons.created[0].Scope)
	assert.Equal(t, 1, f.coupons.created[0].MaxUsesPerUser)

	rec = f.do(t, http.MethodPost, "/api/admin/coupons/SAVE20/deactivate", "admin-token", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"SAVE20"}, f.coupons.deactivated)
}

func TestUnknownFieldsRejected(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"a@b.com","password":"x","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
