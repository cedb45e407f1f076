package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/credit"
)

type checkoutRequest struct {
	Credits    int64  `json:"credits"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency,omitempty"`
	CouponCode string `json:"coupon_code,omitempty"`
}

type purchaseResponse struct {
	ID                 string     `json:"id"`
	Credits            int64      `json:"credits"`
	AmountPaid         string     `json:"amount_paid"`
	Currency           string     `json:"currency"`
	CouponCode         string     `json:"coupon_code,omitempty"`
	Discount           string     `json:"discount"`
	PaymentStatus      string     `json:"payment_status"`
	Activated          bool       `json:"activated"`
	ExpiresAt          time.Time  `json:"expires_at"`
	ActivationDeadline time.Time  `json:"activation_deadline"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
}

func toPurchaseResponse(p *credit.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:                 p.ID,
		Credits:            p.Credits,
		AmountPaid:         p.AmountPaid.String(),
		Currency:           p.Currency,
		CouponCode:         p.CouponCode,
		Discount:           p.Discount.String(),
		PaymentStatus:      string(p.PaymentStatus),
		Activated:          p.Activated,
		ExpiresAt:          p.ExpiresAt,
		ActivationDeadline: p.ActivationDeadline,
		ActivatedAt:        p.ActivatedAt,
	}
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	id := identityFrom(r.Context())
	p, err := h.credits.Checkout(r.Context(), credit.CheckoutRequest{
		AuthorID:   id.UserID,
		Credits:    req.Credits,
		Amount:     amount,
		Currency:   currency,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseResponse(p))
}

func (h *Handler) confirmPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.credits.ConfirmPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseResponse(p))
}

func (h *Handler) activatePurchase(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if err := h.credits.Activate(r.Context(), r.PathValue("id"), id.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceResponse struct {
	TotalPurchased int64      `json:"total_purchased"`
	TotalUsed      int64      `json:"total_used"`
	Available      int64      `json:"available"`
	ExpiringCount  int        `json:"expiring_count"`
	NextExpiration *time.Time `json:"next_expiration,omitempty"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	b, err := h.credits.Balance(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		TotalPurchased: b.TotalPurchased,
		TotalUsed:      b.TotalUsed,
		Available:      b.Available,
		ExpiringCount:  b.ExpiringCount,
		NextExpiration: b.NextExpiration,
	})
}
