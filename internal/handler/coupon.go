package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/coupon"
)

type validateResponse struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	Discount   string `json:"discount,omitempty"`
	FinalPrice string `json:"final_price,omitempty"`
}

// validateCoupon evaluates a coupon against a candidate purchase. Failed
// checks are data, not errors: the response is 200 with valid=false and the
// reason. Only malformed input or infrastructure failures produce error codes.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code parameter is required")
		return
	}

	amount := decimal.Zero
	if raw := q.Get("amount"); raw != "" {
		var err error
		amount, err = decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
	}

	credits := 0
	if raw := q.Get("credits"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsInteger() {
			writeError(w, http.StatusBadRequest, "invalid credits")
			return
		}
		credits = int(parsed.IntPart())
	}

	kind := coupon.PurchaseKind(q.Get("kind"))
	if kind == "" {
		kind = coupon.KindCredits
	}

	id := identityFrom(r.Context())
	ev, err := h.coupons.Evaluate(r.Context(), code, id.UserID, amount, credits, kind)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := validateResponse{Valid: ev.Valid, Reason: string(ev.Reason)}
	if ev.Valid {
		resp.Discount = ev.Discount.String()
		resp.FinalPrice = ev.FinalPrice.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type createCouponRequest struct {
	Code           string  `json:"code"`
	DiscountType   string  `json:"discount_type"`
	Percent        string  `json:"percent,omitempty"`
	Amount         string  `json:"amount,omitempty"`
	Scope          string  `json:"scope,omitempty"`
	MinPurchase    string  `json:"min_purchase,omitempty"`
	MinCredits     int     `json:"min_credits,omitempty"`
	MaxUses        int     `json:"max_uses,omitempty"`
	MaxUsesPerUser int     `json:"max_uses_per_user,omitempty"`
	ValidFrom      *string `json:"valid_from,omitempty"`
	ValidUntil     *string `json:"valid_until,omitempty"`
}

type couponResponse struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	DiscountType   string     `json:"discount_type"`
	Percent        string     `json:"percent"`
	Amount         string     `json:"amount"`
	Scope          string     `json:"scope"`
	MinPurchase    string     `json:"min_purchase"`
	MinCredits     int        `json:"min_credits"`
	MaxUses        int        `json:"max_uses"`
	MaxUsesPerUser int        `json:"max_uses_per_user"`
	Active         bool       `json:"active"`
	ValidFrom      time.Time  `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	CurrentUses    int        `json:"current_uses"`
}

func toCouponResponse(c coupon.Coupon) couponResponse {
	return couponResponse{
		ID:             c.ID,
		Code:           c.Code,
		DiscountType:   string(c.DiscountType),
		Percent:        c.Percent.String(),
		Amount:         c.Amount.String(),
		Scope:          string(c.Scope),
		MinPurchase:    c.MinPurchase.String(),
		MinCredits:     c.MinCredits,
		MaxUses:        c.MaxUses,
		MaxUsesPerUser: c.MaxUsesPerUser,
		Active:         c.Active,
		ValidFrom:      c.ValidFrom,
		ValidUntil:     c.ValidUntil,
		CurrentUses:    c.CurrentUses,
	}
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := &coupon.Coupon{
		Code:           req.Code,
		DiscountType:   coupon.DiscountType(req.DiscountType),
		Scope:          coupon.Scope(req.Scope),
		MinCredits:     req.MinCredits,
		MaxUses:        req.MaxUses,
		MaxUsesPerUser: req.MaxUsesPerUser,
		Active:         true,
	}
	if c.Scope == "" {
		c.Scope = coupon.ScopeBoth
	}
	if c.MaxUsesPerUser == 0 {
		c.MaxUsesPerUser = 1
	}

	var err error
	if req.Percent != "" {
		if c.Percent, err = decimal.NewFromString(req.Percent); err != nil {
			writeError(w, http.StatusBadRequest, "invalid percent")
			return
		}
	}
	if req.Amount != "" {
		if c.Amount, err = decimal.NewFromString(req.Amount); err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
	}
	if req.MinPurchase != "" {
		if c.MinPurchase, err = decimal.NewFromString(req.MinPurchase); err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_purchase")
			return
		}
	}
	if req.ValidFrom != nil {
		if c.ValidFrom, err = time.Parse(time.RFC3339, *req.ValidFrom); err != nil {
			writeError(w, http.StatusBadRequest, "invalid valid_from")
			return
		}
	}
	if req.ValidUntil != nil {
		until, err := time.Parse(time.RFC3339, *req.ValidUntil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid valid_until")
			return
		}
		c.ValidUntil = &until
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(*c))
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, toCouponResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deactivateCoupon(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if err := h.coupons.Deactivate(r.Context(), code); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
