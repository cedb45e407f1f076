package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/commission"
	"github.com/bookproof/bookproof/internal/domain/payout"
)

// affiliateID resolves the acting user's affiliate profile. Affiliate routes
// operate on the profile, not the user account.
func (h *Handler) affiliateID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identityFrom(r.Context())
	profile, err := h.affiliates.FindAffiliateByUser(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return "", false
	}
	return profile.ID, true
}

type commissionResponse struct {
	ID             string     `json:"id"`
	PurchaseID     string     `json:"purchase_id"`
	PurchaseAmount string     `json:"purchase_amount"`
	Rate           string     `json:"rate"`
	Amount         string     `json:"amount"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}

func toCommissionResponse(c commission.Commission) commissionResponse {
	return commissionResponse{
		ID:             c.ID,
		PurchaseID:     c.PurchaseID,
		PurchaseAmount: c.PurchaseAmount.String(),
		Rate:           c.Rate.String(),
		Amount:         c.Amount.String(),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		ApprovedAt:     c.ApprovedAt,
		PaidAt:         c.PaidAt,
		CancelledAt:    c.CancelledAt,
	}
}

func (h *Handler) listCommissions(w http.ResponseWriter, r *http.Request) {
	affID, ok := h.affiliateID(w, r)
	if !ok {
		return
	}

	commissions, err := h.commissions.ListByAffiliate(r.Context(), affID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]commissionResponse, 0, len(commissions))
	for _, c := range commissions {
		out = append(out, toCommissionResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type payoutRequestBody struct {
	Amount  string `json:"amount"`
	Method  string `json:"method"`
	Details string `json:"details"`
}

type payoutResponse struct {
	ID            string     `json:"id"`
	Amount        string     `json:"amount"`
	Method        string     `json:"method"`
	MaskedDetails string     `json:"masked_details"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toPayoutResponse(p *payout.Request) payoutResponse {
	return payoutResponse{
		ID:            p.ID,
		Amount:        p.Amount.String(),
		Method:        p.Method,
		MaskedDetails: p.MaskedDetails,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		RequestedAt:   p.RequestedAt,
		ResolvedAt:    p.ResolvedAt,
	}
}

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	var body payoutRequestBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if body.Method == "" {
		writeError(w, http.StatusBadRequest, "method is required")
		return
	}

	affID, ok := h.affiliateID(w, r)
	if !ok {
		return
	}

	p, err := h.payouts.RequestPayout(r.Context(), affID, amount, body.Method, body.Details)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutResponse(p))
}

func (h *Handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	affID, ok := h.affiliateID(w, r)
	if !ok {
		return
	}

	payouts, err := h.payouts.ListByAffiliate(r.Context(), affID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]payoutResponse, 0, len(payouts))
	for i := range payouts {
		out = append(out, toPayoutResponse(&payouts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
