package handler

import (
	"net/http"

	"github.com/bookproof/bookproof/internal/domain/commission"
	"github.com/bookproof/bookproof/internal/domain/payout"
)

// commissionEvents maps the admin action path segment to a state machine event.
var commissionEvents = map[string]commission.Event{
	"approve": commission.EventAdminApprove,
	"pay":     commission.EventAdminPay,
	"cancel":  commission.EventAdminCancel,
}

func (h *Handler) commissionAction(w http.ResponseWriter, r *http.Request) {
	ev, ok := commissionEvents[r.PathValue("action")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown commission action")
		return
	}

	c, err := h.commissions.Apply(r.Context(), r.PathValue("id"), ev)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionResponse(*c))
}

var payoutActions = map[string]payout.Action{
	"approve":  payout.ActionApprove,
	"reject":   payout.ActionReject,
	"complete": payout.ActionComplete,
}

type payoutActionRequest struct {
	TransactionID string `json:"transaction_id,omitempty"`
}

func (h *Handler) payoutAction(w http.ResponseWriter, r *http.Request) {
	action, ok := payoutActions[r.PathValue("action")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown payout action")
		return
	}

	var body payoutActionRequest
	if r.ContentLength > 0 {
		if err := decode(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	p, err := h.payouts.Resolve(r.Context(), r.PathValue("id"), action, body.TransactionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResponse(p))
}
