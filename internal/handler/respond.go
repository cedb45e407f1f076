package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookproof/bookproof/internal/auth"
	"github.com/bookproof/bookproof/internal/domain/commission"
	"github.com/bookproof/bookproof/internal/domain/coupon"
	"github.com/bookproof/bookproof/internal/domain/credit"
	"github.com/bookproof/bookproof/internal/domain/payout"
	"github.com/bookproof/bookproof/internal/domain/user"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// decode reads the JSON request body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondError maps a domain error to an HTTP status and writes the body.
// Unmapped errors become 500 and are logged with context.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *credit.ErrCouponRejected
	switch {
	case errors.As(err, &rejected):
		writeError(w, http.StatusUnprocessableEntity, rejected.Error())
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, credit.ErrPurchaseNotFound),
		errors.Is(err, commission.ErrNotFound),
		errors.Is(err, payout.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrBadCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, coupon.ErrInvalidRule),
		errors.Is(err, coupon.ErrMalformedInput),
		errors.Is(err, commission.ErrMalformedInput),
		errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payout.ErrNonPositiveAmount),
		errors.Is(err, payout.ErrAmountExceedsBalance),
		errors.Is(err, payout.ErrTransactionIDRequired):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, commission.ErrInvalidTransition),
		errors.Is(err, payout.ErrInvalidTransition),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrPerUserLimitReached),
		errors.Is(err, coupon.ErrAlreadyRedeemed),
		errors.Is(err, credit.ErrAlreadyActivated),
		errors.Is(err, credit.ErrPaymentNotConfirmed),
		errors.Is(err, credit.ErrActivationWindowClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
