// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Transport level sentinels.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		verr   *shared.ValidationError
		stock  *shared.InsufficientStockError
		credit *shared.CreditLimitError
	)
	switch {
	case errors.As(err, &stock):
		ProblemWithMeta(w, http.StatusConflict, "Insufficient Stock", err.Error(), map[string]any{
			"product_id":   stock.ProductID,
			"warehouse_id": stock.WarehouseID,
			"requested":    stock.Requested.String(),
			"available":    stock.Available.String(),
			"shortfall":    stock.Shortfall().String(),
		})
	case errors.As(err, &credit):
		ProblemWithMeta(w, http.StatusUnprocessableEntity, "Credit Limit Exceeded", err.Error(), map[string]any{
			"party_id":     credit.PartyID,
			"credit_limit": credit.Limit.StringFixed(2),
			"balance":      credit.Balance.StringFixed(2),
			"requested":    credit.Requested.StringFixed(2),
			"headroom":     credit.Headroom().StringFixed(2),
		})
	case errors.As(err, &verr):
		meta := make(map[string]any, len(verr.Details))
		for k, v := range verr.Details {
			meta[k] = v
		}
		ProblemWithMeta(w, http.StatusBadRequest, "Validation Failed", err.Error(), meta)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateEntry), errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrCreditLimitExceeded):
		Problem(w, http.StatusUnprocessableEntity, "Credit Limit Exceeded", err.Error())
	case errors.Is(err, shared.ErrInvalidStatusTransition):
		Problem(w, http.StatusConflict, "Invalid Status Transition", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
