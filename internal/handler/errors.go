package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/renterra/rental-engine/internal/domain/inventory"
	"github.com/renterra/rental-engine/internal/domain/invoice"
	"github.com/renterra/rental-engine/internal/domain/order"
	"github.com/renterra/rental-engine/internal/domain/product"
)

type errorResponse struct {
	Code      int                  `json:"code"`
	Message   string               `json:"message"`
	Conflicts []inventory.Conflict `json:"conflicts,omitempty"`
}

// writeError maps domain errors to HTTP responses. Stock conflicts carry the
// full structured conflict list so clients can echo it back on override.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		resp.Message = "internal error"
	}
	writeJSON(w, status, resp)
}

func mapError(err error) (int, errorResponse) {
	var scErr *order.StockConflictError
	if errors.As(err, &scErr) {
		return http.StatusConflict, errorResponse{
			Code:      http.StatusConflict,
			Message:   scErr.Error(),
			Conflicts: scErr.Conflicts,
		}
	}

	var itErr *order.InvalidTransitionError
	if errors.As(err, &itErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: itErr.Error(),
		}
	}

	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: vErr.Error(),
		}
	}

	var prErr *order.PaymentRequiredError
	if errors.As(err, &prErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: prErr.Error(),
		}
	}

	var authErr *order.AuthorizationError
	if errors.As(err, &authErr) {
		return http.StatusForbidden, errorResponse{
			Code:    http.StatusForbidden,
			Message: "forbidden",
		}
	}

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, invoice.ErrNotFound):
		return http.StatusNotFound, errorResponse{
			Code:    http.StatusNotFound,
			Message: err.Error(),
		}
	case errors.Is(err, invoice.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{
			Code:    http.StatusConflict,
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorResponse{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
