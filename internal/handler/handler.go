// Package handler exposes the order lifecycle over HTTP. Authentication is
// terminated upstream; the handlers trust the actor headers and let the
// domain layer re-validate ownership.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/renterra/rental-engine/internal/domain/order"
	"github.com/renterra/rental-engine/internal/domain/product"
)

// Handler routes HTTP requests to the order service and product repository.
type Handler struct {
	products     product.Repository
	orderService *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, orderService *order.Service) *Handler {
	return &Handler{
		products:     products,
		orderService: orderService,
	}
}

// Register mounts all API routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createQuotation)
		r.Get("/", h.listOrders)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Put("/", h.updateQuotation)
			r.Post("/send", h.sendQuotation)
			r.Post("/approve", h.approve)
			r.Post("/reject", h.reject)
			r.Post("/confirm", h.confirm)
			r.Post("/confirm/override", h.confirmWithOverride)
			r.Post("/cancel", h.cancel)
			r.Post("/invoice", h.createInvoice)
			r.Post("/pickup", h.pickup)
			r.Post("/return", h.returnOrder)
			r.Post("/payments", h.recordPayment)
		})
	})
	r.Post("/invoices/{invoiceID}/dispatch", h.dispatchInvoice)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode parses the JSON request body into v. A false return means the
// error response has already been written.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid json body",
		})
		return false
	}
	return true
}
