package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/renterra/rental-engine/internal/domain/order"
)

type productResponse struct {
	ID             string          `json:"id"`
	VendorID       string          `json:"vendorId"`
	Name           string          `json:"name"`
	QuantityOnHand int             `json:"quantityOnHand"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Unit           string          `json:"unit"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	vendorID := r.URL.Query().Get("vendorId")
	if vendorID == "" && actor.Role == order.RoleVendor {
		vendorID = actor.ID
	}
	if vendorID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "vendorId query parameter required",
		})
		return
	}

	products, err := h.products.List(r.Context(), vendorID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse{
			ID:             p.ID,
			VendorID:       p.VendorID,
			Name:           p.Name,
			QuantityOnHand: p.QuantityOnHand,
			UnitPrice:      p.UnitPrice,
			Unit:           string(p.Unit),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
