package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/renterra/rental-engine/internal/domain/inventory"
	"github.com/renterra/rental-engine/internal/domain/invoice"
	"github.com/renterra/rental-engine/internal/domain/order"
)

type lineInput struct {
	ProductID   string    `json:"productId"`
	Quantity    int       `json:"quantity"`
	RentalStart time.Time `json:"rentalStart"`
	RentalEnd   time.Time `json:"rentalEnd"`
}

type createQuotationRequest struct {
	CustomerID  string          `json:"customerId"`
	Lines       []lineInput     `json:"lines"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shipping"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	DownPayment decimal.Decimal `json:"downPayment"`
}

type updateQuotationRequest struct {
	Lines       []lineInput     `json:"lines"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shipping"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	DownPayment decimal.Decimal `json:"downPayment"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type overrideRequest struct {
	AcknowledgedConflicts []inventory.Conflict `json:"acknowledgedConflicts"`
}

type returnRequest struct {
	ReturnedAt time.Time `json:"returnedAt"`
}

type recordPaymentRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

type lineResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Unit        string          `json:"unit"`
	RentalStart time.Time       `json:"rentalStart"`
	RentalEnd   time.Time       `json:"rentalEnd"`
}

type orderResponse struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	CustomerID    string          `json:"customerId"`
	VendorID      string          `json:"vendorId"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	DownPayment   decimal.Decimal `json:"downPayment"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	RejectReason  string          `json:"rejectReason,omitempty"`
	Overridden    bool            `json:"overridden,omitempty"`
	SentAt        *time.Time      `json:"sentAt,omitempty"`
	ReturnedAt    *time.Time      `json:"returnedAt,omitempty"`
	Lines         []lineResponse  `json:"lines"`
}

type invoiceResponse struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	Number       string          `json:"number"`
	AmountDue    decimal.Decimal `json:"amountDue"`
	PaymentToken string          `json:"paymentToken,omitempty"`
	SentAt       *time.Time      `json:"sentAt,omitempty"`
}

type returnResponse struct {
	Order   orderResponse    `json:"order"`
	LateFee decimal.Decimal  `json:"lateFee"`
	Invoice *invoiceResponse `json:"invoice,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	lines := make([]lineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = lineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Unit:        string(l.Unit),
			RentalStart: l.RentalStart,
			RentalEnd:   l.RentalEnd,
		}
	}
	return orderResponse{
		ID:            o.ID,
		Reference:     o.Reference,
		CustomerID:    o.CustomerID,
		VendorID:      o.VendorID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Discount:      o.Discount,
		Shipping:      o.Shipping,
		TaxRate:       o.TaxRate,
		DownPayment:   o.DownPayment,
		TotalAmount:   o.TotalAmount,
		RejectReason:  o.RejectReason,
		Overridden:    o.Overridden,
		SentAt:        o.SentAt,
		ReturnedAt:    o.ReturnedAt,
		Lines:         lines,
	}
}

func toInvoiceResponse(inv *invoice.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:           inv.ID,
		OrderID:      inv.OrderID,
		Number:       inv.Number,
		AmountDue:    inv.AmountDue,
		PaymentToken: inv.PaymentToken,
		SentAt:       inv.SentAt,
	}
}

func toLineInputs(lines []lineInput) []order.LineInput {
	inputs := make([]order.LineInput, len(lines))
	for i, l := range lines {
		inputs[i] = order.LineInput{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			RentalStart: l.RentalStart,
			RentalEnd:   l.RentalEnd,
		}
	}
	return inputs
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createQuotationRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orderService.CreateQuotation(r.Context(), actor, order.CreateQuotationRequest{
		CustomerID:  req.CustomerID,
		Lines:       toLineInputs(req.Lines),
		Discount:    req.Discount,
		Shipping:    req.Shipping,
		TaxRate:     req.TaxRate,
		DownPayment: req.DownPayment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) updateQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateQuotationRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orderService.UpdateQuotation(r.Context(), actor, chi.URLParam(r, "orderID"), order.UpdateQuotationRequest{
		Lines:       toLineInputs(req.Lines),
		Discount:    req.Discount,
		Shipping:    req.Shipping,
		TaxRate:     req.TaxRate,
		DownPayment: req.DownPayment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// transition wraps the body-less lifecycle endpoints.
func (h *Handler) transition(op func(r *http.Request, actor order.Actor, orderID string) (*order.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		o, err := op(r, actor, chi.URLParam(r, "orderID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(o))
	}
}

func (h *Handler) sendQuotation(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, actor order.Actor, id string) (*order.Order, error) {
		return h.orderService.SendQuotation(r.Context(), actor, id)
	})(w, r)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, actor order.Actor, id string) (*order.Order, error) {
		return h.orderService.Approve(r.Context(), actor, id)
	})(w, r)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, actor order.Actor, id string) (*order.Order, error) {
		return h.orderService.Confirm(r.Context(), actor, id)
	})(w, r)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, actor order.Actor, id string) (*order.Order, error) {
		return h.orderService.Cancel(r.Context(), actor, id)
	})(w, r)
}

func (h *Handler) pickup(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, actor order.Actor, id string) (*order.Order, error) {
		return h.orderService.Pickup(r.Context(), actor, id)
	})(w, r)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orderService.Reject(r.Context(), actor, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) confirmWithOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orderService.ConfirmWithOverride(r.Context(), actor, chi.URLParam(r, "orderID"), req.AcknowledgedConflicts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	inv, err := h.orderService.CreateInvoice(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) dispatchInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	inv, err := h.orderService.DispatchInvoice(r.Context(), actor, chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) returnOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req returnRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ReturnedAt.IsZero() {
		req.ReturnedAt = time.Now().UTC()
	}

	res, err := h.orderService.Return(r.Context(), actor, chi.URLParam(r, "orderID"), req.ReturnedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := returnResponse{
		Order:   toOrderResponse(res.Order),
		LateFee: res.LateFee,
	}
	if res.Invoice != nil {
		inv := toInvoiceResponse(res.Invoice)
		resp.Invoice = &inv
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orderService.RecordPayment(r.Context(), actor, chi.URLParam(r, "orderID"), order.PaymentStatus(req.PaymentStatus))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	o, err := h.orderService.Get(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.orderService.ListByVendor(r.Context(), actor, vendorID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = toOrderResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}
