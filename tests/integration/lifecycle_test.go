//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

const (
	vendorActor   = "vendor-heavylift:vendor"
	customerActor = "cust-101:customer"
	adminActor    = "ops-1:admin"
)

func window(startDay, endDay int) (time.Time, time.Time) {
	base := time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, startDay), base.AddDate(0, 0, endDay)
}

func createQuotation(t *testing.T, productID string, qty, startDay, endDay int) orderResponse {
	t.Helper()

	start, end := window(startDay, endDay)
	resp := doPost(t, "/api/orders", vendorActor, quotationRequest{
		CustomerID: "cust-101",
		Lines: []lineRequest{
			{ProductID: productID, Quantity: qty, RentalStart: start, RentalEnd: end},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quotation: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func mustTransition(t *testing.T, orderID, action, actor string, body any) orderResponse {
	t.Helper()

	resp := doPost(t, fmt.Sprintf("/api/orders/%s/%s", orderID, action), actor, body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: expected 200, got %d", action, resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestLifecycle_QuotationToReturn(t *testing.T) {
	o := createQuotation(t, "prod-plate-compactor", 2, 0, 4)
	if o.Status != "QUOTATION" {
		t.Fatalf("status: got %s, want QUOTATION", o.Status)
	}
	if o.Reference == "" {
		t.Error("expected a non-empty order reference")
	}

	mustTransition(t, o.ID, "send", vendorActor, nil)
	o = mustTransition(t, o.ID, "approve", customerActor, nil)
	if o.Status != "APPROVED" {
		t.Fatalf("status after approve: got %s", o.Status)
	}

	o = mustTransition(t, o.ID, "confirm", vendorActor, nil)
	if o.Status != "CONFIRMED" {
		t.Fatalf("status after confirm: got %s", o.Status)
	}

	// Invoice the order.
	resp := doPost(t, fmt.Sprintf("/api/orders/%s/invoice", o.ID), vendorActor, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("invoice: expected 201, got %d", resp.StatusCode)
	}
	inv := decodeJSON[invoiceResponse](t, resp)
	resp.Body.Close()
	if inv.Number == "" {
		t.Error("expected a non-empty invoice number")
	}

	// Dispatch it twice: second dispatch regenerates the payment token.
	resp = doPost(t, fmt.Sprintf("/api/invoices/%s/dispatch", inv.ID), vendorActor, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dispatch: expected 200, got %d", resp.StatusCode)
	}
	first := decodeJSON[invoiceResponse](t, resp)
	resp.Body.Close()

	resp = doPost(t, fmt.Sprintf("/api/invoices/%s/dispatch", inv.ID), vendorActor, nil)
	second := decodeJSON[invoiceResponse](t, resp)
	resp.Body.Close()
	if first.PaymentToken == "" || first.PaymentToken == second.PaymentToken {
		t.Error("re-dispatch should mint a fresh payment token")
	}

	// Pickup is gated on payment.
	resp = doPost(t, fmt.Sprintf("/api/orders/%s/pickup", o.ID), vendorActor, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unpaid pickup: expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	mustTransition(t, o.ID, "payments", vendorActor, map[string]string{"paymentStatus": "PAID"})
	o = mustTransition(t, o.ID, "pickup", vendorActor, nil)
	if o.Status != "PICKEDUP" {
		t.Fatalf("status after pickup: got %s", o.Status)
	}

	// Return two days late: DAY unit, 2 units at 85.00 -> fee 340.00.
	_, end := window(0, 4)
	resp = doPost(t, fmt.Sprintf("/api/orders/%s/return", o.ID), vendorActor,
		map[string]time.Time{"returnedAt": end.AddDate(0, 0, 2)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return: expected 200, got %d", resp.StatusCode)
	}
	ret := decodeJSON[returnResponse](t, resp)
	resp.Body.Close()

	if ret.Order.Status != "RETURNED" {
		t.Errorf("status after return: got %s", ret.Order.Status)
	}
	if ret.LateFee != "340" {
		t.Errorf("late fee: got %s, want 340", ret.LateFee)
	}
	if ret.Order.PaymentStatus != "PARTIAL" {
		t.Errorf("payment status after late return: got %s, want PARTIAL", ret.Order.PaymentStatus)
	}
	if ret.Invoice == nil {
		t.Fatal("expected the reconciled invoice in the return response")
	}
}

func TestConfirm_ConflictAndOverride(t *testing.T) {
	// The generator has 3 on hand. First order takes all 3.
	first := createQuotation(t, "prod-generator-60kva", 3, 10, 17)
	mustTransition(t, first.ID, "approve", customerActor, nil)
	mustTransition(t, first.ID, "confirm", vendorActor, nil)

	// Overlapping second order cannot confirm.
	second := createQuotation(t, "prod-generator-60kva", 1, 12, 20)
	mustTransition(t, second.ID, "approve", customerActor, nil)

	resp := doPost(t, fmt.Sprintf("/api/orders/%s/confirm", second.ID), vendorActor, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	conflictErr := decodeJSON[errorResponse](t, resp)
	resp.Body.Close()

	if len(conflictErr.Conflicts) != 1 {
		t.Fatalf("conflicts: got %d, want 1", len(conflictErr.Conflicts))
	}
	c := conflictErr.Conflicts[0]
	if c.RequestedQty != 1 || c.AvailableQty != 0 {
		t.Errorf("conflict quantities: requested %d available %d", c.RequestedQty, c.AvailableQty)
	}

	// The failed confirm left the order retryable.
	resp = doGet(t, "/api/orders/"+second.ID, vendorActor)
	got := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if got.Status != "APPROVED" {
		t.Fatalf("status after failed confirm: got %s, want APPROVED", got.Status)
	}

	// Echoing the conflicts back commits with the override recorded.
	resp = doPost(t, fmt.Sprintf("/api/orders/%s/confirm/override", second.ID), vendorActor,
		map[string]any{"acknowledgedConflicts": conflictErr.Conflicts})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("override: expected 200, got %d", resp.StatusCode)
	}
	overridden := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if overridden.Status != "CONFIRMED" || !overridden.Overridden {
		t.Errorf("override result: status %s overridden %v", overridden.Status, overridden.Overridden)
	}
}

func TestAuth_MissingAndWrongActor(t *testing.T) {
	resp := doGet(t, "/api/products?vendorId=vendor-heavylift", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no actor: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	o := createQuotation(t, "prod-scissor-lift-12m", 1, 30, 32)

	// Another vendor cannot read the order.
	resp = doGet(t, "/api/orders/"+o.ID, "vendor-siteworks:vendor")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong vendor: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Admins can.
	resp = doGet(t, "/api/orders/"+o.ID, adminActor)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin read: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReject_RequiresReason(t *testing.T) {
	o := createQuotation(t, "prod-scissor-lift-12m", 1, 40, 42)

	resp := doPost(t, fmt.Sprintf("/api/orders/%s/reject", o.ID), vendorActor, map[string]string{"reason": ""})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty reason: expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	rejected := mustTransition(t, o.ID, "reject", vendorActor, map[string]string{"reason": "equipment withdrawn"})
	if rejected.Status != "REJECTED" {
		t.Fatalf("status: got %s, want REJECTED", rejected.Status)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/does-not-exist", adminActor)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
