package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renterra/rental-engine/internal/domain/inventory"
	"github.com/renterra/rental-engine/internal/domain/invoice"
	"github.com/renterra/rental-engine/internal/domain/order"
	"github.com/renterra/rental-engine/internal/domain/product"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{
			name: "stock conflict",
			err: &order.StockConflictError{OrderID: "o1", Conflicts: []inventory.Conflict{
				{ProductID: "p1", RequestedQty: 3, AvailableQty: 2},
			}},
			status: http.StatusConflict,
		},
		{
			name: "invalid transition",
			err: &order.InvalidTransitionError{
				OrderID: "o1", Op: "approve",
				Current: order.StatusReturned, Required: []order.Status{order.StatusQuotation},
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "validation",
			err:    &order.ValidationError{Field: "reason", Reason: "required"},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "payment required",
			err:    &order.PaymentRequiredError{OrderID: "o1", PaymentStatus: order.PaymentUnpaid},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "authorization",
			err:    &order.AuthorizationError{ActorID: "v2", OrderID: "o1"},
			status: http.StatusForbidden,
		},
		{name: "order not found", err: order.ErrNotFound, status: http.StatusNotFound},
		{name: "product not found", err: product.ErrNotFound, status: http.StatusNotFound},
		{name: "invoice not found", err: invoice.ErrNotFound, status: http.StatusNotFound},
		{name: "duplicate invoice", err: invoice.ErrAlreadyExists, status: http.StatusConflict},
		{name: "wrapped not found", err: fmt.Errorf("loading: %w", order.ErrNotFound), status: http.StatusNotFound},
		{name: "unknown", err: fmt.Errorf("connection refused"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.status, resp.Code)
		})
	}
}

func TestMapError_ConflictListSurvives(t *testing.T) {
	conflicts := []inventory.Conflict{
		{ProductID: "p1", ProductName: "Excavator", RequestedQty: 3, AvailableQty: 2,
			Start: time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC)},
	}

	_, resp := mapError(&order.StockConflictError{OrderID: "o1", Conflicts: conflicts})
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, conflicts[0], resp.Conflicts[0])
}

func TestActorFrom(t *testing.T) {
	newReq := func(id, role string) (*httptest.ResponseRecorder, *http.Request) {
		r := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if id != "" {
			r.Header.Set(actorIDHeader, id)
		}
		if role != "" {
			r.Header.Set(actorRoleHeader, role)
		}
		return httptest.NewRecorder(), r
	}

	w, r := newReq("vendor-1", "vendor")
	actor, ok := actorFrom(w, r)
	require.True(t, ok)
	assert.Equal(t, order.Actor{ID: "vendor-1", Role: order.RoleVendor}, actor)

	w, r = newReq("", "vendor")
	_, ok = actorFrom(w, r)
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, r = newReq("x", "superuser")
	_, ok = actorFrom(w, r)
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, r = newReq("x", "")
	_, ok = actorFrom(w, r)
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
