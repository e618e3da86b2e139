package handler

import (
	"net/http"

	"github.com/renterra/rental-engine/internal/domain/order"
)

// Actor identity headers, set by the authenticating gateway in front of
// this service.
const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
)

// actorFrom reads the authenticated actor from the request headers. A false
// return means the 401 response has already been written.
func actorFrom(w http.ResponseWriter, r *http.Request) (order.Actor, bool) {
	actor := order.Actor{
		ID:   r.Header.Get(actorIDHeader),
		Role: order.Role(r.Header.Get(actorRoleHeader)),
	}

	switch actor.Role {
	case order.RoleVendor, order.RoleCustomer, order.RoleAdmin:
	default:
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "unknown actor role",
		})
		return order.Actor{}, false
	}
	if actor.ID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "missing actor id",
		})
		return order.Actor{}, false
	}
	return actor, true
}
