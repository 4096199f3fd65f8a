package main

import (
	"net/http"
	"strconv"
	"time"

	dErrors "idmask/pkg/domain-errors"
	"idmask/pkg/platform/audit"
	"idmask/pkg/platform/audit/store/memory"
	"idmask/pkg/platform/httputil"
)

const (
	auditTrailCapacity   = 1000
	defaultAuditLimit    = 50
	auditDeliveryTimeout = 5 * time.Second
	auditCloseTimeout    = 10 * time.Second
)

type auditTrailResponse struct {
	Events []audit.Event `json:"events"`
}

// auditTrail serves GET /api/v1/audit?limit=N, newest events last.
func auditTrail(trail *memory.InMemoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > auditTrailCapacity {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 1000"))
				return
			}
			limit = n
		}
		events, err := trail.ListRecent(r.Context(), limit)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
			return
		}
		if events == nil {
			events = []audit.Event{}
		}
		httputil.WriteJSON(w, http.StatusOK, auditTrailResponse{Events: events})
	}
}
