package access

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/campfirehq/campfire/pkg/httputil"
	"github.com/campfirehq/campfire/pkg/observability"
)

// userIDHeader carries the authenticated user's id, set by the upstream
// auth proxy. Absent or empty means anonymous.
const userIDHeader = "X-User-ID"

type callerKey struct{}

// CallerFromRequest returns the authenticated user's id from the request,
// or nil for anonymous callers. IdentityMiddleware must have run first.
func CallerFromRequest(r *http.Request) *int64 {
	if id, ok := r.Context().Value(callerKey{}).(*int64); ok {
		return id
	}
	return nil
}

// IdentityMiddleware extracts the caller identity from the auth header and
// tags the request with an id for log correlation.
func IdentityMiddleware(logger *observability.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()
			ctx := observability.WithRequestID(r.Context(), requestID)
			w.Header().Set("X-Request-ID", requestID)

			if raw := r.Header.Get(userIDHeader); raw != "" {
				userID, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					logger.WithField("request_id", requestID).Warnf("invalid %s header: %q", userIDHeader, raw)
					httputil.WriteBadRequest(w, "invalid user id")
					return
				}
				ctx = context.WithValue(ctx, callerKey{}, &userID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Middleware guards routes with permission checks against a community
// resolved from the {community_id} path variable.
type Middleware struct {
	validator *Validator
}

// NewMiddleware creates route-guarding middleware over the validator.
func NewMiddleware(validator *Validator) *Middleware {
	return &Middleware{validator: validator}
}

// RequirePermission denies the request unless the caller holds the
// permission in the community named by the route.
func (m *Middleware) RequirePermission(perm Permission, opts ValidateOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
			if !ok {
				return
			}

			userID := CallerFromRequest(r)
			decision := m.validator.ValidatePermission(r.Context(), communityID, userID, perm, opts)
			if !decision.Allowed {
				writeDenial(w, userID, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeDenial maps a deny decision onto the HTTP status a client expects:
// 401 for anonymous callers, 402 for payment gates, 403 otherwise.
func writeDenial(w http.ResponseWriter, userID *int64, decision *Decision) {
	status := http.StatusForbidden
	switch {
	case userID == nil:
		status = http.StatusUnauthorized
	case strings.HasPrefix(decision.Reason, "Paid subscription required"):
		status = http.StatusPaymentRequired
	}

	httputil.WriteJSON(w, status, map[string]interface{}{
		"allowed": false,
		"reason":  decision.Reason,
	})
}
