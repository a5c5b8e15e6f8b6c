// Package httptransport is the thin HTTP layer over the lifecycle services.
// Handlers decode, resolve a scope, delegate, and encode; no business rule
// lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/tenancy"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/httputil"
	"vettinghub/pkg/requestcontext"
)

type principalKey struct{}

// Authenticator exchanges a bearer token for a principal.
type Authenticator interface {
	PrincipalFromToken(ctx context.Context, raw string) (tenancy.Principal, error)
}

// RequestContext tags every request with a correlation id and pins the
// request clock, so one request observes one instant.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithRequestID(r.Context(), uuid.NewString())
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate verifies the Authorization header and stores the principal.
// Requests without a valid token are rejected before any handler runs.
func Authenticate(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "authentication required")
				return
			}
			principal, err := auth.PrincipalFromToken(r.Context(), raw)
			if err != nil {
				logger.InfoContext(r.Context(), "token rejected",
					"request_id", requestcontext.RequestID(r.Context()))
				unauthorized(w, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principalFrom returns the authenticated principal, zero if the middleware
// did not run.
func principalFrom(ctx context.Context) tenancy.Principal {
	p, _ := ctx.Value(principalKey{}).(tenancy.Principal)
	return p
}

func unauthorized(w http.ResponseWriter, msg string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorBody{
		Error: string(dErrors.CodeAccessDenied), Message: msg,
	})
}
