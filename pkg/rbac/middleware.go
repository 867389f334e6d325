package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/sims/pkg/auth"
	"github.com/platinummonkey/sims/pkg/contextkeys"
	"github.com/platinummonkey/sims/pkg/httputil"
	"github.com/platinummonkey/sims/pkg/observability"
)

// AccessResolver resolves an email into a UserAccess
type AccessResolver interface {
	Resolve(ctx context.Context, email string) (*UserAccess, error)
}

// WithAccess stores the resolved access record in ctx
func WithAccess(ctx context.Context, access *UserAccess) context.Context {
	return contextkeys.WithAccess(ctx, access)
}

// AccessFromContext returns the access record stored by AccessMiddleware
func AccessFromContext(ctx context.Context) *UserAccess {
	access, ok := ctx.Value(contextkeys.AccessKey).(*UserAccess)
	if !ok {
		return nil
	}
	return access
}

// AccessMiddleware resolves the signed-in principal's access record
type AccessMiddleware struct {
	resolver AccessResolver
}

// NewAccessMiddleware creates the middleware
func NewAccessMiddleware(resolver AccessResolver) *AccessMiddleware {
	return &AccessMiddleware{resolver: resolver}
}

// Handler responds 401 without a principal and 403 when the principal has
// no active role or no permissions for it
func (m *AccessMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := auth.PrincipalFromContext(r.Context())
		if principal == nil {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}

		access, err := m.resolver.Resolve(r.Context(), principal.Email)
		switch {
		case errors.Is(err, ErrNoActiveRole), errors.Is(err, ErrNoRolePermissions):
			httputil.WriteForbidden(w, "No access")
			return
		case err != nil:
			observability.FromContext(r.Context()).
				WithError(err).
				WithField("email", principal.NormalizedEmail()).
				Error("Failed to resolve user access")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to resolve user access")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccess(r.Context(), access)))
	})
}

// RequirePermission gates a handler on a single permission flag
func RequirePermission(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := AccessFromContext(r.Context())
			if access == nil {
				httputil.WriteUnauthorized(w, "Authentication required")
				return
			}
			if !HasPermission(access, p) {
				httputil.WriteForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
