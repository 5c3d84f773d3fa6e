package inbound

import (
	"context"
	"net/http"

	"github.com/mikolajkapica/gister/core"
	"github.com/mikolajkapica/gister/identity"
)

type contextKey string

const identityContextKey contextKey = "gister.identity"

// IdentityMiddleware runs session resolution once per request and stores
// the outcome in the request context. Resolution never fails; operations
// that need identity reject later with a typed error.
func IdentityMiddleware(resolver *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resolved := resolver.Resolve(r.Context(), r.Header)
			ctx := context.WithValue(r.Context(), identityContextKey, resolved)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by IdentityMiddleware,
// or an unauthenticated identity when the middleware did not run.
func IdentityFromContext(ctx context.Context) core.IdentityContext {
	if ctx == nil {
		return core.IdentityContext{Path: core.ResolutionPathNone}
	}
	if resolved, ok := ctx.Value(identityContextKey).(core.IdentityContext); ok {
		return resolved
	}
	return core.IdentityContext{Path: core.ResolutionPathNone}
}
