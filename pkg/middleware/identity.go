package middleware

import (
	"context"
	"net/http"
)

// IdentityHeader carries the opaque caller identity supplied by the
// upstream user service.
const IdentityHeader = "X-Caller-Identity"

type identityKey struct{}

// Identity returns middleware that places the caller identity header value
// on the request context. Requests without the header pass through unchanged.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get(IdentityHeader); id != "" {
				r = r.WithContext(WithCaller(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithCaller returns a copy of ctx carrying the caller identity.
func WithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Caller returns the caller identity on ctx, or "anonymous" when none was supplied.
func Caller(ctx context.Context) string {
	if id, ok := ctx.Value(identityKey{}).(string); ok && id != "" {
		return id
	}
	return "anonymous"
}
