// Package requestctx carries request-scoped auth values through context.
package requestctx

import "context"

// userIDContextKey is the context key for authenticated user identity.
type userIDContextKey struct{}

// accessCountContextKey is the context key for per-endpoint request counts.
type accessCountContextKey struct{}

// AccessCount holds the per-endpoint request count for the dimension the
// rate limiter enforced on this request.
type AccessCount struct {
	// PerEndpoint is the number of prior requests against the current
	// endpoint within the active window.
	PerEndpoint int64
}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithAccessCount stores the enforced dimension's endpoint count in context.
func WithAccessCount(ctx context.Context, count AccessCount) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, accessCountContextKey{}, count)
}

// AccessCountFromContext returns the endpoint count stored in context.
func AccessCountFromContext(ctx context.Context) (AccessCount, bool) {
	if ctx == nil {
		return AccessCount{}, false
	}
	value, ok := ctx.Value(accessCountContextKey{}).(AccessCount)
	return value, ok
}
