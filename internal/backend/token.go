// internal/backend/token.go
package backend

import "context"

type tokenKey struct{}

// WithToken returns a context whose backend calls are authenticated with the
// caller's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}
