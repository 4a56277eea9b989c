package agent

import (
	"context"
	"errors"
)

type backendKey struct{}

// WithBackend attaches the session's backend so downstream calls made on
// its behalf can borrow its credentials.
func WithBackend(ctx context.Context, b Backend) context.Context {
	return context.WithValue(ctx, backendKey{}, b)
}

// ContextTokens hands out the access token of the backend carried by ctx.
type ContextTokens struct{}

func (ContextTokens) AccessToken(ctx context.Context) (string, error) {
	b, ok := ctx.Value(backendKey{}).(Backend)
	if !ok || b == nil {
		return "", errors.New("agent: no backend in context")
	}
	return b.AccessToken(ctx)
}
