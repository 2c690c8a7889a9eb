package auth

import (
	"context"
	"errors"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

type ctxKey struct{}

var ErrNoPrincipal = errors.New("principal not in context")

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the caller identity, or ErrNoPrincipal for anonymous/system contexts.
func PrincipalFrom(ctx context.Context) (Principal, error) {
	if ctx == nil {
		return Principal{}, ErrNoPrincipal
	}
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}

func Role(ctx context.Context) (string, error) {
	p, err := PrincipalFrom(ctx)
	if err != nil || p.Role == "" {
		return "", errors.New("role not in context")
	}
	return p.Role, nil
}
