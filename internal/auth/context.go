package auth

import "context"

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying p. Downstream services
// read it through RequireAuthenticated and RequireAdmin.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext reports the principal set by ContextWithPrincipal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
