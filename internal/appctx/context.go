// Package appctx carries the resolved caller identity through request contexts.
package appctx

import "context"

type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyPrincipal = ContextKey("Principal")

	// ContextKeySkipTenantScope disables tenant scoping for internal jobs
	// that iterate across tenants.
	ContextKeySkipTenantScope = ContextKey("SkipTenantScope")
)

// Principal is the identity supplied by the authentication collaborator.
type Principal struct {
	TenantID string
	UserID   uint
	IsAdmin  bool
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok && p.TenantID != ""
}

func TenantID(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.TenantID
}

func WithoutTenantScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeySkipTenantScope, true)
}

func SkipTenantScope(ctx context.Context) bool {
	v, ok := ctx.Value(ContextKeySkipTenantScope).(bool)
	return ok && v
}
