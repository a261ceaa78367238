// Package tenant defines the multi-tenancy scope types for Kayan Link.
//
// Every entity and every operation in the linking engine is partitioned by an
// application identifier. Account-information uniqueness and the linking
// invariants are enforced at the application level; tenant identifiers are a
// finer partition used only to narrow read visibility, never to weaken the
// uniqueness boundary.
//
// # Scope Propagation
//
// Scopes travel through context:
//
//	ctx = tenant.WithApp(ctx, "app1")
//	app := tenant.AppFromContext(ctx)
//
// The api package resolves the application scope from the incoming request
// (X-App-ID header) before invoking the engine.
package tenant

import (
	"context"
	"net/http"
)

// AppID is the top-level partition within which linking invariants hold.
// Cross-application linking is never permitted.
type AppID string

// TenantID is a read-visibility partition inside one application.
type TenantID string

const (
	// DefaultApp is the application used when a request carries no scope.
	DefaultApp AppID = "public"

	// DefaultTenant is the tenant every login method is visible in unless
	// scoped otherwise.
	DefaultTenant TenantID = "public"
)

type contextKey struct{ name string }

var (
	appContextKey    = &contextKey{"app_id"}
	tenantContextKey = &contextKey{"tenant_id"}
)

// WithApp adds an application scope to the context.
func WithApp(ctx context.Context, app AppID) context.Context {
	return context.WithValue(ctx, appContextKey, app)
}

// AppFromContext extracts the application scope, or DefaultApp if absent.
func AppFromContext(ctx context.Context) AppID {
	if app, ok := ctx.Value(appContextKey).(AppID); ok && app != "" {
		return app
	}
	return DefaultApp
}

// WithTenant adds a tenant scope to the context.
func WithTenant(ctx context.Context, id TenantID) context.Context {
	return context.WithValue(ctx, tenantContextKey, id)
}

// TenantFromContext extracts the tenant scope, or DefaultTenant if absent.
func TenantFromContext(ctx context.Context) TenantID {
	if id, ok := ctx.Value(tenantContextKey).(TenantID); ok && id != "" {
		return id
	}
	return DefaultTenant
}

// ---- Request Resolution ----

// Resolver extracts the application scope from an incoming request.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (AppID, error)
}

// ResolverFunc is an adapter to allow ordinary functions as Resolvers.
type ResolverFunc func(ctx context.Context, r *http.Request) (AppID, error)

func (f ResolverFunc) Resolve(ctx context.Context, r *http.Request) (AppID, error) {
	return f(ctx, r)
}

// HeaderResolver extracts the application scope from a request header.
// Example: X-App-ID: app1
type HeaderResolver struct {
	// HeaderName is the header to read (default: X-App-ID).
	HeaderName string
}

func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = "X-App-ID"
	}
	return &HeaderResolver{HeaderName: headerName}
}

func (r *HeaderResolver) Resolve(ctx context.Context, req *http.Request) (AppID, error) {
	if v := req.Header.Get(r.HeaderName); v != "" {
		return AppID(v), nil
	}
	return DefaultApp, nil
}
