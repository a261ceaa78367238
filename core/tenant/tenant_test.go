package tenant

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestAppContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	if app := AppFromContext(ctx); app != DefaultApp {
		t.Errorf("empty context should yield DefaultApp, got %q", app)
	}

	ctx = WithApp(ctx, "app1")
	if app := AppFromContext(ctx); app != "app1" {
		t.Errorf("expected app1, got %q", app)
	}
}

func TestTenantContextRoundTrip(t *testing.T) {
	ctx := WithTenant(context.Background(), "t1")
	if id := TenantFromContext(ctx); id != "t1" {
		t.Errorf("expected t1, got %q", id)
	}
	if id := TenantFromContext(context.Background()); id != DefaultTenant {
		t.Errorf("empty context should yield DefaultTenant, got %q", id)
	}
}

func TestHeaderResolver(t *testing.T) {
	r := NewHeaderResolver("")

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-App-ID", "app2")

	app, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if app != "app2" {
		t.Errorf("expected app2, got %q", app)
	}
}

func TestHeaderResolver_Default(t *testing.T) {
	r := NewHeaderResolver("")

	req := httptest.NewRequest("POST", "/", nil)
	app, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if app != DefaultApp {
		t.Errorf("missing header should yield DefaultApp, got %q", app)
	}
}
