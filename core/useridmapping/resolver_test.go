package useridmapping

import (
	"context"
	"errors"
	"testing"

	"github.com/getkayan/kayan-link/core/tenant"
)

type mockMappingStorage struct {
	byExternal map[string]string
	byInternal map[string]string
	err        error
}

func newMockMappingStorage() *mockMappingStorage {
	return &mockMappingStorage{
		byExternal: make(map[string]string),
		byInternal: make(map[string]string),
	}
}

func (m *mockMappingStorage) ResolveExternalID(ctx context.Context, app tenant.AppID, externalID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.byExternal[string(app)+":"+externalID], nil
}

func (m *mockMappingStorage) ExternalIDOf(ctx context.Context, app tenant.AppID, internalID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.byInternal[string(app)+":"+internalID], nil
}

func (m *mockMappingStorage) CreateMapping(ctx context.Context, app tenant.AppID, externalID, internalID string) error {
	m.byExternal[string(app)+":"+externalID] = internalID
	m.byInternal[string(app)+":"+internalID] = externalID
	return nil
}

func (m *mockMappingStorage) DeleteMapping(ctx context.Context, app tenant.AppID, externalID string) error {
	internal := m.byExternal[string(app)+":"+externalID]
	delete(m.byExternal, string(app)+":"+externalID)
	delete(m.byInternal, string(app)+":"+internal)
	return nil
}

func TestResolve_AnyWithMapping(t *testing.T) {
	store := newMockMappingStorage()
	store.CreateMapping(context.Background(), "app1", "e1", "i1")
	r := NewResolver(store)

	id, viaMapping, err := r.Resolve(context.Background(), "app1", "e1", IDTypeAny)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "i1" || !viaMapping {
		t.Errorf("expected (i1, true), got (%q, %v)", id, viaMapping)
	}
}

func TestResolve_AnyPassthrough(t *testing.T) {
	r := NewResolver(newMockMappingStorage())

	id, viaMapping, err := r.Resolve(context.Background(), "app1", "i1", IDTypeAny)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "i1" || viaMapping {
		t.Errorf("unmapped id should pass through, got (%q, %v)", id, viaMapping)
	}
}

func TestResolve_InternalSkipsMapping(t *testing.T) {
	store := newMockMappingStorage()
	store.CreateMapping(context.Background(), "app1", "i1", "other")
	r := NewResolver(store)

	id, viaMapping, err := r.Resolve(context.Background(), "app1", "i1", IDTypeInternal)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "i1" || viaMapping {
		t.Errorf("internal kind must not consult the mapping, got (%q, %v)", id, viaMapping)
	}
}

func TestResolve_ExternalOnly(t *testing.T) {
	store := newMockMappingStorage()
	store.CreateMapping(context.Background(), "app1", "e1", "i1")
	r := NewResolver(store)

	id, viaMapping, err := r.Resolve(context.Background(), "app1", "e1", IDTypeExternal)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "i1" || !viaMapping {
		t.Errorf("expected (i1, true), got (%q, %v)", id, viaMapping)
	}

	// A miss must not fall back to treating the id as internal: an external
	// id that happens to equal some internal id would otherwise mis-resolve.
	id, viaMapping, err = r.Resolve(context.Background(), "app1", "i1", IDTypeExternal)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "" || viaMapping {
		t.Errorf("unmapped external id should resolve to nothing, got (%q, %v)", id, viaMapping)
	}
}

func TestResolve_AppScoped(t *testing.T) {
	store := newMockMappingStorage()
	store.CreateMapping(context.Background(), "app1", "e1", "i1")
	r := NewResolver(store)

	id, viaMapping, err := r.Resolve(context.Background(), "app2", "e1", IDTypeAny)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "e1" || viaMapping {
		t.Errorf("mapping of another app must not apply, got (%q, %v)", id, viaMapping)
	}
}

func TestExternalOrInternal(t *testing.T) {
	store := newMockMappingStorage()
	store.CreateMapping(context.Background(), "app1", "e1", "i1")
	r := NewResolver(store)

	out, err := r.ExternalOrInternal(context.Background(), "app1", "i1")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if out != "e1" {
		t.Errorf("expected external alias e1, got %q", out)
	}

	out, _ = r.ExternalOrInternal(context.Background(), "app1", "i2")
	if out != "i2" {
		t.Errorf("unmapped internal id should come back unchanged, got %q", out)
	}
}

func TestResolve_InfrastructureError(t *testing.T) {
	store := newMockMappingStorage()
	store.err = errors.New("storage down")
	r := NewResolver(store)

	if _, _, err := r.Resolve(context.Background(), "app1", "e1", IDTypeAny); err == nil {
		t.Error("storage failure should propagate")
	}
}
