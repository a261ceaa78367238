// Package features provides the feature gate consulted by the linking
// engine.
//
// Account linking is a licensed capability: every mutating operation checks
// the gate for its application scope before acquiring any storage lock, so a
// disabled feature never takes locks. Gates compose: a StoreGate reads
// per-application overrides from storage and falls back to static defaults,
// and a RedisGate caches decisions in front of any inner gate for
// distributed deployments.
package features

import (
	"context"

	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/tenant"
)

// AccountLinking is the feature consulted by every linking operation.
const AccountLinking = "account_linking"

// Gate answers whether a feature is enabled for an application. A false
// answer is a caller-fixable condition, not a transient failure; errors are
// infrastructure only.
type Gate interface {
	IsEnabled(ctx context.Context, app tenant.AppID, feature string) (bool, error)
}

// GateFunc is an adapter to allow ordinary functions as Gates.
type GateFunc func(ctx context.Context, app tenant.AppID, feature string) (bool, error)

func (f GateFunc) IsEnabled(ctx context.Context, app tenant.AppID, feature string) (bool, error) {
	return f(ctx, app, feature)
}

// StaticGate answers from a fixed defaults map regardless of application.
type StaticGate struct {
	defaults map[string]bool
}

func NewStaticGate(defaults map[string]bool) *StaticGate {
	if defaults == nil {
		defaults = make(map[string]bool)
	}
	return &StaticGate{defaults: defaults}
}

func (g *StaticGate) IsEnabled(ctx context.Context, app tenant.AppID, feature string) (bool, error) {
	return g.defaults[feature], nil
}

// StoreGate reads per-application overrides from storage, falling back to an
// inner gate when no override is set.
type StoreGate struct {
	store    domain.FeatureStorage
	fallback Gate
}

func NewStoreGate(store domain.FeatureStorage, fallback Gate) *StoreGate {
	if fallback == nil {
		fallback = NewStaticGate(nil)
	}
	return &StoreGate{store: store, fallback: fallback}
}

func (g *StoreGate) IsEnabled(ctx context.Context, app tenant.AppID, feature string) (bool, error) {
	enabled, found, err := g.store.GetFeatureFlag(ctx, app, feature)
	if err != nil {
		return false, err
	}
	if found {
		return enabled, nil
	}
	return g.fallback.IsEnabled(ctx, app, feature)
}
