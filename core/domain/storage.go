// Package domain defines the storage contracts for Kayan Link.
//
// The linking engine is storage-agnostic: it consumes these interfaces and
// never touches a database directly. The kgorm package provides a complete
// GORM-based implementation; any backend that can offer the WithLock
// serialization guarantee can be substituted.
//
// # Interfaces
//
//   - Storage: composite interface combining all operations plus WithLock
//   - LoginMethodStorage: login-method reads and primary-user writes
//   - MappingStorage: external-id alias resolution and management
//   - FeatureStorage: per-application feature-flag overrides
//
// # Conventions
//
// Reads return (nil, nil) for absent rows; errors are reserved for
// infrastructure failures (storage unreachable, transaction aborted). The
// engine turns absent rows into structured business outcomes.
package domain

import (
	"context"

	"github.com/getkayan/kayan-link/core/audit"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/tenant"
)

// Storage defines the interface for all persistence operations.
type Storage interface {
	LoginMethodStorage
	MappingStorage
	FeatureStorage
	audit.AuditStore

	// WithLock runs fn inside one atomic unit of work holding exclusive
	// locks on the given login-method ids. All reads fn performs through the
	// passed Storage observe the lock scope, and all writes commit or roll
	// back together; no partially applied state is ever visible outside fn.
	//
	// Two concurrent WithLock calls whose fingerprint searches could touch
	// overlapping rows must serialize, so the "no two clusters share a
	// fingerprint" invariant never transiently breaks. Implementations lock
	// ids in sorted order to avoid deadlock.
	WithLock(ctx context.Context, app tenant.AppID, ids []string, fn func(txn Storage) error) error
}

// LoginMethodStorage covers login-method reads and primary-user writes.
// Login methods are created by the authentication recipes; the engine only
// rewrites their primary-user association.
type LoginMethodStorage interface {
	CreateLoginMethod(ctx context.Context, app tenant.AppID, lm *identity.LoginMethod) error

	// GetLoginMethod returns the login method or (nil, nil) when absent.
	GetLoginMethod(ctx context.Context, app tenant.AppID, id string) (*identity.LoginMethod, error)

	// SetPrimaryUserID records primaryUserID as the cluster anchor of the
	// login method.
	SetPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID, primaryUserID string) error

	// ClearPrimaryUserID returns the login method to the unlinked state.
	ClearPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID string) error

	// FindByFingerprint returns every login method of the application whose
	// account information overlaps fp. A non-empty tid narrows the search to
	// methods visible in that tenant.
	FindByFingerprint(ctx context.Context, app tenant.AppID, tid tenant.TenantID, fp identity.Fingerprint) ([]identity.LoginMethod, error)

	// ListByPrimaryUserID returns every member of one cluster.
	ListByPrimaryUserID(ctx context.Context, app tenant.AppID, primaryUserID string) ([]identity.LoginMethod, error)
}

// MappingStorage covers the external-id alias layer. The engine only reads
// mappings; creating and deleting them is for the host application.
type MappingStorage interface {
	// ResolveExternalID returns the internal id mapped to externalID, or ""
	// when no mapping exists. Must be a single read.
	ResolveExternalID(ctx context.Context, app tenant.AppID, externalID string) (string, error)

	// ExternalIDOf returns the external alias of internalID, or "" when no
	// mapping exists.
	ExternalIDOf(ctx context.Context, app tenant.AppID, internalID string) (string, error)

	CreateMapping(ctx context.Context, app tenant.AppID, externalID, internalID string) error
	DeleteMapping(ctx context.Context, app tenant.AppID, externalID string) error
}

// FeatureStorage covers per-application feature-flag overrides.
type FeatureStorage interface {
	// GetFeatureFlag returns the override for the feature and whether one is
	// set at all.
	GetFeatureFlag(ctx context.Context, app tenant.AppID, feature string) (enabled bool, found bool, err error)

	SetFeatureFlag(ctx context.Context, app tenant.AppID, feature string, enabled bool) error
}

// IDGenerator is a function that generates a new ID.
type IDGenerator func() string
