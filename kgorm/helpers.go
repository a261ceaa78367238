package kgorm

import (
	"gorm.io/gorm"

	"github.com/getkayan/kayan-link/core/features"
	"github.com/getkayan/kayan-link/core/linking"
)

// NewDefaultLinkingManager creates a linking Manager over a GORM database,
// with the feature gate reading per-application overrides from the same
// storage and falling back to defaults. Audit events go to the same
// database.
func NewDefaultLinkingManager(db *gorm.DB, defaults map[string]bool, opts ...linking.Option) *linking.Manager {
	repo := NewRepository(db)
	gate := features.NewStoreGate(repo, features.NewStaticGate(defaults))
	opts = append([]linking.Option{linking.WithAuditStore(repo)}, opts...)
	return linking.NewManager(repo, gate, opts...)
}
