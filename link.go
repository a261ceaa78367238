package kayanlink

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/getkayan/kayan-link/core/features"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/linking"
	"github.com/getkayan/kayan-link/core/useridmapping"
	"github.com/getkayan/kayan-link/kgorm"
)

// Default types for convenience
type ID = uuid.UUID
type LoginMethod = identity.LoginMethod
type User = identity.User
type AccountInfo = identity.AccountInfo

// NewDefaultLinkingManager creates a linking Manager over a GORM database
// with account linking enabled by default.
func NewDefaultLinkingManager(db *gorm.DB, opts ...linking.Option) *linking.Manager {
	defaults := map[string]bool{features.AccountLinking: true}
	return kgorm.NewDefaultLinkingManager(db, defaults, opts...)
}

// NewDefaultResolver creates a user ID resolver over a GORM database.
func NewDefaultResolver(db *gorm.DB) *useridmapping.Resolver {
	return useridmapping.NewResolver(kgorm.NewRepository(db))
}
