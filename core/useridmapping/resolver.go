// Package useridmapping translates caller-supplied identifiers into internal
// canonical login-method ids.
//
// Host applications may install an external-id mapping so their own ids can
// be used anywhere a login-method id is expected. Resolution happens before
// any linking decision; the reverse direction is used to surface external ids
// in outcomes, including the competing primary id reported on conflicts.
package useridmapping

import (
	"context"

	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/tenant"
)

// IDType states how a caller-supplied id should be interpreted.
type IDType string

const (
	// IDTypeAny tries the mapping first and treats the id as internal when
	// no mapping exists.
	IDTypeAny IDType = "ANY"

	// IDTypeInternal skips mapping lookup entirely.
	IDTypeInternal IDType = "INTERNAL"

	// IDTypeExternal consults the mapping only.
	IDTypeExternal IDType = "EXTERNAL"
)

// Resolver maps between caller-visible and internal identifiers.
type Resolver struct {
	store domain.MappingStorage
}

func NewResolver(store domain.MappingStorage) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the internal id for a caller-supplied one. It is a single
// read against storage; under IDTypeAny an unresolved id passes through
// unchanged and the next stage decides unknown-user handling, while under
// IDTypeExternal a miss yields an empty id so it can never collide with an
// internal one. viaMapping reports whether a mapping was used, so callers
// can substitute the external id back into their response.
//
// Callers that use the result inside a lock must re-validate existence under
// that lock; resolution itself takes none.
func (r *Resolver) Resolve(ctx context.Context, app tenant.AppID, id string, kind IDType) (internalID string, viaMapping bool, err error) {
	if kind == IDTypeInternal {
		return id, false, nil
	}

	mapped, err := r.store.ResolveExternalID(ctx, app, id)
	if err != nil {
		return "", false, err
	}
	if mapped != "" {
		return mapped, true, nil
	}
	if kind == IDTypeExternal {
		return "", false, nil
	}
	return id, false, nil
}

// ExternalOrInternal returns the external alias of an internal id when one
// exists, else the internal id itself. Used to translate competing primary
// ids in conflict outcomes back to the caller's vocabulary.
func (r *Resolver) ExternalOrInternal(ctx context.Context, app tenant.AppID, internalID string) (string, error) {
	if internalID == "" {
		return "", nil
	}
	ext, err := r.store.ExternalIDOf(ctx, app, internalID)
	if err != nil {
		return "", err
	}
	if ext != "" {
		return ext, nil
	}
	return internalID, nil
}
