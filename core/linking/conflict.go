package linking

import (
	"context"

	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/tenant"
)

// Detector finds the primary cluster, if any, that already owns a piece of
// account information. It must be called with the transaction-scoped storage
// of the surrounding WithLock block so the search observes the lock scope.
type Detector struct {
	// scope narrows the fingerprint search to one tenant. Empty means the
	// default: application-wide uniqueness across all tenants.
	scope tenant.TenantID
}

func NewDetector() *Detector {
	return &Detector{}
}

// NewTenantScopedDetector restricts overlap detection to login methods
// visible in one tenant. Per-tenant isolation is an explicit deployment
// choice; the default remains application-wide.
func NewTenantScopedDetector(scope tenant.TenantID) *Detector {
	return &Detector{scope: scope}
}

// FindOwningPrimary returns the primary-user id of the first cluster other
// than excludingPrimaryID whose account information overlaps fp, or "" when
// no such cluster exists. Login methods that belong to no cluster do not own
// their information and are skipped.
//
// At most one cluster can own a piece of account information; should storage
// transiently hold more (failure recovery), the first found is authoritative.
func (d *Detector) FindOwningPrimary(ctx context.Context, store domain.LoginMethodStorage, app tenant.AppID, fp identity.Fingerprint, excludingPrimaryID string) (string, error) {
	if fp.IsEmpty() {
		return "", nil
	}

	methods, err := store.FindByFingerprint(ctx, app, d.scope, fp)
	if err != nil {
		return "", err
	}

	for i := range methods {
		lm := &methods[i]
		if lm.PrimaryUserID == "" || lm.PrimaryUserID == excludingPrimaryID {
			continue
		}
		if fp.Overlaps(lm.Fingerprint()) {
			return lm.PrimaryUserID, nil
		}
	}
	return "", nil
}
