package linking

import (
	"context"
	"sync"
	"time"

	"github.com/getkayan/kayan-link/core/audit"
	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/tenant"
)

// memStorage is an in-memory domain.Storage. WithLock holds one coarse
// mutex for the whole unit of work, which trivially satisfies the
// serialization contract and makes the concurrency tests meaningful.
type memStorage struct {
	mu       sync.Mutex
	methods  map[string]*identity.LoginMethod // app + ":" + id
	mappings map[string]string                // app + ":" + external -> internal
	reverse  map[string]string                // app + ":" + internal -> external
	flags    map[string]bool                  // app + ":" + feature
	events   []audit.AuditEvent
}

func newMemStorage() *memStorage {
	return &memStorage{
		methods:  make(map[string]*identity.LoginMethod),
		mappings: make(map[string]string),
		reverse:  make(map[string]string),
		flags:    make(map[string]bool),
	}
}

func key(app tenant.AppID, id string) string { return string(app) + ":" + id }

// seed inserts a login method outside any lock, for test setup.
func (s *memStorage) seed(app tenant.AppID, lm *identity.LoginMethod) {
	lm.AppID = string(app)
	if lm.TimeJoined.IsZero() {
		lm.TimeJoined = time.Now().UTC()
	}
	cp := *lm
	s.methods[key(app, lm.ID)] = &cp
}

func (s *memStorage) WithLock(ctx context.Context, app tenant.AppID, ids []string, fn func(txn domain.Storage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTxn{s})
}

func (s *memStorage) CreateLoginMethod(ctx context.Context, app tenant.AppID, lm *identity.LoginMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed(app, lm)
	return nil
}

func (s *memStorage) GetLoginMethod(ctx context.Context, app tenant.AppID, id string) (*identity.LoginMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(app, id), nil
}

func (s *memStorage) SetPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID, primaryUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPrimaryLocked(app, loginMethodID, primaryUserID)
}

func (s *memStorage) ClearPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPrimaryLocked(app, loginMethodID, "")
}

func (s *memStorage) FindByFingerprint(ctx context.Context, app tenant.AppID, tid tenant.TenantID, fp identity.Fingerprint) ([]identity.LoginMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByFingerprintLocked(app, tid, fp), nil
}

func (s *memStorage) ListByPrimaryUserID(ctx context.Context, app tenant.AppID, primaryUserID string) ([]identity.LoginMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listByPrimaryLocked(app, primaryUserID), nil
}

func (s *memStorage) ResolveExternalID(ctx context.Context, app tenant.AppID, externalID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappings[key(app, externalID)], nil
}

func (s *memStorage) ExternalIDOf(ctx context.Context, app tenant.AppID, internalID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reverse[key(app, internalID)], nil
}

func (s *memStorage) CreateMapping(ctx context.Context, app tenant.AppID, externalID, internalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[key(app, externalID)] = internalID
	s.reverse[key(app, internalID)] = externalID
	return nil
}

func (s *memStorage) DeleteMapping(ctx context.Context, app tenant.AppID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	internal := s.mappings[key(app, externalID)]
	delete(s.mappings, key(app, externalID))
	delete(s.reverse, key(app, internal))
	return nil
}

func (s *memStorage) GetFeatureFlag(ctx context.Context, app tenant.AppID, feature string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled, found := s.flags[key(app, feature)]
	return enabled, found, nil
}

func (s *memStorage) SetFeatureFlag(ctx context.Context, app tenant.AppID, feature string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key(app, feature)] = enabled
	return nil
}

func (s *memStorage) SaveEvent(ctx context.Context, event *audit.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *memStorage) QueryEvents(ctx context.Context, filter audit.Filter) ([]audit.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.AuditEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *memStorage) PurgeEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// ---- lock-free internals, shared with memTxn ----

func (s *memStorage) getLocked(app tenant.AppID, id string) *identity.LoginMethod {
	if lm, ok := s.methods[key(app, id)]; ok {
		cp := *lm
		return &cp
	}
	return nil
}

func (s *memStorage) setPrimaryLocked(app tenant.AppID, id, primaryUserID string) error {
	if lm, ok := s.methods[key(app, id)]; ok {
		lm.PrimaryUserID = primaryUserID
	}
	return nil
}

func (s *memStorage) findByFingerprintLocked(app tenant.AppID, tid tenant.TenantID, fp identity.Fingerprint) []identity.LoginMethod {
	var out []identity.LoginMethod
	for _, lm := range s.methods {
		if lm.AppID != string(app) {
			continue
		}
		if tid != "" && !visibleIn(lm, tid) {
			continue
		}
		if fp.Overlaps(lm.Fingerprint()) {
			out = append(out, *lm)
		}
	}
	return out
}

func visibleIn(lm *identity.LoginMethod, tid tenant.TenantID) bool {
	for _, t := range lm.TenantIDs {
		if t == string(tid) {
			return true
		}
	}
	return false
}

func (s *memStorage) listByPrimaryLocked(app tenant.AppID, primaryUserID string) []identity.LoginMethod {
	var out []identity.LoginMethod
	for _, lm := range s.methods {
		if lm.AppID == string(app) && lm.PrimaryUserID == primaryUserID {
			out = append(out, *lm)
		}
	}
	return out
}

// memTxn is the view handed to WithLock callbacks; the surrounding mutex is
// already held, so every call goes straight to the internals.
type memTxn struct {
	s *memStorage
}

func (t *memTxn) WithLock(ctx context.Context, app tenant.AppID, ids []string, fn func(txn domain.Storage) error) error {
	return fn(t)
}

func (t *memTxn) CreateLoginMethod(ctx context.Context, app tenant.AppID, lm *identity.LoginMethod) error {
	t.s.seed(app, lm)
	return nil
}

func (t *memTxn) GetLoginMethod(ctx context.Context, app tenant.AppID, id string) (*identity.LoginMethod, error) {
	return t.s.getLocked(app, id), nil
}

func (t *memTxn) SetPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID, primaryUserID string) error {
	return t.s.setPrimaryLocked(app, loginMethodID, primaryUserID)
}

func (t *memTxn) ClearPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID string) error {
	return t.s.setPrimaryLocked(app, loginMethodID, "")
}

func (t *memTxn) FindByFingerprint(ctx context.Context, app tenant.AppID, tid tenant.TenantID, fp identity.Fingerprint) ([]identity.LoginMethod, error) {
	return t.s.findByFingerprintLocked(app, tid, fp), nil
}

func (t *memTxn) ListByPrimaryUserID(ctx context.Context, app tenant.AppID, primaryUserID string) ([]identity.LoginMethod, error) {
	return t.s.listByPrimaryLocked(app, primaryUserID), nil
}

func (t *memTxn) ResolveExternalID(ctx context.Context, app tenant.AppID, externalID string) (string, error) {
	return t.s.mappings[key(app, externalID)], nil
}

func (t *memTxn) ExternalIDOf(ctx context.Context, app tenant.AppID, internalID string) (string, error) {
	return t.s.reverse[key(app, internalID)], nil
}

func (t *memTxn) CreateMapping(ctx context.Context, app tenant.AppID, externalID, internalID string) error {
	t.s.mappings[key(app, externalID)] = internalID
	t.s.reverse[key(app, internalID)] = externalID
	return nil
}

func (t *memTxn) DeleteMapping(ctx context.Context, app tenant.AppID, externalID string) error {
	internal := t.s.mappings[key(app, externalID)]
	delete(t.s.mappings, key(app, externalID))
	delete(t.s.reverse, key(app, internal))
	return nil
}

func (t *memTxn) GetFeatureFlag(ctx context.Context, app tenant.AppID, feature string) (bool, bool, error) {
	enabled, found := t.s.flags[key(app, feature)]
	return enabled, found, nil
}

func (t *memTxn) SetFeatureFlag(ctx context.Context, app tenant.AppID, feature string, enabled bool) error {
	t.s.flags[key(app, feature)] = enabled
	return nil
}

func (t *memTxn) SaveEvent(ctx context.Context, event *audit.AuditEvent) error {
	t.s.events = append(t.s.events, *event)
	return nil
}

func (t *memTxn) QueryEvents(ctx context.Context, filter audit.Filter) ([]audit.AuditEvent, error) {
	return nil, nil
}

func (t *memTxn) PurgeEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}
