// Package kgorm provides the GORM-based implementation of the Kayan Link
// storage contracts.
//
// The package registers sqlite (pure Go), postgres, and mysql dialectors and
// exposes the same provider-registry pattern as the rest of the Kayan
// family: Register a name, NewStorage it from configuration.
package kgorm

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/getkayan/kayan-link/core/audit"
	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/tenant"
)

type Repository struct {
	db *gorm.DB

	// locked marks a Repository handed to a WithLock callback; fingerprint
	// scans then lock the rows they match.
	locked bool
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

func (r *Repository) AutoMigrate(models ...any) error {
	baseModels := []any{
		&gormLoginMethod{},
		&gormUserIDMapping{},
		&gormFeatureFlag{},
		&gormAuditEvent{},
	}
	allModels := append(baseModels, models...)
	return r.db.AutoMigrate(allModels...)
}

// WithLock runs fn in one transaction holding FOR UPDATE locks on the given
// login-method rows, taken in sorted order to avoid deadlock. All reads fn
// performs through the transactional Repository observe the same
// transaction, and its fingerprint scans lock the rows they match, so two
// conflicting units of work serialize on each other's row locks and re-read
// committed state. Should two such scans deadlock, the database aborts one
// transaction; that surfaces as an infrastructure error and the caller may
// retry against the committed winner. sqlite serializes the whole
// transaction on its own.
func (r *Repository) WithLock(ctx context.Context, app tenant.AppID, ids []string, fn func(txn domain.Storage) error) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range sorted {
			var row gormLoginMethod
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("app_id = ? AND id = ?", app, id).
				First(&row).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return fn(&Repository{db: tx, locked: true})
	})
}

func (r *Repository) CreateLoginMethod(ctx context.Context, app tenant.AppID, lm *identity.LoginMethod) error {
	lm.AppID = string(app)
	if lm.TimeJoined.IsZero() {
		lm.TimeJoined = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(fromCoreLoginMethod(lm)).Error
}

func (r *Repository) GetLoginMethod(ctx context.Context, app tenant.AppID, id string) (*identity.LoginMethod, error) {
	var row gormLoginMethod
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND id = ?", app, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toCoreLoginMethod(&row), nil
}

func (r *Repository) SetPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID, primaryUserID string) error {
	return r.db.WithContext(ctx).Model(&gormLoginMethod{}).
		Where("app_id = ? AND id = ?", app, loginMethodID).
		Update("primary_user_id", primaryUserID).Error
}

func (r *Repository) ClearPrimaryUserID(ctx context.Context, app tenant.AppID, loginMethodID string) error {
	return r.SetPrimaryUserID(ctx, app, loginMethodID, "")
}

func (r *Repository) FindByFingerprint(ctx context.Context, app tenant.AppID, tid tenant.TenantID, fp identity.Fingerprint) ([]identity.LoginMethod, error) {
	var conds []string
	var args []any
	if fp.Email != "" {
		conds = append(conds, "email = ?")
		args = append(args, fp.Email)
	}
	if fp.PhoneNumber != "" {
		conds = append(conds, "phone_number = ?")
		args = append(args, fp.PhoneNumber)
	}
	if fp.ThirdParty != nil {
		conds = append(conds, "(third_party_id = ? AND third_party_user_id = ?)")
		args = append(args, fp.ThirdParty.ProviderID, fp.ThirdParty.UserID)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx)
	if r.locked {
		// Inside a WithLock unit of work the scan locks what it matches, so
		// concurrent claims over overlapping account info serialize instead
		// of both reading an ownerless snapshot.
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []gormLoginMethod
	err := q.
		Where("app_id = ?", app).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]identity.LoginMethod, 0, len(rows))
	for i := range rows {
		lm := toCoreLoginMethod(&rows[i])
		// Tenant visibility is a JSON list; filter portably in Go.
		if tid != "" && !visibleIn(lm, tid) {
			continue
		}
		out = append(out, *lm)
	}
	return out, nil
}

func visibleIn(lm *identity.LoginMethod, tid tenant.TenantID) bool {
	for _, t := range lm.TenantIDs {
		if t == string(tid) {
			return true
		}
	}
	return false
}

func (r *Repository) ListByPrimaryUserID(ctx context.Context, app tenant.AppID, primaryUserID string) ([]identity.LoginMethod, error) {
	var rows []gormLoginMethod
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND primary_user_id = ?", app, primaryUserID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]identity.LoginMethod, 0, len(rows))
	for i := range rows {
		out = append(out, *toCoreLoginMethod(&rows[i]))
	}
	return out, nil
}

func (r *Repository) ResolveExternalID(ctx context.Context, app tenant.AppID, externalID string) (string, error) {
	var row gormUserIDMapping
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND external_id = ?", app, externalID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.InternalID, nil
}

func (r *Repository) ExternalIDOf(ctx context.Context, app tenant.AppID, internalID string) (string, error) {
	var row gormUserIDMapping
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND internal_id = ?", app, internalID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.ExternalID, nil
}

func (r *Repository) CreateMapping(ctx context.Context, app tenant.AppID, externalID, internalID string) error {
	return r.db.WithContext(ctx).Create(&gormUserIDMapping{
		AppID:      string(app),
		ExternalID: externalID,
		InternalID: internalID,
	}).Error
}

func (r *Repository) DeleteMapping(ctx context.Context, app tenant.AppID, externalID string) error {
	return r.db.WithContext(ctx).
		Delete(&gormUserIDMapping{}, "app_id = ? AND external_id = ?", app, externalID).Error
}

func (r *Repository) GetFeatureFlag(ctx context.Context, app tenant.AppID, feature string) (bool, bool, error) {
	var row gormFeatureFlag
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND feature = ?", app, feature).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return row.Enabled, true, nil
}

func (r *Repository) SetFeatureFlag(ctx context.Context, app tenant.AppID, feature string, enabled bool) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&gormFeatureFlag{
			AppID:     string(app),
			Feature:   feature,
			Enabled:   enabled,
			UpdatedAt: time.Now().UTC(),
		}).Error
}

func (r *Repository) SaveEvent(ctx context.Context, event *audit.AuditEvent) error {
	return r.db.WithContext(ctx).Create(fromCoreAuditEvent(event)).Error
}

func (r *Repository) QueryEvents(ctx context.Context, filter audit.Filter) ([]audit.AuditEvent, error) {
	q := r.db.WithContext(ctx).Model(&gormAuditEvent{})
	if filter.AppID != "" {
		q = q.Where("app_id = ?", filter.AppID)
	}
	if filter.SubjectID != "" {
		q = q.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.PrimaryID != "" {
		q = q.Where("primary_id = ?", filter.PrimaryID)
	}
	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if !filter.StartTime.IsZero() {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q = q.Where("created_at <= ?", filter.EndTime)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []gormAuditEvent
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]audit.AuditEvent, 0, len(rows))
	for i := range rows {
		out = append(out, toCoreAuditEvent(&rows[i]))
	}
	return out, nil
}

func (r *Repository) PurgeEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&gormAuditEvent{}, "created_at < ?", olderThan)
	return res.RowsAffected, res.Error
}
