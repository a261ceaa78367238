// Package linking implements the account-linking and primary-user
// resolution engine.
//
// The Manager is the linking state machine: it decides whether a login
// method may become, or be attached to, a primary identity, and reports
// structured outcomes when two login methods independently claim the same
// account information. Every mutating operation follows the same shape:
//
//  1. resolve the caller-supplied id to the internal canonical id
//  2. consult the feature gate (before any lock is taken)
//  3. inside one WithLock unit of work: re-read state, run the conflict
//     detector, apply the transition or produce the matching outcome
//
// Expected business states (already primary, conflicting account info,
// linked elsewhere, cannot unlink a root, unknown user, feature disabled)
// are returned as tagged results; a Go error from any operation always means
// an infrastructure failure and leaves state unchanged.
package linking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/getkayan/kayan-link/core/audit"
	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/features"
	"github.com/getkayan/kayan-link/core/tenant"
	"github.com/getkayan/kayan-link/core/useridmapping"
)

// Manager is the linking state machine.
type Manager struct {
	store      domain.Storage
	gate       features.Gate
	resolver   *useridmapping.Resolver
	detector   *Detector
	auditStore audit.AuditStore
	tracer     trace.Tracer
}

// Option configures the Manager.
type Option func(*Manager)

// WithAuditStore records an audit event for every mutation and conflict.
func WithAuditStore(store audit.AuditStore) Option {
	return func(m *Manager) { m.auditStore = store }
}

// WithTracer emits a span per operation.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithTenantScope narrows conflict detection to one tenant instead of the
// application-wide default.
func WithTenantScope(scope tenant.TenantID) Option {
	return func(m *Manager) { m.detector = NewTenantScopedDetector(scope) }
}

// NewManager creates a linking manager over the given storage and feature
// gate.
func NewManager(store domain.Storage, gate features.Gate, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		gate:     gate,
		resolver: useridmapping.NewResolver(store),
		detector: NewDetector(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreatePrimaryUser makes an unlinked login method the root of its own
// primary-user cluster. Calling it on a method that already is a primary
// root succeeds idempotently with WasAlreadyPrimary set.
func (m *Manager) CreatePrimaryUser(ctx context.Context, app tenant.AppID, recipeUserID string, kind useridmapping.IDType) (*CreatePrimaryUserResult, error) {
	ctx, span := m.startSpan(ctx, "linking.CreatePrimaryUser", app, recipeUserID)
	defer endSpan(span)

	internalID, _, err := m.resolver.Resolve(ctx, app, recipeUserID, kind)
	if err != nil {
		return nil, err
	}

	enabled, err := m.gate.IsEnabled(ctx, app, features.AccountLinking)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &CreatePrimaryUserResult{Status: StatusFeatureNotEnabled, Description: featureDisabledMsg}, nil
	}

	var res *CreatePrimaryUserResult
	err = m.store.WithLock(ctx, app, []string{internalID}, func(txn domain.Storage) error {
		lm, err := txn.GetLoginMethod(ctx, app, internalID)
		if err != nil {
			return err
		}
		if lm == nil {
			res = &CreatePrimaryUserResult{Status: StatusUnknownUserID}
			return nil
		}

		if lm.IsPrimaryRoot() {
			user, err := m.userView(ctx, txn, app, lm)
			if err != nil {
				return err
			}
			res = &CreatePrimaryUserResult{Status: StatusOK, WasAlreadyPrimary: true, User: user}
			return nil
		}

		if lm.IsLinked() {
			owner, err := useridmapping.NewResolver(txn).ExternalOrInternal(ctx, app, lm.PrimaryUserID)
			if err != nil {
				return err
			}
			res = &CreatePrimaryUserResult{
				Status:        StatusRecipeUserIDAlreadyLinked,
				PrimaryUserID: owner,
				Description:   "the recipe user is already linked to another primary user",
			}
			return nil
		}

		owner, err := m.detector.FindOwningPrimary(ctx, txn, app, lm.Fingerprint(), internalID)
		if err != nil {
			return err
		}
		if owner != "" {
			visible, err := useridmapping.NewResolver(txn).ExternalOrInternal(ctx, app, owner)
			if err != nil {
				return err
			}
			res = &CreatePrimaryUserResult{
				Status:        StatusAccountInfoAlreadyAssociated,
				PrimaryUserID: visible,
				Description:   "the account info is already associated with another primary user",
			}
			return nil
		}

		if err := txn.SetPrimaryUserID(ctx, app, internalID, internalID); err != nil {
			return err
		}
		lm.PrimaryUserID = internalID

		user, err := m.userView(ctx, txn, app, lm)
		if err != nil {
			return err
		}
		res = &CreatePrimaryUserResult{Status: StatusOK, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case StatusOK:
		if !res.WasAlreadyPrimary {
			m.recordEvent(ctx, audit.EventPrimaryUserCreated, app, internalID, internalID, audit.StatusSuccess, "")
		}
	case StatusAccountInfoAlreadyAssociated, StatusRecipeUserIDAlreadyLinked:
		m.recordEvent(ctx, audit.EventLinkConflict, app, internalID, res.PrimaryUserID, audit.StatusConflict, res.Description)
	}
	return res, nil
}

// LinkAccounts attaches a login method to an existing primary root. The
// target's primary state and the conflict check are recomputed under the
// lock; caller-supplied state is never trusted.
func (m *Manager) LinkAccounts(ctx context.Context, app tenant.AppID, primaryUserID, recipeUserID string, kind useridmapping.IDType) (*LinkAccountsResult, error) {
	ctx, span := m.startSpan(ctx, "linking.LinkAccounts", app, recipeUserID)
	defer endSpan(span)

	primaryInternal, _, err := m.resolver.Resolve(ctx, app, primaryUserID, kind)
	if err != nil {
		return nil, err
	}
	recipeInternal, _, err := m.resolver.Resolve(ctx, app, recipeUserID, kind)
	if err != nil {
		return nil, err
	}

	enabled, err := m.gate.IsEnabled(ctx, app, features.AccountLinking)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &LinkAccountsResult{Status: StatusFeatureNotEnabled, Description: featureDisabledMsg}, nil
	}

	var res *LinkAccountsResult
	err = m.store.WithLock(ctx, app, []string{primaryInternal, recipeInternal}, func(txn domain.Storage) error {
		target, err := txn.GetLoginMethod(ctx, app, primaryInternal)
		if err != nil {
			return err
		}
		if target == nil {
			res = &LinkAccountsResult{Status: StatusUnknownUserID}
			return nil
		}
		if !target.IsPrimaryRoot() {
			res = &LinkAccountsResult{
				Status:      StatusInputUserNotPrimary,
				Description: "the input user is not a primary user",
			}
			return nil
		}

		child, err := txn.GetLoginMethod(ctx, app, recipeInternal)
		if err != nil {
			return err
		}
		if child == nil {
			res = &LinkAccountsResult{Status: StatusUnknownUserID}
			return nil
		}

		if child.PrimaryUserID == target.ID {
			user, err := m.userView(ctx, txn, app, target)
			if err != nil {
				return err
			}
			res = &LinkAccountsResult{Status: StatusOK, AccountsAlreadyLinked: true, User: user}
			return nil
		}
		if child.PrimaryUserID != "" {
			owner, err := useridmapping.NewResolver(txn).ExternalOrInternal(ctx, app, child.PrimaryUserID)
			if err != nil {
				return err
			}
			res = &LinkAccountsResult{
				Status:        StatusRecipeUserIDAlreadyLinked,
				PrimaryUserID: owner,
				Description:   "the recipe user is already linked to another primary user",
			}
			return nil
		}

		owner, err := m.detector.FindOwningPrimary(ctx, txn, app, child.Fingerprint(), target.ID)
		if err != nil {
			return err
		}
		if owner != "" {
			visible, err := useridmapping.NewResolver(txn).ExternalOrInternal(ctx, app, owner)
			if err != nil {
				return err
			}
			res = &LinkAccountsResult{
				Status:        StatusAccountInfoAlreadyAssociated,
				PrimaryUserID: visible,
				Description:   "the account info is already associated with another primary user",
			}
			return nil
		}

		if err := txn.SetPrimaryUserID(ctx, app, child.ID, target.ID); err != nil {
			return err
		}

		user, err := m.userView(ctx, txn, app, target)
		if err != nil {
			return err
		}
		res = &LinkAccountsResult{Status: StatusOK, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case StatusOK:
		if !res.AccountsAlreadyLinked {
			m.recordEvent(ctx, audit.EventAccountsLinked, app, recipeInternal, primaryInternal, audit.StatusSuccess, "")
		}
	case StatusAccountInfoAlreadyAssociated, StatusRecipeUserIDAlreadyLinked:
		m.recordEvent(ctx, audit.EventLinkConflict, app, recipeInternal, res.PrimaryUserID, audit.StatusConflict, res.Description)
	}
	return res, nil
}

// UnlinkAccount detaches a linked child from its cluster. A primary root can
// only be unlinked when it has no children; dissolving the cluster then
// clears its own association. Unlinking an already-unlinked method succeeds
// idempotently.
func (m *Manager) UnlinkAccount(ctx context.Context, app tenant.AppID, recipeUserID string, kind useridmapping.IDType) (*UnlinkAccountResult, error) {
	ctx, span := m.startSpan(ctx, "linking.UnlinkAccount", app, recipeUserID)
	defer endSpan(span)

	internalID, _, err := m.resolver.Resolve(ctx, app, recipeUserID, kind)
	if err != nil {
		return nil, err
	}

	enabled, err := m.gate.IsEnabled(ctx, app, features.AccountLinking)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &UnlinkAccountResult{Status: StatusFeatureNotEnabled, Description: featureDisabledMsg}, nil
	}

	// Pre-read to learn the cluster so its root is covered by the lock.
	// Everything is re-validated under the lock.
	lockIDs := []string{internalID}
	if pre, err := m.store.GetLoginMethod(ctx, app, internalID); err != nil {
		return nil, err
	} else if pre != nil && pre.IsLinked() {
		lockIDs = append(lockIDs, pre.PrimaryUserID)
	}

	var res *UnlinkAccountResult
	err = m.store.WithLock(ctx, app, lockIDs, func(txn domain.Storage) error {
		lm, err := txn.GetLoginMethod(ctx, app, internalID)
		if err != nil {
			return err
		}
		if lm == nil {
			res = &UnlinkAccountResult{Status: StatusUnknownUserID}
			return nil
		}

		if lm.PrimaryUserID == "" {
			res = &UnlinkAccountResult{Status: StatusOK, WasAlreadyUnlinked: true}
			return nil
		}

		if lm.IsPrimaryRoot() {
			members, err := txn.ListByPrimaryUserID(ctx, app, lm.ID)
			if err != nil {
				return err
			}
			for i := range members {
				if members[i].ID != lm.ID {
					res = &UnlinkAccountResult{
						Status:      StatusCannotUnlinkPrimary,
						Description: "the primary user still has linked login methods",
					}
					return nil
				}
			}
			// Childless root: dissolve the cluster.
		}

		if err := txn.ClearPrimaryUserID(ctx, app, lm.ID); err != nil {
			return err
		}
		res = &UnlinkAccountResult{Status: StatusOK}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case StatusOK:
		if !res.WasAlreadyUnlinked {
			m.recordEvent(ctx, audit.EventAccountUnlinked, app, internalID, "", audit.StatusSuccess, "")
		}
	case StatusCannotUnlinkPrimary:
		m.recordEvent(ctx, audit.EventLinkRejected, app, internalID, internalID, audit.StatusRejected, res.Description)
	}
	return res, nil
}

// GetUser returns the aggregate identity view for a caller-supplied id
// without mutating anything.
func (m *Manager) GetUser(ctx context.Context, app tenant.AppID, id string, kind useridmapping.IDType) (*GetUserResult, error) {
	internalID, _, err := m.resolver.Resolve(ctx, app, id, kind)
	if err != nil {
		return nil, err
	}

	lm, err := m.store.GetLoginMethod(ctx, app, internalID)
	if err != nil {
		return nil, err
	}
	if lm == nil {
		return &GetUserResult{Status: StatusUnknownUserID}, nil
	}

	user, err := m.userView(ctx, m.store, app, lm)
	if err != nil {
		return nil, err
	}
	return &GetUserResult{Status: StatusOK, User: user}, nil
}

const featureDisabledMsg = "account linking is not enabled for this app"

func (m *Manager) recordEvent(ctx context.Context, eventType string, app tenant.AppID, subjectID, primaryID, status, message string) {
	if m.auditStore == nil {
		return
	}
	// Audit is best effort; a failed write must not fail the operation.
	_ = m.auditStore.SaveEvent(ctx, &audit.AuditEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		AppID:     string(app),
		SubjectID: subjectID,
		PrimaryID: primaryID,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
}

func (m *Manager) startSpan(ctx context.Context, name string, app tenant.AppID, userID string) (context.Context, trace.Span) {
	if m.tracer == nil {
		return ctx, nil
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("kayanlink.app.id", string(app)),
		attribute.String("kayanlink.recipe_user.id", userID),
	))
}

func endSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}
