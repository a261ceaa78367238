package linking

import "github.com/getkayan/kayan-link/core/identity"

// Status tags the outcome of a linking operation. Expected business states
// are statuses, never errors; a Go error from the engine always means an
// infrastructure failure.
type Status string

const (
	StatusOK Status = "OK"

	// StatusAccountInfoAlreadyAssociated: another primary cluster of the
	// application already owns overlapping account information.
	StatusAccountInfoAlreadyAssociated Status = "ACCOUNT_INFO_ALREADY_ASSOCIATED_WITH_ANOTHER_PRIMARY_USER_ID_ERROR"

	// StatusRecipeUserIDAlreadyLinked: the login method already belongs to a
	// different primary cluster.
	StatusRecipeUserIDAlreadyLinked Status = "RECIPE_USER_ID_ALREADY_LINKED_WITH_PRIMARY_USER_ID_ERROR"

	// StatusInputUserNotPrimary: the link target is not a primary root. The
	// state is recomputed under the lock, never trusted from the caller.
	StatusInputUserNotPrimary Status = "INPUT_USER_IS_NOT_A_PRIMARY_USER_ERROR"

	// StatusUnknownUserID: the supplied id resolves to no login method.
	StatusUnknownUserID Status = "UNKNOWN_USER_ID_ERROR"

	// StatusFeatureNotEnabled: account linking is gated off for the
	// application. Reported before any lock is taken.
	StatusFeatureNotEnabled Status = "FEATURE_NOT_ENABLED_ERROR"

	// StatusCannotUnlinkPrimary: the method is a primary root with linked
	// children; unlinking it would orphan them.
	StatusCannotUnlinkPrimary Status = "CANNOT_UNLINK_PRIMARY_USER_ERROR"
)

// CreatePrimaryUserResult is the outcome of CreatePrimaryUser.
type CreatePrimaryUserResult struct {
	Status Status `json:"status"`

	// WasAlreadyPrimary is set on OK when the method was a primary root
	// before the call; the operation is idempotent.
	WasAlreadyPrimary bool `json:"wasAlreadyAPrimaryUser"`

	// User is the aggregate view of the resulting cluster, present on OK.
	User *identity.User `json:"user,omitempty"`

	// PrimaryUserID carries the competing owner on conflict outcomes,
	// translated to its external form when a mapping exists.
	PrimaryUserID string `json:"primaryUserId,omitempty"`

	Description string `json:"description,omitempty"`
}

// LinkAccountsResult is the outcome of LinkAccounts.
type LinkAccountsResult struct {
	Status Status `json:"status"`

	// AccountsAlreadyLinked is set on OK when the method was already a child
	// of the requested primary.
	AccountsAlreadyLinked bool `json:"accountsAlreadyLinked"`

	User *identity.User `json:"user,omitempty"`

	PrimaryUserID string `json:"primaryUserId,omitempty"`

	Description string `json:"description,omitempty"`
}

// UnlinkAccountResult is the outcome of UnlinkAccount.
type UnlinkAccountResult struct {
	Status Status `json:"status"`

	// WasAlreadyUnlinked is set on OK when there was nothing to clear.
	WasAlreadyUnlinked bool `json:"wasAlreadyUnlinked"`

	Description string `json:"description,omitempty"`
}

// GetUserResult is the outcome of GetUser.
type GetUserResult struct {
	Status Status         `json:"status"`
	User   *identity.User `json:"user,omitempty"`
}
