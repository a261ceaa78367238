// Package identity provides the core identity types for Kayan Link.
//
// The central type is LoginMethod: one authentication record created by a
// sign-in method (password, third-party, passwordless). Login methods are
// grouped into primary-user clusters by the linking engine: a method becomes
// primary by recording its own id as its primary-user id, and other methods
// join the cluster by pointing their primary-user id at it.
//
// # Linking States
//
// A LoginMethod is in exactly one of three states:
//   - unlinked: PrimaryUserID is empty
//   - primary root: PrimaryUserID equals its own ID
//   - linked child: PrimaryUserID names another login method
//
// # Account-Info Fingerprints
//
// The identifying fields of a login method (email, phone number, third-party
// provider+subject) form its fingerprint. Two fingerprints overlap when they
// share at least one non-empty field value exactly; overlap across distinct
// primary clusters of one application is the conflict the engine prevents.
package identity

import (
	"database/sql/driver"
	"errors"
	"time"
)

// RecipeID names the authentication method that created a login method.
type RecipeID string

const (
	RecipeEmailPassword RecipeID = "emailpassword"
	RecipeThirdParty    RecipeID = "thirdparty"
	RecipePasswordless  RecipeID = "passwordless"
)

// JSON is a custom type for handling JSON data in various storages.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("invalid type for JSON")
	}
	return nil
}

// ThirdParty identifies a federated provider subject.
type ThirdParty struct {
	ProviderID string `json:"id"`
	UserID     string `json:"userId"`
}

// AccountInfo is the identifying information a login method carries.
// Which fields are set depends on the recipe.
type AccountInfo struct {
	Email       string      `json:"email,omitempty"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	ThirdParty  *ThirdParty `json:"thirdParty,omitempty"`
}

// LoginMethod is one authentication record. Login methods are created by
// their owning recipe's sign-up flow; the linking engine only reads them and
// rewrites their primary-user association.
type LoginMethod struct {
	ID     string   `json:"recipeUserId"`
	AppID  string   `json:"-"`
	Recipe RecipeID `json:"recipeId"`
	AccountInfo

	// PrimaryUserID is empty while unlinked, the method's own id once it is a
	// primary root, and another method's id while linked.
	PrimaryUserID string `json:"-"`

	// TenantIDs lists the tenants the method is visible in. Visibility only;
	// uniqueness is application-wide.
	TenantIDs []string `json:"tenantIds,omitempty"`

	TimeJoined time.Time `json:"timeJoined"`
	Verified   bool      `json:"verified"`
}

// IsPrimaryRoot reports whether the method anchors its own cluster.
func (lm *LoginMethod) IsPrimaryRoot() bool {
	return lm.PrimaryUserID != "" && lm.PrimaryUserID == lm.ID
}

// IsLinked reports whether the method is a child of another primary.
func (lm *LoginMethod) IsLinked() bool {
	return lm.PrimaryUserID != "" && lm.PrimaryUserID != lm.ID
}

// User is the aggregate view of one primary-user cluster: every login method
// sharing one primary-user id, with their account information merged. For an
// unlinked method the aggregate is the method alone.
type User struct {
	// ID is the caller-visible identifier. When the request reached the
	// engine through an external-id mapping, this is the external id.
	ID            string        `json:"id"`
	IsPrimaryUser bool          `json:"isPrimaryUser"`
	TimeJoined    time.Time     `json:"timeJoined"`
	Emails        []string      `json:"emails"`
	PhoneNumbers  []string      `json:"phoneNumbers"`
	ThirdParty    []ThirdParty  `json:"thirdParty"`
	LoginMethods  []LoginMethod `json:"loginMethods"`
}
