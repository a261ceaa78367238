package linking

import (
	"context"
	"sort"

	"github.com/getkayan/kayan-link/core/domain"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/tenant"
	"github.com/getkayan/kayan-link/core/useridmapping"
)

// userView builds the aggregate identity of the cluster lm belongs to. The
// visible id is the cluster anchor, substituted with its external alias when
// a mapping exists; internal ids of the individual methods stay internal.
func (m *Manager) userView(ctx context.Context, store domain.Storage, app tenant.AppID, lm *identity.LoginMethod) (*identity.User, error) {
	methods := []identity.LoginMethod{*lm}
	anchor := lm.ID
	if lm.PrimaryUserID != "" {
		anchor = lm.PrimaryUserID
		members, err := store.ListByPrimaryUserID(ctx, app, anchor)
		if err != nil {
			return nil, err
		}
		if len(members) > 0 {
			methods = members
		}
	}

	visible, err := useridmapping.NewResolver(store).ExternalOrInternal(ctx, app, anchor)
	if err != nil {
		return nil, err
	}

	sort.Slice(methods, func(i, j int) bool {
		return methods[i].TimeJoined.Before(methods[j].TimeJoined)
	})

	user := &identity.User{
		ID:            visible,
		IsPrimaryUser: lm.PrimaryUserID != "",
		TimeJoined:    methods[0].TimeJoined,
		Emails:        []string{},
		PhoneNumbers:  []string{},
		ThirdParty:    []identity.ThirdParty{},
		LoginMethods:  methods,
	}

	seenEmail := make(map[string]bool)
	seenPhone := make(map[string]bool)
	seenTP := make(map[identity.ThirdParty]bool)
	for i := range methods {
		lm := &methods[i]
		if lm.Email != "" && !seenEmail[lm.Email] {
			seenEmail[lm.Email] = true
			user.Emails = append(user.Emails, lm.Email)
		}
		if lm.PhoneNumber != "" && !seenPhone[lm.PhoneNumber] {
			seenPhone[lm.PhoneNumber] = true
			user.PhoneNumbers = append(user.PhoneNumbers, lm.PhoneNumber)
		}
		if lm.ThirdParty != nil && !seenTP[*lm.ThirdParty] {
			seenTP[*lm.ThirdParty] = true
			user.ThirdParty = append(user.ThirdParty, *lm.ThirdParty)
		}
	}

	return user, nil
}
