package identity

// Fingerprint is the tuple of non-empty identifying fields of a login
// method. It is derived, never stored: the conflict detector searches for
// overlapping fingerprints inside the caller's lock scope.
type Fingerprint struct {
	Email       string
	PhoneNumber string
	ThirdParty  *ThirdParty
}

// IsEmpty reports whether the fingerprint carries no identifying field.
func (fp Fingerprint) IsEmpty() bool {
	return fp.Email == "" && fp.PhoneNumber == "" && fp.ThirdParty == nil
}

// Overlaps reports whether two fingerprints share at least one non-empty
// field value exactly.
func (fp Fingerprint) Overlaps(other Fingerprint) bool {
	if fp.Email != "" && fp.Email == other.Email {
		return true
	}
	if fp.PhoneNumber != "" && fp.PhoneNumber == other.PhoneNumber {
		return true
	}
	if fp.ThirdParty != nil && other.ThirdParty != nil &&
		fp.ThirdParty.ProviderID == other.ThirdParty.ProviderID &&
		fp.ThirdParty.UserID == other.ThirdParty.UserID {
		return true
	}
	return false
}

// fingerprintFuncs maps each recipe to its fingerprint extraction. A lookup
// table rather than per-recipe types: the engine needs nothing else from a
// recipe.
var fingerprintFuncs = map[RecipeID]func(AccountInfo) Fingerprint{
	RecipeEmailPassword: func(info AccountInfo) Fingerprint {
		return Fingerprint{Email: info.Email}
	},
	RecipeThirdParty: func(info AccountInfo) Fingerprint {
		return Fingerprint{Email: info.Email, ThirdParty: info.ThirdParty}
	},
	RecipePasswordless: func(info AccountInfo) Fingerprint {
		return Fingerprint{Email: info.Email, PhoneNumber: info.PhoneNumber}
	},
}

// Fingerprint derives the identifying fields of the method according to its
// recipe. Unknown recipes fall back to every non-empty field.
func (lm *LoginMethod) Fingerprint() Fingerprint {
	if fn, ok := fingerprintFuncs[lm.Recipe]; ok {
		return fn(lm.AccountInfo)
	}
	return Fingerprint{
		Email:       lm.Email,
		PhoneNumber: lm.PhoneNumber,
		ThirdParty:  lm.ThirdParty,
	}
}
