package jwtx

import (
	"slices"
	"strings"
)

// PreAuthAuthority is the only authority carried by a caller who has passed
// the password step but not the second factor.
const PreAuthAuthority = "PRE_AUTH"

// Authorities is the set of permissions attached to an authenticated party.
// It is either a full set of role names, or the pre-auth marker on its own.
// The two never mix: a full set cannot contain PRE_AUTH and a pre-auth set
// cannot carry anything else. The zero value is an empty full set.
type Authorities struct {
	preAuth bool
	names   []string
}

// FullSet builds a full authority set. Duplicates and blank names are
// dropped, and any PRE_AUTH entry is removed.
func FullSet(names ...string) Authorities {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == PreAuthAuthority || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return Authorities{names: out}
}

// PreAuthOnly is the authority set of an intermediate MFA credential.
func PreAuthOnly() Authorities {
	return Authorities{preAuth: true}
}

// ParseAuthorities reads the "authorities" claim. A list containing PRE_AUTH
// at all is treated as pre-auth, whatever else it holds.
func ParseAuthorities(names []string) Authorities {
	if slices.Contains(names, PreAuthAuthority) {
		return PreAuthOnly()
	}
	return FullSet(names...)
}

// IsPreAuth reports whether a is the pre-auth marker.
func (a Authorities) IsPreAuth() bool { return a.preAuth }

// Names returns the wire form of a.
func (a Authorities) Names() []string {
	if a.preAuth {
		return []string{PreAuthAuthority}
	}
	return slices.Clone(a.names)
}

// Grants reports whether a contains name. A pre-auth set grants nothing.
func (a Authorities) Grants(name string) bool {
	if a.preAuth {
		return false
	}
	return slices.Contains(a.names, name)
}

func (a Authorities) String() string {
	return strings.Join(a.Names(), " ")
}
