package permissions

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"plasa/facts"
	"plasa/plasa"
)

type Role int

const (
	RoleHolder Role = iota
	RoleMod
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = [...]string{"holder", "mod", "admin", "superAdmin"}

func (r Role) String() string {
	if r < RoleHolder || r > RoleSuperAdmin {
		return "unknown"
	}
	return roleNames[r]
}

func ParseRole(s string) (Role, bool) {
	for i, n := range roleNames {
		if strings.EqualFold(n, s) {
			return Role(i), true
		}
	}
	return RoleHolder, false
}

// Bundle is the default Set for each role, indexed by Role.
type Bundle [4]Set

// DefaultBundle is what a space gets when it does not declare its own.
var DefaultBundle = Bundle{
	RoleHolder: 0,
	RoleMod: SetOf(UpdateQuestionInfo, VetoFixedQuestion, VetoOpenQuestion,
		VetoOpenQuestionOption, AddOpenQuestionOption),
	RoleAdmin: SetOf(UpdateQuestionInfo, VetoFixedQuestion, VetoOpenQuestion,
		VetoOpenQuestionOption, AddOpenQuestionOption, UpdateSpaceInfo,
		UpdateQuestionDeadline, UpdateQuestionPoints, CreateFixedQuestion,
		CreateOpenQuestion, LiftVetoFixedQuestion, LiftVetoOpenQuestion,
		LiftVetoOpenQuestionOption),
	RoleSuperAdmin: AllSet,
}

// Normalize makes every role hold everything the roles below it hold.
func (b Bundle) Normalize() Bundle {
	for r := RoleMod; r <= RoleSuperAdmin; r++ {
		b[r] |= b[r-1]
	}
	return b
}

// ParseBundle reads a role->permission names map. Roles left out get nothing
// beyond what Normalize carries up from below.
func ParseBundle(m map[string][]string) (Bundle, error) {
	var b Bundle
	for role, perms := range m {
		r, ok := ParseRole(role)
		if !ok {
			return b, errors.Errorf("unknown role %q", role)
		}
		for _, name := range perms {
			p, ok := ParsePermission(name)
			if !ok {
				return b, errors.Errorf("unknown permission %q for role %s", name, role)
			}
			b[r] = b[r].With(p)
		}
	}
	return b.Normalize(), nil
}

// Override is an explicit per-viewer grant or revoke. A key is never in both.
type Override struct {
	Grant  Set
	Revoke Set
}

func ParseOverride(m map[string]bool) (Override, error) {
	var o Override
	for name, on := range m {
		p, ok := ParsePermission(name)
		if !ok {
			return o, errors.Errorf("unknown permission %q", name)
		}
		if on {
			o.Grant = o.Grant.With(p)
		} else {
			o.Revoke = o.Revoke.With(p)
		}
	}
	if o.Grant&o.Revoke != 0 {
		return o, errors.Errorf("permissions %s both granted and revoked", o.Grant&o.Revoke)
	}
	return o, nil
}

type Input struct {
	Role Role
	// Holds is true when the viewer has a positive balance of the space's points.
	Holds bool
	// Defaults is the space's own bundle; nil means DefaultBundle.
	Defaults *Bundle
	Override Override
}

// Roles is the cumulative role view: a superAdmin is also an admin, a mod and a
// holder.
type Roles struct {
	SuperAdmin bool `json:"superAdmin"`
	Admin      bool `json:"admin"`
	Mod        bool `json:"mod"`
	Holder     bool `json:"holder"`
}

type Resolution struct {
	Role        Role
	Roles       Roles
	Permissions Set
}

// Resolve computes effective[k] = override[k] ?? default[role][k]. It reads
// nothing and holds no state, so equal inputs always give equal results.
func Resolve(in Input) Resolution {
	bundle := DefaultBundle
	if in.Defaults != nil {
		bundle = in.Defaults.Normalize()
	}
	role := in.Role
	if role < RoleHolder || role > RoleSuperAdmin {
		role = RoleHolder
	}
	effective := bundle[role]
	effective = (effective | in.Override.Grant) &^ in.Override.Revoke
	return Resolution{
		Role: role,
		Roles: Roles{
			SuperAdmin: role >= RoleSuperAdmin,
			Admin:      role >= RoleAdmin,
			Mod:        role >= RoleMod,
			Holder:     role >= RoleMod || in.Holds,
		},
		Permissions: effective,
	}
}

// Load reads the permission facts of space for account as of r's anchor. Missing
// facts fall back to the protocol defaults: no role means holder, no bundle means
// DefaultBundle, no override means none. An empty account is an unknown viewer
// and reads nothing account-specific.
func Load(ctx context.Context, r facts.Reader, space plasa.Address, account plasa.Account) (Input, error) {
	var in Input
	f, err := r.Read(ctx, facts.Query{Kind: facts.KindSpace, ID: space, Field: facts.FieldPermissionDefaults})
	switch {
	case err == nil:
		m, err := facts.StringsMap(f)
		if err != nil {
			return in, err
		}
		b, err := ParseBundle(m)
		if err != nil {
			return in, plasa.Malformed("space", space, facts.FieldPermissionDefaults, "%s", err)
		}
		in.Defaults = &b
	case !errors.Is(err, plasa.ErrNotFound):
		return in, err
	}
	if account == "" {
		return in, nil
	}
	f, err = r.Read(ctx, facts.Query{Kind: facts.KindSpace, ID: space, Field: facts.FieldRole, Arg: account})
	switch {
	case err == nil:
		name, err := facts.String(f)
		if err != nil {
			return in, err
		}
		role, ok := ParseRole(name)
		if !ok {
			return in, plasa.Malformed("space", space, facts.FieldRole+"("+account+")", "unknown role %q", name)
		}
		in.Role = role
	case !errors.Is(err, plasa.ErrNotFound):
		return in, err
	}
	f, err = r.Read(ctx, facts.Query{Kind: facts.KindSpace, ID: space, Field: facts.FieldPermissionOverride, Arg: account})
	switch {
	case err == nil:
		m, err := facts.BoolMap(f)
		if err != nil {
			return in, err
		}
		o, err := ParseOverride(m)
		if err != nil {
			return in, plasa.Malformed("space", space, facts.FieldPermissionOverride+"("+account+")", "%s", err)
		}
		in.Override = o
	case !errors.Is(err, plasa.ErrNotFound):
		return in, err
	}
	return in, nil
}
