// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrUnknownRole    = errors.New("unknown role")
	ErrNotAssignable  = errors.New("role cannot be assigned")
	ErrRoleNotFound   = errors.New("role not found")
	ErrInvalidRoleRef = errors.New("invalid role reference")
)

// Role is a member of the master role enumeration.
//
// Declaration order is privilege order: a smaller value is more privileged.
// Do not reorder or insert values without a data migration, role ids are
// persisted as these ordinals.
type Role int

const (
	None Role = iota
	AppAdmin

	// Tenant-level roles
	AnyUserRole
	AnyManageRole
	Admin
	Manager
	User

	// Account-level roles
	AnyAccountRole
	AnyAccountManageRole
	AccountOwner
	AccountAdmin
	AccountManager
	AccountUser
	AccountStakeholder
)

// Scope tags the hierarchy a role belongs to.
type Scope int

const (
	ScopeTenant Scope = iota
	ScopeAccount
)

func (s Scope) String() string {
	if s == ScopeAccount {
		return "account"
	}
	return "tenant"
}

type definition struct {
	name  string
	scope Scope
	meta  bool
}

var definitions = [...]definition{
	None:                 {name: "None", scope: ScopeTenant},
	AppAdmin:             {name: "AppAdmin", scope: ScopeTenant},
	AnyUserRole:          {name: "AnyUserRole", scope: ScopeTenant, meta: true},
	AnyManageRole:        {name: "AnyManageRole", scope: ScopeTenant, meta: true},
	Admin:                {name: "Admin", scope: ScopeTenant},
	Manager:              {name: "Manager", scope: ScopeTenant},
	User:                 {name: "User", scope: ScopeTenant},
	AnyAccountRole:       {name: "AnyAccountRole", scope: ScopeAccount, meta: true},
	AnyAccountManageRole: {name: "AnyAccountManageRole", scope: ScopeAccount, meta: true},
	AccountOwner:         {name: "AccountOwner", scope: ScopeAccount},
	AccountAdmin:         {name: "AccountAdmin", scope: ScopeAccount},
	AccountManager:       {name: "AccountManager", scope: ScopeAccount},
	AccountUser:          {name: "AccountUser", scope: ScopeAccount},
	AccountStakeholder:   {name: "AccountStakeholder", scope: ScopeAccount},
}

// All returns every role in declaration order, including None and the meta-roles.
func All() []Role {
	roles := make([]Role, len(definitions))
	for i := range definitions {
		roles[i] = Role(i)
	}
	return roles
}

// Valid reports whether r is a declared role.
func (r Role) Valid() bool {
	return r >= None && int(r) < len(definitions)
}

// String returns the canonical role name.
func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return definitions[r].name
}

// Scope returns the hierarchy the role belongs to.
func (r Role) Scope() Scope {
	if !r.Valid() {
		return ScopeTenant
	}
	return definitions[r].scope
}

// IsMeta reports whether r is an expansion macro rather than an assignable role.
func (r Role) IsMeta() bool {
	return r.Valid() && definitions[r].meta
}

// IsAccountScoped reports whether r belongs to the account-level hierarchy.
func (r Role) IsAccountScoped() bool {
	return r.Scope() == ScopeAccount
}

// Assignable reports whether r may be granted to a user or membership.
func (r Role) Assignable() bool {
	return r.Valid() && r != None && !r.IsMeta()
}

// MarshalText renders the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a role name, case-insensitively.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole parses a role name case-insensitively. Surrounding whitespace is ignored.
// Callers decide whether an unknown name is dropped or rejected.
func ParseRole(name string) (Role, error) {
	name = strings.TrimSpace(name)
	for i, d := range definitions {
		if strings.EqualFold(d.name, name) {
			return Role(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// Names renders roles as their canonical names.
func Names(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return names
}

// Contains reports whether roles holds r.
func Contains(roles []Role, r Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}
