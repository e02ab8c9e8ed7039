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

package authz

import (
	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// Flags is the authorization decision surface for one (identity, user, account)
// triple. It is a plain value and never changes after Compute returns it.
type Flags struct {
	IsAnonymous      bool
	IsAppAdmin       bool
	IsAccountContext bool
	IsSelf           bool

	SameUserTenant        bool
	SameAccountTenant     bool
	SameUserAccountTenant bool

	// RequestUserInAccount is the caller's membership in the target account.
	RequestUserInAccount *tenant.AccountUser
	// UserInAccount is the target user's membership in the target account.
	UserInAccount *tenant.AccountUser

	// Tenant-level roles, only set outside account context.
	IsAdmin   bool
	IsManager bool
	IsUser    bool

	// Account-level roles, only set inside account context.
	IsAccountOwner       bool
	IsAccountAdmin       bool
	IsAccountManager     bool
	IsAccountUser        bool
	IsAccountStakeholder bool

	// Roles are the caller's role claims that name a known role, in claim order.
	Roles []rbac.Role
}

// IsManageRole reports whether the caller holds a tenant-level manage role.
func (f Flags) IsManageRole() bool {
	return f.IsAdmin || f.IsManager
}

// IsAccountManageRole reports whether the caller holds an account-level manage role.
func (f Flags) IsAccountManageRole() bool {
	return f.IsAccountOwner || f.IsAccountAdmin || f.IsAccountManager
}

// IsNonAccountRole reports whether the caller holds any tenant-level role.
func (f Flags) IsNonAccountRole() bool {
	return f.IsAdmin || f.IsManager || f.IsUser
}

// Compute derives Flags. Every argument may be nil; the result is then the
// all-false state.
func Compute(id *claims.Identity, user *tenant.User, account *tenant.Account) Flags {
	var f Flags
	if id == nil {
		f.IsAnonymous = true
		return f
	}

	subject := id.Subject()
	f.IsAnonymous = id.TenantID == nil || id.SubjectID == nil || subject <= 0
	f.IsAppAdmin = id.TenantID != nil && *id.TenantID == rbac.AppTenantID
	f.IsAccountContext = len(id.OrgIDs) > 0

	if user != nil {
		f.IsSelf = id.SubjectID != nil && subject == user.ID
		f.SameUserTenant = sameTenant(id.TenantID, user.TenantID)
	}
	if account != nil {
		f.SameAccountTenant = sameTenant(id.TenantID, account.TenantID)
		if f.IsAccountContext && id.SubjectID != nil {
			f.RequestUserInAccount = account.Member(subject)
		}
	}
	if user != nil && account != nil {
		f.SameUserAccountTenant = user.TenantID == account.TenantID
		f.UserInAccount = account.Member(user.ID)
	}

	if f.IsAccountContext {
		f.IsAccountOwner = id.HasRole(rbac.AccountOwner.String())
		f.IsAccountAdmin = id.HasRole(rbac.AccountAdmin.String())
		f.IsAccountManager = id.HasRole(rbac.AccountManager.String())
		f.IsAccountUser = id.HasRole(rbac.AccountUser.String())
		f.IsAccountStakeholder = id.HasRole(rbac.AccountStakeholder.String())
	} else {
		f.IsAdmin = id.HasRole(rbac.Admin.String())
		f.IsManager = id.HasRole(rbac.Manager.String())
		f.IsUser = id.HasRole(rbac.User.String())
	}

	f.Roles = parseRoles(id.Roles)
	return f
}

func sameTenant(caller *uuid.UUID, target uuid.UUID) bool {
	return caller != nil && *caller == target
}

// parseRoles keeps the claims that name a role. Unknown names are dropped.
func parseRoles(raw []string) []rbac.Role {
	roles := make([]rbac.Role, 0, len(raw))
	for _, name := range raw {
		r, err := rbac.ParseRole(name)
		if err != nil || r == rbac.None {
			continue
		}
		roles = append(roles, r)
	}
	return roles
}
