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
	"fmt"

	"github.com/opentrusty/tenantmgmt/internal/rbac"
)

// ValidateRoles checks a requested role grant against the caller's own roles
// and returns the roles that may be written.
//
// The caller must hold a manage or account-manage role. No requested role may
// be more privileged than the caller's most privileged role; equal rank is
// allowed. Meta-roles and None are never granted. With accountRolesOnly,
// tenant-scoped roles are dropped after the rank check.
func ValidateRoles(f Flags, requested []rbac.Role, accountRolesOnly bool) ([]rbac.Role, error) {
	if !f.IsManageRole() && !f.IsAccountManageRole() {
		return nil, ErrUnauthorized
	}
	for _, r := range requested {
		if !r.Assignable() {
			return nil, fmt.Errorf("%w: %s", rbac.ErrNotAssignable, r)
		}
	}

	requestedBest, ok := rbac.MinRank(requested)
	if !ok {
		return []rbac.Role{}, nil
	}
	callerBest, ok := rbac.MinRank(f.Roles)
	if !ok || requestedBest < callerBest {
		return nil, ErrInvalidRoles
	}

	if accountRolesOnly {
		return rbac.AccountRoles(requested), nil
	}
	out := make([]rbac.Role, len(requested))
	copy(out, requested)
	return out, nil
}

// ValidateRoles validates a role grant for the caller of pc.
func (pc PermissionContext) ValidateRoles(requested []rbac.Role, accountRolesOnly bool) ([]rbac.Role, error) {
	return ValidateRoles(pc.flags, requested, accountRolesOnly)
}
