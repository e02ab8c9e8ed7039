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

import "strings"

// expansions lists what each meta-role stands for. Entries may reference other
// meta-roles; Expand resolves them recursively in the listed order.
var expansions = map[Role][]Role{
	AnyUserRole:          {User, AnyManageRole},
	AnyManageRole:        {Admin, Manager},
	AnyAccountRole:       {AccountUser, AccountStakeholder, AnyAccountManageRole},
	AnyAccountManageRole: {AccountOwner, AccountAdmin, AccountManager},
}

// Expand substitutes every meta-role with the concrete roles it stands for.
// Concrete roles pass through unchanged. The result keeps first-seen order and
// holds each role at most once.
func Expand(roles ...Role) []Role {
	out := make([]Role, 0, len(roles))
	seen := make(map[Role]bool, len(roles))
	var walk func(r Role)
	walk = func(r Role) {
		if members, ok := expansions[r]; ok {
			for _, m := range members {
				walk(m)
			}
			return
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range roles {
		walk(r)
	}
	return out
}

// Join expands roles and renders them as a comma-separated name list.
func Join(roles ...Role) string {
	return strings.Join(Names(Expand(roles...)), ",")
}

// Rank returns the privilege rank of r. Smaller is more privileged.
// Ranks are only meaningful relative to each other.
func Rank(r Role) int {
	return int(r)
}

// MinRank returns the most privileged rank among roles and false when roles is empty.
func MinRank(roles []Role) (int, bool) {
	if len(roles) == 0 {
		return 0, false
	}
	best := Rank(roles[0])
	for _, r := range roles[1:] {
		if rank := Rank(r); rank < best {
			best = rank
		}
	}
	return best, true
}

// AccountRoles keeps only the account-scoped roles, preserving order.
func AccountRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if r.IsAccountScoped() {
			out = append(out, r)
		}
	}
	return out
}

// TenantRoles keeps only the tenant-scoped roles, preserving order.
func TenantRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !r.IsAccountScoped() {
			out = append(out, r)
		}
	}
	return out
}
