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
	"strings"

	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
)

// Gate is an endpoint's coarse role requirement, expanded once when the route
// is declared.
type Gate struct {
	roles  []string
	joined string
}

// NewGate expands the declared roles. No roles means any authenticated identity.
func NewGate(roles ...rbac.Role) Gate {
	names := rbac.Names(rbac.Expand(roles...))
	return Gate{
		roles:  names,
		joined: strings.Join(names, ","),
	}
}

// Roles returns the comma-joined concrete role names.
func (g Gate) Roles() string {
	return g.joined
}

// Check returns ErrUnauthenticated when id carries no subject and ErrForbidden
// when none of the identity's role claims match a gate role exactly.
func (g Gate) Check(id *claims.Identity) error {
	if id == nil || id.SubjectID == nil {
		return ErrUnauthenticated
	}
	if len(g.roles) == 0 {
		return nil
	}
	for _, want := range g.roles {
		if id.HasRole(want) {
			return nil
		}
	}
	return ErrForbidden
}
