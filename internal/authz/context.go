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
	"strconv"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// PermissionContext binds a caller identity to the entities a request acts on.
// Values are immutable: WithUser and WithAccount return a new context whose
// flags are recomputed from scratch.
type PermissionContext struct {
	identity *claims.Identity
	user     *tenant.User
	account  *tenant.Account
	flags    Flags
}

// New creates a context for identity with no target entities.
func New(identity *claims.Identity) PermissionContext {
	return PermissionContext{
		identity: identity,
		flags:    Compute(identity, nil, nil),
	}
}

// WithUser returns a copy of pc targeting user.
func (pc PermissionContext) WithUser(user *tenant.User) PermissionContext {
	return PermissionContext{
		identity: pc.identity,
		user:     user,
		account:  pc.account,
		flags:    Compute(pc.identity, user, pc.account),
	}
}

// WithAccount returns a copy of pc targeting account.
func (pc PermissionContext) WithAccount(account *tenant.Account) PermissionContext {
	return PermissionContext{
		identity: pc.identity,
		user:     pc.user,
		account:  account,
		flags:    Compute(pc.identity, pc.user, account),
	}
}

// Flags returns the decision surface.
func (pc PermissionContext) Flags() Flags { return pc.flags }

// Identity returns the caller identity, which may be nil.
func (pc PermissionContext) Identity() *claims.Identity { return pc.identity }

// User returns the target user, if any.
func (pc PermissionContext) User() *tenant.User { return pc.user }

// Account returns the target account, if any.
func (pc PermissionContext) Account() *tenant.Account { return pc.account }

// Subject returns the caller's user id, or 0 when absent.
func (pc PermissionContext) Subject() int { return pc.identity.Subject() }

// HasSubject reports whether the caller carries a subject claim.
func (pc PermissionContext) HasSubject() bool {
	return pc.identity != nil && pc.identity.SubjectID != nil
}

// TenantID returns the caller's tenant and whether one is present.
func (pc PermissionContext) TenantID() (uuid.UUID, bool) {
	if pc.identity == nil || pc.identity.TenantID == nil {
		return uuid.Nil, false
	}
	return *pc.identity.TenantID, true
}

// ActorID renders the caller for audit records.
func (pc PermissionContext) ActorID() string {
	if !pc.HasSubject() {
		return "anonymous"
	}
	if pc.identity.Username != "" {
		return pc.identity.Username
	}
	return strconv.Itoa(pc.Subject())
}
