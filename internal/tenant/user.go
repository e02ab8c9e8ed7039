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

package tenant

import (
	"time"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
)

// User is a person registered in a tenant
type User struct {
	ID        int         `json:"userId"`
	TenantID  uuid.UUID   `json:"tenantId"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	Enabled   bool        `json:"enabled"`
	Verified  bool        `json:"verified"`
	Roles     []rbac.Role `json:"roles"`
	Scopes    []string    `json:"scopes,omitempty"`

	// Accounts lists the user's memberships.
	Accounts []*AccountUser `json:"accounts,omitempty"`

	LatestLogin *time.Time `json:"latestLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Credentials Credentials `json:"-"`
}

// Credentials holds the secrets attached to a user. None of them are ever serialized.
type Credentials struct {
	PasswordHash string

	// RefreshDigest is the digest of the current refresh token.
	RefreshDigest string
	RefreshExpiry *time.Time

	// TransientDigest is the digest of a one-time code sent by email.
	TransientDigest string
	TransientExpiry *time.Time
	// TransientContext is granted as an extra scope when the code is redeemed.
	TransientContext string
}

// ClearTransient drops any pending one-time code
func (c *Credentials) ClearTransient() {
	c.TransientDigest = ""
	c.TransientExpiry = nil
	c.TransientContext = ""
}

// HasEnabledAccount reports whether any membership belongs to an enabled account
func (u *User) HasEnabledAccount() bool {
	for _, au := range u.Accounts {
		if au.AccountEnabled {
			return true
		}
	}
	return false
}

// Membership returns the user's membership in accountID, or nil
func (u *User) Membership(accountID int) *AccountUser {
	for _, au := range u.Accounts {
		if au.AccountID == accountID {
			return au
		}
	}
	return nil
}

// NewUser carries the fields accepted when registering a user
type NewUser struct {
	Username  string     `json:"username"`
	Password  string     `json:"password,omitempty"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	Roles     []rbac.Ref `json:"roles,omitempty"`
}

// UserUpdate carries optional user changes. Nil fields are left untouched;
// a non-nil empty Roles clears the user's roles.
type UserUpdate struct {
	Username  *string    `json:"username,omitempty"`
	FirstName *string    `json:"firstName,omitempty"`
	LastName  *string    `json:"lastName,omitempty"`
	Verified  *bool      `json:"verified,omitempty"`
	Enabled   *bool      `json:"enabled,omitempty"`
	Roles     []rbac.Ref `json:"roles"`
}
