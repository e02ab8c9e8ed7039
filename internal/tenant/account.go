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

// Account groups users of one tenant
type Account struct {
	ID          int       `json:"accountId"`
	TenantID    uuid.UUID `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`

	Users []*AccountUser `json:"users,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Member returns the membership of userID, or nil
func (a *Account) Member(userID int) *AccountUser {
	if a == nil {
		return nil
	}
	for _, au := range a.Users {
		if au.UserID == userID {
			return au
		}
	}
	return nil
}

// AccountUser is a user's membership in an account with its account roles
type AccountUser struct {
	AccountID int         `json:"accountId"`
	UserID    int         `json:"userId"`
	Primary   bool        `json:"primary"`
	Roles     []rbac.Role `json:"roles"`

	// Denormalized from the joined user and account rows.
	Username       string     `json:"username,omitempty"`
	AccountName    string     `json:"accountName,omitempty"`
	AccountEnabled bool       `json:"accountEnabled"`
	LatestLogin    *time.Time `json:"latestLogin,omitempty"`
}

// HasRole reports whether the membership holds r
func (au *AccountUser) HasRole(r rbac.Role) bool {
	return au != nil && rbac.Contains(au.Roles, r)
}

// NewAccount carries the fields accepted when opening an account
type NewAccount struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// OwnerID names an existing owner. When zero, Owner describes a new user,
	// and when both are empty the caller becomes the owner.
	OwnerID int      `json:"ownerId,omitempty"`
	Owner   *NewUser `json:"owner,omitempty"`
}

// AccountUpdate carries optional account changes
type AccountUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
