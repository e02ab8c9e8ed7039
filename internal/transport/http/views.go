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

package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/account"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// UserSelfView is what a user sees of itself from inside an account
type UserSelfView struct {
	ID          int                   `json:"userId"`
	TenantID    uuid.UUID             `json:"tenantId"`
	Username    string                `json:"username"`
	FirstName   string                `json:"firstName,omitempty"`
	LastName    string                `json:"lastName,omitempty"`
	Enabled     bool                  `json:"enabled"`
	Verified    bool                  `json:"verified"`
	Accounts    []*tenant.AccountUser `json:"accounts,omitempty"`
	LatestLogin *time.Time            `json:"latestLogin,omitempty"`
}

// UserMinView is the public projection of a user
type UserMinView struct {
	ID        int    `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func userView(u *tenant.User, v identity.View) any {
	switch v {
	case identity.ViewFull:
		return u
	case identity.ViewSelf:
		return UserSelfView{
			ID:          u.ID,
			TenantID:    u.TenantID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			Enabled:     u.Enabled,
			Verified:    u.Verified,
			Accounts:    u.Accounts,
			LatestLogin: u.LatestLogin,
		}
	default:
		return UserMinView{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}
}

// AccountOwnerView is what account managers see of their account
type AccountOwnerView struct {
	ID          int                   `json:"accountId"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Enabled     bool                  `json:"enabled"`
	Users       []*tenant.AccountUser `json:"users,omitempty"`
}

// AccountMinView is the public projection of an account
type AccountMinView struct {
	ID          int    `json:"accountId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func accountView(a *tenant.Account, v account.View) any {
	switch v {
	case account.ViewFull:
		return a
	case account.ViewOwner:
		return AccountOwnerView{ID: a.ID, Name: a.Name, Description: a.Description, Enabled: a.Enabled, Users: a.Users}
	default:
		return AccountMinView{ID: a.ID, Name: a.Name, Description: a.Description}
	}
}

func accountViews(accounts []*tenant.Account, v account.View) []any {
	out := make([]any, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView(a, v))
	}
	return out
}
