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

import "github.com/google/uuid"

// AppTenantID is the reserved cross-tenant tenant. Identities issued for it act
// as application superusers. It is seeded by the initial schema migration
// (001_initial_schema.up.sql) and must not be reassigned.
var AppTenantID = uuid.Nil

// Reserved scope names.
const (
	// ScopeTransientAuthentication marks a token issued from a one-time code
	// (password reset, invitation, verification).
	ScopeTransientAuthentication = "TransientAuthentication"

	// ScopeTransientAka carries a pending username change as "TransientAka:<new>".
	ScopeTransientAka = "TransientAka"

	// ScopeTestAccount marks identities of automated test accounts. Such
	// identities are refused outright in production.
	ScopeTestAccount = "http://itt/claims/scopes/test"
)

// BackgroundService is the username and role carried by identities that act
// for scheduled jobs rather than a person.
const BackgroundService = "BackgroundService"
