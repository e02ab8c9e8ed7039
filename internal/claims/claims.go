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

// Package claims turns a verified token's claim set into a request identity.
package claims

// Well-known claim types. These must match what the token issuer emits.
const (
	TypeNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	TypeTenantID       = "http://schemas.microsoft.com/identity/claims/tenantid"
	TypeOrgID          = "org"
	TypeScope          = "scope"
	TypeRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	TypeEmail          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
)

// Set is a claim multimap keyed by claim type. Values keep issuer order.
type Set map[string][]string

// Add appends values under typ.
func (s Set) Add(typ string, values ...string) {
	s[typ] = append(s[typ], values...)
}

// First returns the first value of typ and whether one exists.
func (s Set) First(typ string) (string, bool) {
	v := s[typ]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// All returns every value of typ.
func (s Set) All(typ string) []string {
	return s[typ]
}
