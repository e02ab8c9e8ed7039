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

package claims

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
)

var (
	// ErrMalformedIdentity is returned when a claim that must be well formed is not.
	ErrMalformedIdentity = errors.New("malformed identity")

	// ErrUnauthorizedIdentity is returned for identities refused outright,
	// such as test accounts presented to a production deployment.
	ErrUnauthorizedIdentity = errors.New("unauthorized identity")
)

// Identity is the caller as described by its token. It is built once per
// request and not modified afterwards.
type Identity struct {
	SubjectID *int
	TenantID  *uuid.UUID
	Username  string
	OrgIDs    []string
	Scopes    []string
	Roles     []string

	// Authorization holds a raw Basic credential for the login endpoints.
	Authorization string
}

// Subject returns the subject id, or 0 when absent.
func (i *Identity) Subject() int {
	if i == nil || i.SubjectID == nil {
		return 0
	}
	return *i.SubjectID
}

// HasScope reports whether the identity carries scope exactly.
func (i *Identity) HasScope(scope string) bool {
	if i == nil {
		return false
	}
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeValue returns the value of the first "<prefix>:<value>" scope.
func (i *Identity) ScopeValue(prefix string) (string, bool) {
	if i == nil {
		return "", false
	}
	for _, s := range i.Scopes {
		if v, ok := strings.CutPrefix(s, prefix+":"); ok {
			return v, true
		}
	}
	return "", false
}

// HasRole reports whether the raw role list contains name exactly.
func (i *Identity) HasRole(name string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Extractor builds identities from claim sets.
type Extractor struct {
	// DefaultTenant is used when the claim set has no tenant. May be nil.
	DefaultTenant *uuid.UUID
	// Production enables the test-account lockout.
	Production bool
}

// Extract converts a verified claim set into an Identity. It has no side effects.
func (e Extractor) Extract(set Set) (*Identity, error) {
	id := &Identity{}

	if raw, ok := set.First(TypeNameIdentifier); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, ErrMalformedIdentity
		}
		id.SubjectID = &n
	}

	if raw, ok := set.First(TypeTenantID); ok {
		t, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, ErrMalformedIdentity
		}
		id.TenantID = &t
	} else if e.DefaultTenant != nil {
		t := *e.DefaultTenant
		id.TenantID = &t
	}

	id.Username, _ = set.First(TypeEmail)
	id.OrgIDs = clone(set.All(TypeOrgID))
	id.Scopes = clone(set.All(TypeScope))

	// Refuse before any role is attached.
	if e.Production && id.HasScope(rbac.ScopeTestAccount) {
		return nil, ErrUnauthorizedIdentity
	}

	id.Roles = clone(set.All(TypeRole))
	return id, nil
}

// Background returns the identity used by scheduled jobs acting inside tenantID.
func Background(tenantID uuid.UUID) *Identity {
	subject := 0
	return &Identity{
		SubjectID: &subject,
		TenantID:  &tenantID,
		Username:  rbac.BackgroundService,
		Roles:     []string{rbac.BackgroundService},
	}
}

func clone(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
