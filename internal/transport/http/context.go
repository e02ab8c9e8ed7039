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
	"context"

	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/claims"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller's identity in ctx.
func WithIdentity(ctx context.Context, id *claims.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity retrieves the caller's identity from context. Requests that
// never passed the authentication middleware get an anonymous identity.
func GetIdentity(ctx context.Context) *claims.Identity {
	if val, ok := ctx.Value(identityKey).(*claims.Identity); ok && val != nil {
		return val
	}
	return &claims.Identity{}
}

// permissions builds a fresh permission context for the caller
func permissions(ctx context.Context) authz.PermissionContext {
	return authz.New(GetIdentity(ctx))
}
