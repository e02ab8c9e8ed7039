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

// Package authz derives per-request authorization facts from a caller identity
// and the user or account being acted on.
package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no usable identity accompanies a request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrUnauthorized is returned when the caller may not perform an action.
	ErrUnauthorized = errors.New("action not allowed")

	// ErrInvalidRoles is returned when a role grant exceeds the caller's own rank.
	ErrInvalidRoles = fmt.Errorf("invalid role(s): %w", ErrUnauthorized)

	// ErrForbidden is returned by service-level checks against the target entity.
	ErrForbidden = errors.New("forbidden")
)
