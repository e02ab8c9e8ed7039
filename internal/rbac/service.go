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

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Record is a persisted role row. ID equals the role's ordinal.
type Record struct {
	ID   int  `json:"roleId"`
	Name Role `json:"name"`
}

// Repository defines the interface for role persistence
type Repository interface {
	GetByID(ctx context.Context, id int) (*Record, error)
	GetByName(ctx context.Context, name Role) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
}

// CacheConfig sizes the role record cache
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// Service resolves role references against the persisted catalog
type Service struct {
	repo  Repository
	cache *lru.LRU[string, *Record]
}

// NewService creates a new role service
func NewService(repo Repository, cfg CacheConfig) *Service {
	size := cfg.Size
	if size <= 0 {
		size = 64
	}
	return &Service{
		repo:  repo,
		cache: lru.NewLRU[string, *Record](size, nil, cfg.TTL),
	}
}

// GetRole retrieves a role by id
func (s *Service) GetRole(ctx context.Context, id int) (*Record, error) {
	key := "id:" + strconv.Itoa(id)
	if rec, ok := s.cache.Get(key); ok {
		return rec, nil
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(rec)
	return rec, nil
}

// GetRoleByName retrieves a role by name, case-insensitively
func (s *Service) GetRoleByName(ctx context.Context, name string) (*Record, error) {
	role, err := ParseRole(name)
	if err != nil {
		return nil, ErrRoleNotFound
	}

	key := "name:" + role.String()
	if rec, ok := s.cache.Get(key); ok {
		return rec, nil
	}

	rec, err := s.repo.GetByName(ctx, role)
	if err != nil {
		return nil, err
	}
	s.remember(rec)
	return rec, nil
}

// ListRoles lists every persisted role
func (s *Service) ListRoles(ctx context.Context) ([]*Record, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	for _, rec := range records {
		s.remember(rec)
	}
	return records, nil
}

// Ref names a role either by name or by id. Name wins when both are set.
type Ref struct {
	ID   int    `json:"roleId,omitempty"`
	Name string `json:"name,omitempty"`
}

// Resolve turns role references into assignable roles. Unknown references
// are rejected, as are meta-roles and None.
func (s *Service) Resolve(ctx context.Context, refs []Ref) ([]Role, error) {
	roles := make([]Role, 0, len(refs))
	for _, ref := range refs {
		var (
			rec *Record
			err error
		)
		switch {
		case ref.Name != "":
			rec, err = s.GetRoleByName(ctx, ref.Name)
		case ref.ID > 0:
			rec, err = s.GetRole(ctx, ref.ID)
		default:
			return nil, ErrInvalidRoleRef
		}
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRole, refLabel(ref))
			}
			return nil, err
		}
		if !rec.Name.Assignable() {
			return nil, fmt.Errorf("%w: %s", ErrNotAssignable, rec.Name)
		}
		roles = append(roles, rec.Name)
	}
	return roles, nil
}

func (s *Service) remember(rec *Record) {
	s.cache.Add("id:"+strconv.Itoa(rec.ID), rec)
	s.cache.Add("name:"+rec.Name.String(), rec)
}

func refLabel(ref Ref) string {
	if ref.Name != "" {
		return ref.Name
	}
	return strconv.Itoa(ref.ID)
}
