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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
)

// Service provides tenant management business logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new tenant service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// CreateTenant creates a new tenant. A nil id is generated.
func (s *Service) CreateTenant(ctx context.Context, id uuid.UUID, name string, actorID string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if id == uuid.Nil {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate tenant id: %w", err)
		}
		id = generated
	}

	if _, err := s.repo.GetByID(ctx, id); err == nil {
		return nil, ErrTenantAlreadyExists
	} else if !errors.Is(err, ErrTenantNotFound) {
		return nil, fmt.Errorf("failed to check tenant: %w", err)
	}

	now := time.Now()
	tenant := &Tenant{
		ID:        id,
		Name:      name,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: id.String(),
		ActorID:  actorID,
		Resource: name,
	})

	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTenantByName retrieves a tenant by name
func (s *Service) GetTenantByName(ctx context.Context, name string) (*Tenant, error) {
	return s.repo.GetByName(ctx, name)
}

// ListTenants lists tenants with pagination
func (s *Service) ListTenants(ctx context.Context, opts ListOptions) ([]*Tenant, error) {
	return s.repo.List(ctx, opts.Normalize())
}

// RequireEnabled loads a tenant and fails unless it exists and is enabled.
func (s *Service) RequireEnabled(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrInvalidTenantID
		}
		return nil, err
	}
	if !t.Enabled {
		return nil, ErrInvalidTenant
	}
	return t, nil
}

// SetEnabled toggles a tenant. The application tenant cannot be disabled.
func (s *Service) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool, actorID string) (*Tenant, error) {
	if id == uuid.Nil && !enabled {
		return nil, ErrInvalidTenant
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Enabled = enabled
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantUpdated,
		TenantID: id.String(),
		ActorID:  actorID,
		Metadata: map[string]any{"enabled": enabled},
	})
	return t, nil
}
