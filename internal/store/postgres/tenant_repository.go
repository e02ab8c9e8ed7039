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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `tenant_id, name, enabled, created_at, updated_at`

// Create inserts a tenant
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO tenants (tenant_id, name, enabled)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, t.ID, t.Name, t.Enabled).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return tenant.ErrTenantAlreadyExists
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return scanTenant(r.db.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1`, id))
}

// GetByName retrieves a tenant by name, case-insensitively
func (r *TenantRepository) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	return scanTenant(r.db.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE lower(name) = lower($1)`, name))
}

// Update writes the tenant's name and enabled flag
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	err := r.db.pool.QueryRow(ctx, `
		UPDATE tenants SET name = $2, enabled = $3, updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING updated_at
	`, t.ID, t.Name, t.Enabled).Scan(&t.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return tenant.ErrTenantNotFound
		case isUniqueViolation(err):
			return tenant.ErrTenantAlreadyExists
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// List pages through tenants ordered by name
func (r *TenantRepository) List(ctx context.Context, opts tenant.ListOptions) ([]*tenant.Tenant, error) {
	opts = opts.Normalize()
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE ($1 OR enabled)
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, opts.IncludeDisabled, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []*tenant.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	return &t, nil
}
