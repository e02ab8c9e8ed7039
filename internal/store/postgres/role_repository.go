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

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
)

// RoleRepository implements rbac.Repository over the seeded roles table
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByID retrieves a role by its ordinal
func (r *RoleRepository) GetByID(ctx context.Context, id int) (*rbac.Record, error) {
	return scanRole(r.db.pool.QueryRow(ctx, `SELECT role_id, name FROM roles WHERE role_id = $1`, id))
}

// GetByName retrieves a role by its canonical name
func (r *RoleRepository) GetByName(ctx context.Context, name rbac.Role) (*rbac.Record, error) {
	return scanRole(r.db.pool.QueryRow(ctx, `SELECT role_id, name FROM roles WHERE name = $1`, name.String()))
}

// List returns every role ordered by privilege
func (r *RoleRepository) List(ctx context.Context) ([]*rbac.Record, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT role_id, name FROM roles ORDER BY role_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var records []*rbac.Record
	for rows.Next() {
		rec, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRole(row pgx.Row) (*rbac.Record, error) {
	var (
		rec  rbac.Record
		name string
	)
	if err := row.Scan(&rec.ID, &name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	role, err := rbac.ParseRole(name)
	if err != nil {
		return nil, fmt.Errorf("role table out of sync: %w", err)
	}
	rec.Name = role
	return &rec, nil
}
