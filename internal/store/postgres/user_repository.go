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
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// UserRepository implements tenant.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	user_id, tenant_id, username, first_name, last_name, enabled, verified,
	password_hash, refresh_digest, refresh_expiry,
	transient_digest, transient_expiry, transient_context,
	latest_login, created_at, updated_at`

// Create inserts the user with its roles and scopes
func (r *UserRepository) Create(ctx context.Context, user *tenant.User) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		c := user.Credentials
		err := tx.QueryRow(ctx, `
			INSERT INTO users (
				tenant_id, username, first_name, last_name, enabled, verified,
				password_hash, refresh_digest, refresh_expiry,
				transient_digest, transient_expiry, transient_context
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING user_id, created_at, updated_at
		`,
			user.TenantID, user.Username, user.FirstName, user.LastName, user.Enabled, user.Verified,
			c.PasswordHash, c.RefreshDigest, c.RefreshExpiry,
			c.TransientDigest, c.TransientExpiry, c.TransientContext,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return tenant.ErrUserAlreadyExists
			case isForeignKeyViolation(err):
				return tenant.ErrTenantNotFound
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		if err := writeUserRoles(ctx, tx, user.ID, user.Roles); err != nil {
			return err
		}
		return writeUserScopes(ctx, tx, user.ID, user.Scopes)
	})
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int) (*tenant.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
}

// GetByUsername retrieves a user by username, case-insensitively
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*tenant.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*tenant.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := loadUserRelations(ctx, r.db.pool, []*tenant.User{user}); err != nil {
		return nil, err
	}
	return user, nil
}

// List pages through users ordered by ID
func (r *UserRepository) List(ctx context.Context, opts tenant.ListOptions) ([]*tenant.User, error) {
	opts = opts.Normalize()
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND ($2 OR enabled)
		ORDER BY user_id
		LIMIT $3 OFFSET $4
	`, opts.TenantID, opts.IncludeDisabled, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*tenant.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	if err := loadUserRelations(ctx, r.db.pool, users); err != nil {
		return nil, err
	}
	return users, nil
}

// Update writes profile fields, roles and scopes
func (r *UserRepository) Update(ctx context.Context, user *tenant.User) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE users SET
				username = $2,
				first_name = $3,
				last_name = $4,
				enabled = $5,
				verified = $6,
				updated_at = NOW()
			WHERE user_id = $1
			RETURNING updated_at
		`, user.ID, user.Username, user.FirstName, user.LastName, user.Enabled, user.Verified).Scan(&user.UpdatedAt)
		if err != nil {
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				return tenant.ErrUserNotFound
			case isUniqueViolation(err):
				return tenant.ErrEmailInUse
			}
			return fmt.Errorf("failed to update user: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, user.ID); err != nil {
			return fmt.Errorf("failed to clear user roles: %w", err)
		}
		if err := writeUserRoles(ctx, tx, user.ID, user.Roles); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_scopes WHERE user_id = $1`, user.ID); err != nil {
			return fmt.Errorf("failed to clear user scopes: %w", err)
		}
		return writeUserScopes(ctx, tx, user.ID, user.Scopes)
	})
}

// UpdateCredentials replaces the user's stored secrets
func (r *UserRepository) UpdateCredentials(ctx context.Context, userID int, c tenant.Credentials) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			password_hash = $2,
			refresh_digest = $3,
			refresh_expiry = $4,
			transient_digest = $5,
			transient_expiry = $6,
			transient_context = $7,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, c.PasswordHash, c.RefreshDigest, c.RefreshExpiry, c.TransientDigest, c.TransientExpiry, c.TransientContext)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrUserNotFound
	}
	return nil
}

// RecordLogin stamps the latest login time
func (r *UserRepository) RecordLogin(ctx context.Context, userID int) error {
	_, err := r.db.pool.Exec(ctx, `UPDATE users SET latest_login = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// ClearExpiredCredentials drops refresh tokens and one-time codes past their expiry
func (r *UserRepository) ClearExpiredCredentials(ctx context.Context) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			refresh_digest    = CASE WHEN refresh_expiry < NOW() THEN '' ELSE refresh_digest END,
			refresh_expiry    = CASE WHEN refresh_expiry < NOW() THEN NULL ELSE refresh_expiry END,
			transient_digest  = CASE WHEN transient_expiry < NOW() THEN '' ELSE transient_digest END,
			transient_context = CASE WHEN transient_expiry < NOW() THEN '' ELSE transient_context END,
			transient_expiry  = CASE WHEN transient_expiry < NOW() THEN NULL ELSE transient_expiry END
		WHERE refresh_expiry < NOW() OR transient_expiry < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired credentials: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*tenant.User, error) {
	var u tenant.User
	c := &u.Credentials
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Username, &u.FirstName, &u.LastName, &u.Enabled, &u.Verified,
		&c.PasswordHash, &c.RefreshDigest, &c.RefreshExpiry,
		&c.TransientDigest, &c.TransientExpiry, &c.TransientContext,
		&u.LatestLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// loadUserRelations fills roles, scopes and memberships for users in three queries
func loadUserRelations(ctx context.Context, q querier, users []*tenant.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[int]*tenant.User, len(users))
	ids := make([]int32, 0, len(users))
	for _, u := range users {
		u.Roles = []rbac.Role{}
		byID[u.ID] = u
		ids = append(ids, int32(u.ID))
	}

	rows, err := q.Query(ctx, `SELECT user_id, role_id FROM user_roles WHERE user_id = ANY($1) ORDER BY role_id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load user roles: %w", err)
	}
	for rows.Next() {
		var userID, roleID int
		if err := rows.Scan(&userID, &roleID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan user role: %w", err)
		}
		byID[userID].Roles = append(byID[userID].Roles, rbac.Role(roleID))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load user roles: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT us.user_id, s.name
		FROM user_scopes us JOIN scopes s ON s.scope_id = us.scope_id
		WHERE us.user_id = ANY($1)
		ORDER BY s.name
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load user scopes: %w", err)
	}
	for rows.Next() {
		var (
			userID int
			scope  string
		)
		if err := rows.Scan(&userID, &scope); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan user scope: %w", err)
		}
		byID[userID].Scopes = append(byID[userID].Scopes, scope)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load user scopes: %w", err)
	}

	members, err := loadMembers(ctx, q, memberByUser, ids)
	if err != nil {
		return err
	}
	for _, m := range members {
		byID[m.UserID].Accounts = append(byID[m.UserID].Accounts, m)
	}
	return nil
}

func writeUserRoles(ctx context.Context, q querier, userID int, roles []rbac.Role) error {
	if len(roles) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, unnest($2::int[])
		ON CONFLICT DO NOTHING
	`, userID, roleIDs(roles))
	if err != nil {
		return fmt.Errorf("failed to write user roles: %w", err)
	}
	return nil
}

func writeUserScopes(ctx context.Context, q querier, userID int, scopes []string) error {
	if len(scopes) == 0 {
		return nil
	}
	if _, err := q.Exec(ctx, `INSERT INTO scopes (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`, scopes); err != nil {
		return fmt.Errorf("failed to write scopes: %w", err)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO user_scopes (user_id, scope_id)
		SELECT $1, scope_id FROM scopes WHERE name = ANY($2)
		ON CONFLICT DO NOTHING
	`, userID, scopes)
	if err != nil {
		return fmt.Errorf("failed to write user scopes: %w", err)
	}
	return nil
}

func roleIDs(roles []rbac.Role) []int32 {
	ids := make([]int32, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, int32(r))
	}
	return ids
}
