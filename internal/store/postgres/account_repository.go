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
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// AccountRepository implements tenant.AccountRepository
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `account_id, tenant_id, name, description, enabled, created_at, updated_at`

// Create inserts the account and its owner membership in one transaction
func (r *AccountRepository) Create(ctx context.Context, account *tenant.Account, owner *tenant.AccountUser) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO accounts (tenant_id, name, description, enabled)
			VALUES ($1, $2, $3, $4)
			RETURNING account_id, created_at, updated_at
		`, account.TenantID, account.Name, account.Description, account.Enabled).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return tenant.ErrAccountAlreadyExists
			case isForeignKeyViolation(err):
				return tenant.ErrTenantNotFound
			}
			return fmt.Errorf("failed to insert account: %w", err)
		}

		if owner == nil {
			return nil
		}
		owner.AccountID = account.ID
		owner.AccountName = account.Name
		owner.AccountEnabled = account.Enabled
		if err := insertMember(ctx, tx, owner); err != nil {
			return err
		}
		account.Users = []*tenant.AccountUser{owner}
		return nil
	})
}

// GetByID retrieves an account with its memberships
func (r *AccountRepository) GetByID(ctx context.Context, id int) (*tenant.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, id)
}

// GetByName retrieves an account of a tenant by name, case-insensitively
func (r *AccountRepository) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*tenant.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id = $1 AND lower(name) = lower($2)`, tenantID, name)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, args ...any) (*tenant.Account, error) {
	account, err := scanAccount(r.db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.attachMembers(ctx, []*tenant.Account{account}); err != nil {
		return nil, err
	}
	return account, nil
}

// List pages through accounts ordered by name
func (r *AccountRepository) List(ctx context.Context, opts tenant.ListOptions) ([]*tenant.Account, error) {
	opts = opts.Normalize()
	var ids []int32
	if opts.AccountIDs != nil {
		ids = make([]int32, 0, len(opts.AccountIDs))
		for _, id := range opts.AccountIDs {
			ids = append(ids, int32(id))
		}
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND ($2 OR enabled)
		  AND ($3::int[] IS NULL OR account_id = ANY($3))
		ORDER BY name, account_id
		LIMIT $4 OFFSET $5
	`, opts.TenantID, opts.IncludeDisabled, ids, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*tenant.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	if err := r.attachMembers(ctx, accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Update writes the account's name, description and enabled flag
func (r *AccountRepository) Update(ctx context.Context, account *tenant.Account) error {
	err := r.db.pool.QueryRow(ctx, `
		UPDATE accounts SET name = $2, description = $3, enabled = $4, updated_at = NOW()
		WHERE account_id = $1
		RETURNING updated_at
	`, account.ID, account.Name, account.Description, account.Enabled).Scan(&account.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return tenant.ErrAccountNotFound
		case isUniqueViolation(err):
			return tenant.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// ListForUser returns every membership of userID
func (r *AccountRepository) ListForUser(ctx context.Context, userID int) ([]*tenant.AccountUser, error) {
	return loadMembers(ctx, r.db.pool, memberByUser, []int32{int32(userID)})
}

// AddMember inserts a membership with its roles
func (r *AccountRepository) AddMember(ctx context.Context, member *tenant.AccountUser) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return insertMember(ctx, tx, member)
	})
}

// UpdateMemberRoles replaces a membership's roles
func (r *AccountRepository) UpdateMemberRoles(ctx context.Context, accountID, userID int, roles []rbac.Role) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM account_users WHERE account_id = $1 AND user_id = $2)
		`, accountID, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if !exists {
			return tenant.ErrAccountUserNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM account_user_roles WHERE account_id = $1 AND user_id = $2`, accountID, userID); err != nil {
			return fmt.Errorf("failed to clear member roles: %w", err)
		}
		return writeMemberRoles(ctx, tx, accountID, userID, roles)
	})
}

// RemoveMember deletes a membership. Its roles go with it.
func (r *AccountRepository) RemoveMember(ctx context.Context, accountID, userID int) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM account_users WHERE account_id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrAccountUserNotFound
	}
	return nil
}

// RemoveAllMemberships deletes every membership of userID
func (r *AccountRepository) RemoveAllMemberships(ctx context.Context, userID int) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM account_users WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to remove memberships: %w", err)
	}
	return nil
}

func (r *AccountRepository) attachMembers(ctx context.Context, accounts []*tenant.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	byID := make(map[int]*tenant.Account, len(accounts))
	ids := make([]int32, 0, len(accounts))
	for _, a := range accounts {
		a.Users = []*tenant.AccountUser{}
		byID[a.ID] = a
		ids = append(ids, int32(a.ID))
	}
	members, err := loadMembers(ctx, r.db.pool, memberByAccount, ids)
	if err != nil {
		return err
	}
	for _, m := range members {
		byID[m.AccountID].Users = append(byID[m.AccountID].Users, m)
	}
	return nil
}

func scanAccount(row pgx.Row) (*tenant.Account, error) {
	var a tenant.Account
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.Enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

// Membership filters
const (
	memberByUser    = `au.user_id = ANY($1)`
	memberByAccount = `au.account_id = ANY($1)`
)

// loadMembers returns memberships matching filter with their roles and the
// denormalized user and account columns
func loadMembers(ctx context.Context, q querier, filter string, ids []int32) ([]*tenant.AccountUser, error) {
	rows, err := q.Query(ctx, `
		SELECT au.account_id, au.user_id, au.is_primary,
			u.username, a.name, a.enabled, u.latest_login,
			COALESCE(array_agg(aur.role_id ORDER BY aur.role_id) FILTER (WHERE aur.role_id IS NOT NULL), '{}')
		FROM account_users au
		JOIN users u ON u.user_id = au.user_id
		JOIN accounts a ON a.account_id = au.account_id
		LEFT JOIN account_user_roles aur ON aur.account_id = au.account_id AND aur.user_id = au.user_id
		WHERE `+filter+`
		GROUP BY au.account_id, au.user_id, au.is_primary, u.username, a.name, a.enabled, u.latest_login, au.created_at
		ORDER BY au.created_at, au.account_id, au.user_id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()

	var members []*tenant.AccountUser
	for rows.Next() {
		var (
			m     tenant.AccountUser
			roles []int32
		)
		if err := rows.Scan(&m.AccountID, &m.UserID, &m.Primary, &m.Username, &m.AccountName, &m.AccountEnabled, &m.LatestLogin, &roles); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Roles = make([]rbac.Role, 0, len(roles))
		for _, id := range roles {
			m.Roles = append(m.Roles, rbac.Role(id))
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return members, nil
}

func insertMember(ctx context.Context, q querier, m *tenant.AccountUser) error {
	_, err := q.Exec(ctx, `
		INSERT INTO account_users (account_id, user_id, is_primary)
		VALUES ($1, $2, $3)
	`, m.AccountID, m.UserID, m.Primary)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return tenant.ErrAccountUserExists
		case isForeignKeyViolation(err):
			return tenant.ErrUserNotFound
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return writeMemberRoles(ctx, q, m.AccountID, m.UserID, m.Roles)
}

func writeMemberRoles(ctx context.Context, q querier, accountID, userID int, roles []rbac.Role) error {
	if len(roles) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO account_user_roles (account_id, user_id, role_id)
		SELECT $1, $2, unnest($3::int[])
		ON CONFLICT DO NOTHING
	`, accountID, userID, roleIDs(roles))
	if err != nil {
		return fmt.Errorf("failed to write member roles: %w", err)
	}
	return nil
}
