// Package tenanttest provides testify mocks for the tenant repository contracts.
package tenanttest

import (
	"context"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"github.com/stretchr/testify/mock"
)

// TenantRepo mocks tenant.Repository
type TenantRepo struct {
	mock.Mock
}

func (m *TenantRepo) Create(ctx context.Context, t *tenant.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *TenantRepo) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *TenantRepo) Update(ctx context.Context, t *tenant.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *TenantRepo) List(ctx context.Context, opts tenant.ListOptions) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

// UserRepo mocks tenant.UserRepository
type UserRepo struct {
	mock.Mock
}

func (m *UserRepo) Create(ctx context.Context, user *tenant.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepo) GetByID(ctx context.Context, id int) (*tenant.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.User), args.Error(1)
}

func (m *UserRepo) GetByUsername(ctx context.Context, username string) (*tenant.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.User), args.Error(1)
}

func (m *UserRepo) List(ctx context.Context, opts tenant.ListOptions) ([]*tenant.User, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]*tenant.User), args.Error(1)
}

func (m *UserRepo) Update(ctx context.Context, user *tenant.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepo) UpdateCredentials(ctx context.Context, userID int, creds tenant.Credentials) error {
	return m.Called(ctx, userID, creds).Error(0)
}

func (m *UserRepo) RecordLogin(ctx context.Context, userID int) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *UserRepo) ClearExpiredCredentials(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// AccountRepo mocks tenant.AccountRepository
type AccountRepo struct {
	mock.Mock
}

func (m *AccountRepo) Create(ctx context.Context, account *tenant.Account, owner *tenant.AccountUser) error {
	return m.Called(ctx, account, owner).Error(0)
}

func (m *AccountRepo) GetByID(ctx context.Context, id int) (*tenant.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Account), args.Error(1)
}

func (m *AccountRepo) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*tenant.Account, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Account), args.Error(1)
}

func (m *AccountRepo) List(ctx context.Context, opts tenant.ListOptions) ([]*tenant.Account, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]*tenant.Account), args.Error(1)
}

func (m *AccountRepo) Update(ctx context.Context, account *tenant.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *AccountRepo) ListForUser(ctx context.Context, userID int) ([]*tenant.AccountUser, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*tenant.AccountUser), args.Error(1)
}

func (m *AccountRepo) AddMember(ctx context.Context, member *tenant.AccountUser) error {
	return m.Called(ctx, member).Error(0)
}

func (m *AccountRepo) UpdateMemberRoles(ctx context.Context, accountID, userID int, roles []rbac.Role) error {
	return m.Called(ctx, accountID, userID, roles).Error(0)
}

func (m *AccountRepo) RemoveMember(ctx context.Context, accountID, userID int) error {
	return m.Called(ctx, accountID, userID).Error(0)
}

func (m *AccountRepo) RemoveAllMemberships(ctx context.Context, userID int) error {
	return m.Called(ctx, userID).Error(0)
}

// Audit records audit events for inspection
type Audit struct {
	Events []audit.Event
}

func (a *Audit) Log(_ context.Context, event audit.Event) {
	a.Events = append(a.Events, event)
}

// Types returns the recorded event types in order
func (a *Audit) Types() []string {
	types := make([]string, 0, len(a.Events))
	for _, e := range a.Events {
		types = append(types, e.Type)
	}
	return types
}
