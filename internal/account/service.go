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

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/opentrusty/tenantmgmt/internal/account")

// Domain errors
var (
	ErrNoOwner          = errors.New("no account owner specified")
	ErrInvalidName      = errors.New("account name is required")
	ErrInvalidMember    = errors.New("user is not a member of the account")
	ErrNotAccountMember = fmt.Errorf("caller is not a member of the account: %w", authz.ErrForbidden)
)

// View selects how much of an account the caller may see
type View int

const (
	ViewFull View = iota
	ViewOwner
	ViewMin
)

func (v View) String() string {
	switch v {
	case ViewOwner:
		return "owner"
	case ViewMin:
		return "min"
	default:
		return "full"
	}
}

// Users is the part of the user service accounts build on
type Users interface {
	CreateUser(ctx context.Context, pc authz.PermissionContext, nu tenant.NewUser, tenantID string, tpl notify.Template, verified bool) (*tenant.User, error)
	CreateInvitedUser(ctx context.Context, pc authz.PermissionContext, nu tenant.NewUser, tenantID string) (*tenant.User, error)
	ValidateGrant(ctx context.Context, pc authz.PermissionContext, requested []rbac.Role, accountRolesOnly bool) ([]rbac.Role, error)
}

// Created identifies a new account and its owner
type Created struct {
	AccountID int `json:"accountId"`
	UserID    int `json:"userId"`
}

// Service provides account management
type Service struct {
	accounts    tenant.AccountRepository
	users       tenant.UserRepository
	identities  Users
	roles       identity.RoleResolver
	codes       identity.CodeIssuer
	mailer      notify.Notifier
	auditLogger audit.Logger
}

// NewService creates a new account service
func NewService(
	accounts tenant.AccountRepository,
	users tenant.UserRepository,
	identities Users,
	roles identity.RoleResolver,
	codes identity.CodeIssuer,
	mailer notify.Notifier,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		accounts:    accounts,
		users:       users,
		identities:  identities,
		roles:       roles,
		codes:       codes,
		mailer:      mailer,
		auditLogger: auditLogger,
	}
}

// Get loads an account with its memberships and the view the caller is entitled to
func (s *Service) Get(ctx context.Context, pc authz.PermissionContext, id int) (*tenant.Account, View, error) {
	account, pc, err := s.load(ctx, pc, id)
	if err != nil {
		return nil, ViewMin, err
	}
	return account, viewFor(pc.Flags()), nil
}

// GetByName loads an account of the caller's tenant by name. In account
// context only accounts the caller belongs to are visible.
func (s *Service) GetByName(ctx context.Context, pc authz.PermissionContext, name string) (*tenant.Account, View, error) {
	tenantID, ok := pc.TenantID()
	if !ok {
		return nil, ViewMin, tenant.ErrAccountNotFound
	}
	account, err := s.accounts.GetByName(ctx, tenantID, strings.TrimSpace(name))
	if err != nil {
		return nil, ViewMin, err
	}
	f := pc.WithAccount(account).Flags()
	if f.IsAccountContext && f.RequestUserInAccount == nil {
		return nil, ViewMin, tenant.ErrAccountNotFound
	}
	return account, viewFor(f), nil
}

// List pages through the accounts of the caller's tenant. In account context
// only the caller's own accounts are listed.
func (s *Service) List(ctx context.Context, pc authz.PermissionContext, opts tenant.ListOptions) ([]*tenant.Account, View, error) {
	opts = opts.Normalize()
	f := pc.Flags()
	if !f.IsAppAdmin || opts.TenantID == nil {
		tenantID, ok := pc.TenantID()
		if !ok {
			return nil, ViewMin, tenant.ErrInvalidTenant
		}
		opts.TenantID = &tenantID
	}

	view := ViewFull
	if f.IsAccountContext {
		view = ViewMin
		memberships, err := s.accounts.ListForUser(ctx, pc.Subject())
		if err != nil {
			return nil, view, fmt.Errorf("failed to list memberships: %w", err)
		}
		if len(memberships) == 0 {
			return []*tenant.Account{}, view, nil
		}
		opts.AccountIDs = make([]int, 0, len(memberships))
		for _, m := range memberships {
			opts.AccountIDs = append(opts.AccountIDs, m.AccountID)
		}
	}

	accounts, err := s.accounts.List(ctx, opts)
	if err != nil {
		return nil, view, err
	}
	return accounts, view, nil
}

// GetUserAccounts lists the memberships of a user
func (s *Service) GetUserAccounts(ctx context.Context, pc authz.PermissionContext, username string) ([]*tenant.AccountUser, error) {
	user, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, err
	}
	f := pc.WithUser(user).Flags()
	if !f.SameUserTenant && !f.IsAppAdmin {
		return nil, tenant.ErrUserNotFound
	}
	return s.accounts.ListForUser(ctx, user.ID)
}

// Create opens an account. The owner is an existing user, a new user, or the
// caller. tenantID may only be given by app admins.
func (s *Service) Create(ctx context.Context, pc authz.PermissionContext, na tenant.NewAccount, tenantID string) (*Created, error) {
	ctx, span := tracer.Start(ctx, "account.Create")
	defer span.End()

	name := strings.TrimSpace(na.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	f := pc.Flags()
	ownerID := na.OwnerID
	if ownerID == 0 && na.Owner == nil {
		if pc.Subject() <= 0 {
			return nil, ErrNoOwner
		}
		ownerID = pc.Subject()
	}
	if ownerID > 0 && ownerID != pc.Subject() && !f.IsManageRole() && !f.IsAppAdmin {
		return nil, authz.ErrForbidden
	}

	target, err := accountTenant(pc, tenantID)
	if err != nil {
		return nil, err
	}

	var owner *tenant.User
	newOwner := ownerID <= 0
	if newOwner {
		owner, err = s.identities.CreateUser(ctx, pc, *na.Owner, target.String(), notify.None, false)
		if err != nil {
			return nil, err
		}
	} else {
		owner, err = s.users.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if owner.TenantID != target {
			return nil, tenant.ErrTenantMismatch
		}
		if !owner.Enabled {
			owner.Enabled = true
			if err := s.users.Update(ctx, owner); err != nil {
				return nil, fmt.Errorf("failed to enable owner: %w", err)
			}
		}
	}

	account := &tenant.Account{
		TenantID:    target,
		Name:        name,
		Description: strings.TrimSpace(na.Description),
		Enabled:     true,
	}
	membership := &tenant.AccountUser{
		UserID:  owner.ID,
		Primary: true,
		Roles:   []rbac.Role{rbac.AccountOwner},
	}
	if err := s.accounts.Create(ctx, account, membership); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	span.SetAttributes(attribute.Int("account.id", account.ID))

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountCreated,
		TenantID: target.String(),
		ActorID:  pc.ActorID(),
		Resource: accountResource(account.ID),
		Metadata: map[string]any{"name": name, "owner_id": owner.ID},
	})

	if newOwner {
		if err := s.codes.IssueNotification(ctx, identity.Notification{
			User:        owner,
			Template:    notify.Verification,
			From:        pc.ActorID(),
			AccountName: name,
		}); err != nil {
			return nil, err
		}
	}
	return &Created{AccountID: account.ID, UserID: owner.ID}, nil
}

// AddNewUser creates a user in the account's tenant, attaches it with the
// account-scoped subset of its requested roles and then invites it.
func (s *Service) AddNewUser(ctx context.Context, pc authz.PermissionContext, accountID int, nu tenant.NewUser) (int, error) {
	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return 0, err
	}

	var roles []rbac.Role
	if len(nu.Roles) > 0 {
		requested, err := s.roles.Resolve(ctx, nu.Roles)
		if err != nil {
			return 0, err
		}
		if accountRoles := rbac.AccountRoles(requested); len(accountRoles) > 0 {
			roles = accountRoles
		}
	}
	nu.Roles = nil

	// Everything that can refuse the membership is checked before the user exists.
	if err := requireMember(pc.Flags()); err != nil {
		return 0, err
	}
	granted, err := s.memberRoles(ctx, pc, account, roles)
	if err != nil {
		return 0, err
	}

	user, err := s.identities.CreateInvitedUser(ctx, pc, nu, account.TenantID.String())
	if err != nil {
		return 0, err
	}
	if err := s.attach(ctx, pc, account, user, granted); err != nil {
		// A user left outside every account must not log in.
		user.Enabled = false
		if uerr := s.users.Update(ctx, user); uerr != nil {
			slog.ErrorContext(ctx, "failed to disable unattached user", logger.AccountID(account.ID), logger.UserID(user.ID), logger.Error(uerr))
		}
		return 0, err
	}
	if err := s.codes.IssueNotification(ctx, identity.Notification{
		User:        user,
		Template:    notify.Invitation,
		From:        pc.ActorID(),
		AccountName: account.Name,
	}); err != nil {
		return 0, err
	}
	return user.ID, nil
}

// AddExistingUser attaches the user named by userID or username to the
// account. Nil roles grant AccountStakeholder; the first member always
// becomes AccountOwner.
func (s *Service) AddExistingUser(ctx context.Context, pc authz.PermissionContext, accountID, userID int, username string, roles []rbac.Role, tpl notify.Template) error {
	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return err
	}

	var user *tenant.User
	if userID > 0 {
		user, err = s.users.GetByID(ctx, userID)
	} else {
		user, err = s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	}
	if err != nil {
		return err
	}

	if err := requireMember(pc.Flags()); err != nil {
		return err
	}
	if user.TenantID != account.TenantID {
		return tenant.ErrTenantMismatch
	}
	if account.Member(user.ID) != nil {
		return tenant.ErrAccountUserExists
	}
	granted, err := s.memberRoles(ctx, pc, account, roles)
	if err != nil {
		return err
	}
	if err := s.attach(ctx, pc, account, user, granted); err != nil {
		return err
	}

	if tpl != notify.None {
		if err := s.mailer.Send(ctx, notify.Message{
			Template:    tpl,
			To:          user.Username,
			From:        pc.ActorID(),
			AccountName: account.Name,
		}); err != nil {
			slog.WarnContext(ctx, "failed to send account notification", logger.AccountID(account.ID), logger.Error(err))
		}
	}
	return nil
}

// UpdateAccountUserRoles replaces a member's account roles. Nil roles leave
// them unchanged.
func (s *Service) UpdateAccountUserRoles(ctx context.Context, pc authz.PermissionContext, accountID, userID int, roles []rbac.Role) error {
	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return err
	}
	if err := requireMember(pc.Flags()); err != nil {
		return err
	}
	member := account.Member(userID)
	if member == nil {
		return tenant.ErrAccountUserNotFound
	}
	if roles == nil {
		return nil
	}

	granted, err := s.identities.ValidateGrant(ctx, pc, roles, true)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdateMemberRoles(ctx, account.ID, userID, granted); err != nil {
		return fmt.Errorf("failed to update member roles: %w", err)
	}
	member.Roles = granted

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		TenantID: account.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: accountResource(account.ID),
		Metadata: map[string]any{"user_id": userID, "roles": rbac.Names(granted)},
	})
	return nil
}

// Update applies upd to the account
func (s *Service) Update(ctx context.Context, pc authz.PermissionContext, accountID int, upd tenant.AccountUpdate) (*tenant.Account, error) {
	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(pc.Flags()); err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		account.Name = name
	}
	if upd.Description != nil {
		account.Description = strings.TrimSpace(*upd.Description)
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountUpdated,
		TenantID: account.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: accountResource(account.ID),
	})
	return account, nil
}

// RemoveUser detaches the member named by userID or username. An account left
// without members is disabled, and so is a user left without enabled
// accounts and roles.
func (s *Service) RemoveUser(ctx context.Context, pc authz.PermissionContext, accountID, userID int, username string) error {
	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return err
	}

	username = strings.ToLower(strings.TrimSpace(username))
	var member *tenant.AccountUser
	for _, au := range account.Users {
		if (userID > 0 && au.UserID == userID) || (username != "" && au.Username == username) {
			member = au
			break
		}
	}
	if member == nil {
		return tenant.ErrAccountUserNotFound
	}
	if err := requireMember(pc.Flags()); err != nil {
		return err
	}
	return s.detach(ctx, pc, account, member)
}

// DeleteAccount removes every member except the owner, disables the account
// and tells all members. In account context only the owner may do this.
func (s *Service) DeleteAccount(ctx context.Context, pc authz.PermissionContext, accountID int) error {
	ctx, span := tracer.Start(ctx, "account.DeleteAccount")
	defer span.End()

	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return err
	}
	f := pc.Flags()
	if f.IsAccountContext && !f.RequestUserInAccount.HasRole(rbac.AccountOwner) {
		return authz.ErrForbidden
	}

	members := append([]*tenant.AccountUser(nil), account.Users...)
	var owner *tenant.AccountUser
	for _, m := range members {
		if m.HasRole(rbac.AccountOwner) {
			if owner == nil {
				owner = m
			}
			continue
		}
		if err := s.detach(ctx, pc, account, m); err != nil {
			return err
		}
	}

	account.Enabled = false
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to disable account: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountDeleted,
		TenantID: account.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: accountResource(account.ID),
		Metadata: map[string]any{"members": len(members)},
	})

	from := pc.ActorID()
	if owner != nil && owner.Username != "" {
		from = owner.Username
	}
	for _, m := range members {
		if err := s.mailer.Send(ctx, notify.Message{
			Template:    notify.AccountDeactivated,
			To:          m.Username,
			From:        from,
			AccountName: account.Name,
		}); err != nil {
			slog.WarnContext(ctx, "failed to send deactivation notice", logger.AccountID(account.ID), logger.UserID(m.UserID), logger.Error(err))
		}
	}
	return nil
}

// IssueAccountInvitation re-sends the invitation to a member who never logged in
func (s *Service) IssueAccountInvitation(ctx context.Context, pc authz.PermissionContext, accountID, userID int) error {
	account, pc, err := s.load(ctx, pc, accountID)
	if err != nil {
		return err
	}
	if err := requireMember(pc.Flags()); err != nil {
		return err
	}
	member := account.Member(userID)
	if member == nil {
		return ErrInvalidMember
	}
	if member.LatestLogin != nil {
		return nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.codes.IssueNotification(ctx, identity.Notification{
		User:        user,
		Template:    notify.Invitation,
		From:        pc.ActorID(),
		AccountName: account.Name,
	})
}

// load fetches an account and binds it to pc. Accounts of other tenants are
// not found unless the caller is an app admin.
func (s *Service) load(ctx context.Context, pc authz.PermissionContext, id int) (*tenant.Account, authz.PermissionContext, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, pc, err
	}
	pc = pc.WithAccount(account)
	f := pc.Flags()
	if !f.SameAccountTenant && !f.IsAppAdmin {
		return nil, pc, tenant.ErrAccountNotFound
	}
	return account, pc, nil
}

// memberRoles decides the roles of a new membership
func (s *Service) memberRoles(ctx context.Context, pc authz.PermissionContext, account *tenant.Account, roles []rbac.Role) ([]rbac.Role, error) {
	switch {
	case len(account.Users) == 0:
		return []rbac.Role{rbac.AccountOwner}, nil
	case roles == nil:
		return []rbac.Role{rbac.AccountStakeholder}, nil
	default:
		return s.identities.ValidateGrant(ctx, pc, roles, true)
	}
}

// attach enables user and adds its membership
func (s *Service) attach(ctx context.Context, pc authz.PermissionContext, account *tenant.Account, user *tenant.User, roles []rbac.Role) error {
	if !user.Enabled {
		user.Enabled = true
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to enable user: %w", err)
		}
	}
	member := &tenant.AccountUser{
		AccountID:      account.ID,
		UserID:         user.ID,
		Roles:          roles,
		Username:       user.Username,
		AccountName:    account.Name,
		AccountEnabled: account.Enabled,
	}
	if err := s.accounts.AddMember(ctx, member); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	account.Users = append(account.Users, member)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountUserAdded,
		TenantID: account.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: accountResource(account.ID),
		Metadata: map[string]any{"user_id": user.ID, "roles": rbac.Names(roles)},
	})
	return nil
}

// detach removes member and disables what it leaves empty
func (s *Service) detach(ctx context.Context, pc authz.PermissionContext, account *tenant.Account, member *tenant.AccountUser) error {
	if err := s.accounts.RemoveMember(ctx, account.ID, member.UserID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	remaining := account.Users[:0:0]
	for _, au := range account.Users {
		if au.UserID != member.UserID {
			remaining = append(remaining, au)
		}
	}
	account.Users = remaining

	if len(account.Users) == 0 && account.Enabled {
		account.Enabled = false
		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to disable account: %w", err)
		}
	}

	user, err := s.users.GetByID(ctx, member.UserID)
	if err != nil {
		return err
	}
	if user.Enabled && !user.HasEnabledAccount() && len(user.Roles) == 0 {
		user.Enabled = false
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to disable user: %w", err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountUserRemoved,
		TenantID: account.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: accountResource(account.ID),
		Metadata: map[string]any{"user_id": member.UserID},
	})
	return nil
}

func requireMember(f authz.Flags) error {
	if f.IsAccountContext && f.RequestUserInAccount == nil {
		return ErrNotAccountMember
	}
	return nil
}

func viewFor(f authz.Flags) View {
	switch {
	case !f.IsAccountContext:
		return ViewFull
	case f.RequestUserInAccount != nil && f.IsAccountManageRole():
		return ViewOwner
	default:
		return ViewMin
	}
}

// accountTenant picks the tenant of a new account. Accounts never live in the
// application tenant.
func accountTenant(pc authz.PermissionContext, raw string) (uuid.UUID, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		id, ok := pc.TenantID()
		if !ok || id == uuid.Nil {
			return uuid.Nil, tenant.ErrInvalidTenant
		}
		return id, nil
	}
	if !pc.Flags().IsAppAdmin {
		return uuid.Nil, authz.ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, tenant.ErrInvalidTenantID
	}
	return id, nil
}

func accountResource(id int) string {
	return fmt.Sprintf("account:%d", id)
}
