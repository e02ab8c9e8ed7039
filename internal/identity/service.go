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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/opentrusty/tenantmgmt/internal/identity")

// View selects how much of a user record the caller may see
type View int

const (
	ViewFull View = iota
	ViewSelf
	ViewMin
)

func (v View) String() string {
	switch v {
	case ViewSelf:
		return "self"
	case ViewMin:
		return "min"
	default:
		return "full"
	}
}

// Notification asks for a one-time code to be issued to a user and sent.
type Notification struct {
	User        *tenant.User
	Template    notify.Template
	From        string
	AccountName string
	// Recipient overrides User.Username as the destination address.
	Recipient string
}

// CodeIssuer issues one-time codes and delivers them
type CodeIssuer interface {
	IssueNotification(ctx context.Context, n Notification) error
}

// RoleResolver turns role references into concrete, assignable roles
type RoleResolver interface {
	Resolve(ctx context.Context, refs []rbac.Ref) ([]rbac.Role, error)
}

// TenantChecker reports whether a tenant may receive new users
type TenantChecker interface {
	RequireEnabled(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Service provides user management
type Service struct {
	users       tenant.UserRepository
	accounts    tenant.AccountRepository
	tenants     TenantChecker
	roles       RoleResolver
	hasher      *PasswordHasher
	codes       CodeIssuer
	mailer      notify.Notifier
	auditLogger audit.Logger
}

// NewService creates a new identity service
func NewService(
	users tenant.UserRepository,
	accounts tenant.AccountRepository,
	tenants TenantChecker,
	roles RoleResolver,
	hasher *PasswordHasher,
	codes CodeIssuer,
	mailer notify.Notifier,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		users:       users,
		accounts:    accounts,
		tenants:     tenants,
		roles:       roles,
		hasher:      hasher,
		codes:       codes,
		mailer:      mailer,
		auditLogger: auditLogger,
	}
}

// CreateUser registers a user. tenantID may be empty to use the caller's tenant.
func (s *Service) CreateUser(ctx context.Context, pc authz.PermissionContext, nu tenant.NewUser, tenantID string, tpl notify.Template, verified bool) (*tenant.User, error) {
	user, err := s.createUser(ctx, pc, nu, tenantID, tpl, verified)
	if err != nil {
		return nil, err
	}
	if tpl != notify.None {
		if err := s.codes.IssueNotification(ctx, Notification{User: user, Template: tpl, From: pc.ActorID()}); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// CreateInvitedUser registers a user for an invitation, generating a password
// when none is given. No code is sent; the caller issues the invitation once
// the user has somewhere to land.
func (s *Service) CreateInvitedUser(ctx context.Context, pc authz.PermissionContext, nu tenant.NewUser, tenantID string) (*tenant.User, error) {
	return s.createUser(ctx, pc, nu, tenantID, notify.Invitation, false)
}

func (s *Service) createUser(ctx context.Context, pc authz.PermissionContext, nu tenant.NewUser, tenantID string, tpl notify.Template, verified bool) (*tenant.User, error) {
	ctx, span := tracer.Start(ctx, "identity.CreateUser")
	defer span.End()

	f := pc.Flags()
	if pc.HasSubject() && pc.Subject() >= 0 && !f.IsManageRole() && !f.IsAccountManageRole() {
		return nil, authz.ErrUnauthorized
	}

	username, ok := NormalizeUsername(nu.Username)
	if !ok {
		return nil, fmt.Errorf("%w: username must be an email address", ErrInvalidUserData)
	}

	password := nu.Password
	if tpl == notify.Invitation && password == "" {
		generated, err := randomPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		password = generated
	} else if !ValidatePassword(password) {
		return nil, ErrInvalidPassword
	}

	target, err := s.targetTenant(ctx, pc, tenantID)
	if err != nil {
		return nil, err
	}

	var roles []rbac.Role
	if pc.Subject() > 0 && len(nu.Roles) > 0 {
		roles, err = s.GrantRoles(ctx, pc, nu.Roles, false)
		if err != nil {
			return nil, err
		}
	}

	if existing, err := s.users.GetByUsername(ctx, username); err == nil && existing != nil {
		return nil, tenant.ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, tenant.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &tenant.User{
		TenantID:    target,
		Username:    username,
		FirstName:   strings.TrimSpace(nu.FirstName),
		LastName:    strings.TrimSpace(nu.LastName),
		Enabled:     true,
		Verified:    verified,
		Roles:       roles,
		Credentials: tenant.Credentials{PasswordHash: hash},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	span.SetAttributes(attribute.Int("user.id", user.ID))

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		TenantID: target.String(),
		ActorID:  pc.ActorID(),
		Resource: userResource(user.ID),
		Metadata: map[string]any{"username": username, "template": tpl.String()},
	})
	s.auditRoles(ctx, pc, user, roles)
	return user, nil
}

// GetUser loads a user and the view the caller is entitled to.
// Users of other tenants are reported as not found unless the caller is an app admin.
func (s *Service) GetUser(ctx context.Context, pc authz.PermissionContext, id int) (*tenant.User, View, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, ViewMin, err
	}
	return s.view(pc, user)
}

// GetUserByName is GetUser keyed by username
func (s *Service) GetUserByName(ctx context.Context, pc authz.PermissionContext, username string) (*tenant.User, View, error) {
	user, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, ViewMin, err
	}
	return s.view(pc, user)
}

func (s *Service) view(pc authz.PermissionContext, user *tenant.User) (*tenant.User, View, error) {
	f := pc.WithUser(user).Flags()
	if !f.SameUserTenant && !f.IsAppAdmin {
		return nil, ViewMin, tenant.ErrUserNotFound
	}
	switch {
	case !f.IsAccountContext:
		return user, ViewFull, nil
	case f.IsSelf:
		return user, ViewSelf, nil
	default:
		return user, ViewMin, nil
	}
}

// ListUsers pages through the users of the caller's tenant. App admins may
// name any tenant in opts.
func (s *Service) ListUsers(ctx context.Context, pc authz.PermissionContext, opts tenant.ListOptions) ([]*tenant.User, error) {
	opts = opts.Normalize()
	if !pc.Flags().IsAppAdmin || opts.TenantID == nil {
		callerTenant, ok := pc.TenantID()
		if !ok {
			return nil, tenant.ErrInvalidTenant
		}
		opts.TenantID = &callerTenant
	}
	return s.users.List(ctx, opts)
}

// EditUser applies upd to the user with id
func (s *Service) EditUser(ctx context.Context, pc authz.PermissionContext, id int, upd tenant.UserUpdate) (*tenant.User, error) {
	ctx, span := tracer.Start(ctx, "identity.EditUser")
	defer span.End()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pc = pc.WithUser(user)
	f := pc.Flags()
	if !f.IsSelf && !f.IsManageRole() && !f.IsAccountManageRole() {
		return nil, authz.ErrForbidden
	}
	if !f.SameUserTenant && !f.IsAppAdmin {
		return nil, authz.ErrForbidden
	}

	if upd.Roles != nil {
		user.Roles = nil
		if len(upd.Roles) > 0 {
			roles, err := s.GrantRoles(ctx, pc, upd.Roles, false)
			if err != nil {
				return nil, err
			}
			user.Roles = roles
		}
	}

	previousContext := user.Credentials.TransientContext
	oldUsername := user.Username
	var newUsername string
	if upd.Username != nil {
		candidate, ok := NormalizeUsername(*upd.Username)
		if candidate != "" && candidate != user.Username {
			if !f.IsSelf {
				return nil, authz.ErrForbidden
			}
			if !ok {
				return nil, fmt.Errorf("%w: username must be an email address", ErrInvalidUserData)
			}
			if existing, err := s.users.GetByUsername(ctx, candidate); err == nil && existing != nil {
				return nil, tenant.ErrEmailInUse
			} else if err != nil && !errors.Is(err, tenant.ErrUserNotFound) {
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
			newUsername = candidate
		}
	}
	if newUsername != "" {
		user.Credentials.TransientContext = rbac.ScopeTransientAka + ":" + newUsername
	} else {
		user.Credentials.TransientContext = ""
	}

	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Verified != nil {
		user.Verified = *upd.Verified
	}
	user.Enabled = (upd.Enabled != nil && *upd.Enabled) || len(user.Roles) > 0 || len(user.Accounts) > 0

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if upd.Roles != nil {
		s.auditRoles(ctx, pc, user, user.Roles)
	}
	if user.Credentials.TransientContext != previousContext && newUsername == "" {
		if err := s.users.UpdateCredentials(ctx, user.ID, user.Credentials); err != nil {
			return nil, fmt.Errorf("failed to update credentials: %w", err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		TenantID: user.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: userResource(user.ID),
	})

	if newUsername != "" {
		// The old address learns about the change; the new one gets a code
		// that confirms it. The rename happens when that code is used.
		if err := s.mailer.Send(ctx, notify.Message{
			Template: notify.ChangeEmailNotification,
			To:       oldUsername,
			From:     newUsername,
		}); err != nil {
			slog.WarnContext(ctx, "failed to send change notification", logger.UserID(user.ID), logger.Error(err))
		}
		if err := s.codes.IssueNotification(ctx, Notification{
			User:      user,
			Template:  notify.ChangeEmailPasswordReset,
			From:      pc.ActorID(),
			Recipient: newUsername,
		}); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// DeleteUser disables a user and drops its roles, scopes and memberships
func (s *Service) DeleteUser(ctx context.Context, pc authz.PermissionContext, id int) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	f := pc.WithUser(user).Flags()
	if !f.IsAppAdmin && !(f.IsAdmin && f.SameUserTenant) {
		return authz.ErrForbidden
	}

	if err := s.accounts.RemoveAllMemberships(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to remove memberships: %w", err)
	}
	user.Roles = nil
	user.Scopes = nil
	user.Accounts = nil
	user.Enabled = false
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserDeleted,
		TenantID: user.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: userResource(user.ID),
	})
	return nil
}

// SetPassword replaces a user's password. previous may be empty when the
// caller redeemed a one-time code or manages users.
func (s *Service) SetPassword(ctx context.Context, pc authz.PermissionContext, id int, password, previous string) error {
	ctx, span := tracer.Start(ctx, "identity.SetPassword")
	defer span.End()

	f := pc.Flags()
	transient := pc.Identity().HasScope(rbac.ScopeTransientAuthentication)
	if previous == "" && !transient && !f.IsManageRole() && !f.IsAppAdmin {
		return ErrInvalidPassword
	}
	if !ValidatePassword(password) {
		return ErrInvalidPassword
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	f = pc.WithUser(user).Flags()
	if !f.SameUserTenant && !f.IsAppAdmin {
		return authz.ErrForbidden
	}

	if previous != "" {
		valid, err := s.hasher.Verify(previous, user.Credentials.PasswordHash)
		if err != nil || !valid {
			return ErrInvalidCredentials
		}
	}
	if reused, _ := s.hasher.Verify(password, user.Credentials.PasswordHash); reused {
		return ErrPasswordReuse
	}

	renamed := false
	if aka, ok := pc.Identity().ScopeValue(rbac.ScopeTransientAka); ok && aka != "" && aka != user.Username {
		user.Username = aka
		renamed = true
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Credentials.ClearTransient()
	user.Credentials.PasswordHash = hash
	if renamed {
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to rename user: %w", err)
		}
	}
	if err := s.users.UpdateCredentials(ctx, user.ID, user.Credentials); err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		TenantID: user.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: userResource(user.ID),
		Metadata: map[string]any{"transient": transient, "renamed": renamed},
	})
	return nil
}

// IssueNotification re-sends a verification or invitation code
func (s *Service) IssueNotification(ctx context.Context, pc authz.PermissionContext, id int, tpl notify.Template) error {
	if tpl != notify.Verification && tpl != notify.Invitation {
		return ErrInvalidNotification
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Verified {
		return nil
	}
	f := pc.WithUser(user).Flags()
	if !f.SameUserTenant && !f.IsAppAdmin {
		return tenant.ErrUserNotFound
	}
	if f.IsAccountContext && !f.IsSelf {
		return authz.ErrForbidden
	}
	return s.codes.IssueNotification(ctx, Notification{User: user, Template: tpl, From: pc.ActorID()})
}

// GrantRoles resolves requested role references and checks them against the
// caller's own roles. Denials are audited.
func (s *Service) GrantRoles(ctx context.Context, pc authz.PermissionContext, refs []rbac.Ref, accountRolesOnly bool) ([]rbac.Role, error) {
	requested, err := s.roles.Resolve(ctx, refs)
	if err != nil {
		return nil, err
	}
	return s.ValidateGrant(ctx, pc, requested, accountRolesOnly)
}

// ValidateGrant checks already resolved roles against the caller's own roles.
// Denials are audited.
func (s *Service) ValidateGrant(ctx context.Context, pc authz.PermissionContext, requested []rbac.Role, accountRolesOnly bool) ([]rbac.Role, error) {
	granted, err := pc.ValidateRoles(requested, accountRolesOnly)
	if err != nil {
		callerTenant, _ := pc.TenantID()
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRoleAssignmentDenied,
			TenantID: callerTenant.String(),
			ActorID:  pc.ActorID(),
			Resource: "roles",
			Metadata: map[string]any{"requested": rbac.Names(requested), "reason": err.Error()},
		})
		return nil, err
	}
	return granted, nil
}

func (s *Service) auditRoles(ctx context.Context, pc authz.PermissionContext, user *tenant.User, roles []rbac.Role) {
	if len(roles) == 0 {
		return
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		TenantID: user.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: userResource(user.ID),
		Metadata: map[string]any{"roles": rbac.Names(roles)},
	})
}

// targetTenant picks the tenant a new user lands in
func (s *Service) targetTenant(ctx context.Context, pc authz.PermissionContext, raw string) (uuid.UUID, error) {
	callerTenant, hasTenant := pc.TenantID()

	target := callerTenant
	if raw = strings.TrimSpace(raw); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, tenant.ErrInvalidTenantID
		}
		if (!hasTenant || id != callerTenant) && !pc.Flags().IsAppAdmin {
			return uuid.Nil, authz.ErrForbidden
		}
		target = id
	} else if !hasTenant {
		return uuid.Nil, tenant.ErrInvalidTenant
	}

	if _, err := s.tenants.RequireEnabled(ctx, target); err != nil {
		return uuid.Nil, err
	}
	return target, nil
}

func userResource(id int) string {
	return fmt.Sprintf("user:%d", id)
}
