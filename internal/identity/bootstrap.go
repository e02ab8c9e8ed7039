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

	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// ActorSystemBootstrap is the audit actor of bootstrap writes
const ActorSystemBootstrap = "system:bootstrap"

// BootstrapConfig names the initial application administrator
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// BootstrapService manages the initial initialization of the system
type BootstrapService struct {
	identityService *Service
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		auditLogger:     auditLogger,
	}
}

// Bootstrap makes sure the configured administrator exists in the application
// tenant and holds AppAdmin. It is a no-op without an admin email.
//
// Without a configured password the administrator gets a random one and a
// password reset code.
func (s *BootstrapService) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	email, ok := NormalizeUsername(cfg.AdminEmail)
	if !ok {
		return fmt.Errorf("%w: bootstrap admin email %q", ErrInvalidUserData, cfg.AdminEmail)
	}
	users := s.identityService.users

	existing, err := users.GetByUsername(ctx, email)
	switch {
	case err == nil:
		return s.promote(ctx, existing)
	case !errors.Is(err, tenant.ErrUserNotFound):
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}

	password := cfg.AdminPassword
	sendReset := password == ""
	if sendReset {
		if password, err = randomPassword(); err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
	} else if !ValidatePassword(password) {
		return fmt.Errorf("bootstrap admin: %w", ErrInvalidPassword)
	}

	hash, err := s.identityService.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &tenant.User{
		TenantID:    rbac.AppTenantID,
		Username:    email,
		Enabled:     true,
		Verified:    true,
		Roles:       []rbac.Role{rbac.AppAdmin},
		Credentials: tenant.Credentials{PasswordHash: hash},
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	s.record(ctx, admin)

	if sendReset {
		if err := s.identityService.codes.IssueNotification(ctx, Notification{
			User:     admin,
			Template: notify.PasswordReset,
			From:     ActorSystemBootstrap,
		}); err != nil {
			return fmt.Errorf("failed to send bootstrap reset code: %w", err)
		}
	}
	return nil
}

func (s *BootstrapService) promote(ctx context.Context, user *tenant.User) error {
	if user.TenantID != rbac.AppTenantID {
		return fmt.Errorf("bootstrap admin %s belongs to tenant %s: %w", user.Username, user.TenantID, tenant.ErrTenantMismatch)
	}
	if rbac.Contains(user.Roles, rbac.AppAdmin) && user.Enabled {
		// Already bootstrapped
		return nil
	}
	if !rbac.Contains(user.Roles, rbac.AppAdmin) {
		user.Roles = append(user.Roles, rbac.AppAdmin)
	}
	user.Enabled = true
	if err := s.identityService.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to grant AppAdmin during bootstrap: %w", err)
	}
	s.record(ctx, user)
	return nil
}

func (s *BootstrapService) record(ctx context.Context, user *tenant.User) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		TenantID: rbac.AppTenantID.String(),
		ActorID:  ActorSystemBootstrap,
		Resource: userResource(user.ID),
		Metadata: map[string]any{"roles": []string{rbac.AppAdmin.String()}},
	})
	slog.InfoContext(ctx, "bootstrapped application admin", logger.Username(user.Username), logger.UserID(user.ID))
}
