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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// CreateUserRequest represents user creation data
type CreateUserRequest struct {
	tenant.NewUser
	TenantID string `json:"tenantId,omitempty" example:"9f0c6b9e-4a1f-4a8e-9b43-0d1f5c2a7e11"`
	Template string `json:"template,omitempty" example:"Invitation"`
	Verified bool   `json:"verified,omitempty"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	Password         string `json:"password" binding:"required"`
	PreviousPassword string `json:"previousPassword,omitempty"`
}

// PasswordResetRequest asks for a reset code
type PasswordResetRequest struct {
	Username string `json:"username" binding:"required" example:"user@example.com"`
}

// SignupUser registers a user in the default tenant
// @Summary Sign up
// @Description Self-registration. Requested roles are ignored.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body tenant.NewUser true "User Data"
// @Success 201 {object} UserSelfView
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/signup [post]
func (h *Handler) SignupUser(w http.ResponseWriter, r *http.Request) {
	var req tenant.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Roles = nil

	user, err := h.identityService.CreateUser(r.Context(), permissions(r.Context()), req, "", notify.Verification, false)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, userView(user, identity.ViewSelf))
}

// CreateUser handles user creation by a manager
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User Data"
// @Success 201 {object} tenant.User
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tpl := notify.None
	if req.Template != "" {
		var err error
		if tpl, err = notify.ParseTemplate(req.Template); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	user, err := h.identityService.CreateUser(r.Context(), permissions(r.Context()), req.NewUser, req.TenantID, tpl, req.Verified)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// ListUsers lists the users of the caller's tenant
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param includeDisabled query bool false "Include disabled users"
// @Param tenantId query string false "Tenant (AppAdmin only)"
// @Success 200 {array} tenant.User
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}

	users, err := h.identityService.ListUsers(r.Context(), permissions(r.Context()), opts)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// GetUser returns a user, projected to what the caller may see
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} tenant.User
// @Failure 404 {object} map[string]string
// @Router /users/{id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	user, view, err := h.identityService.GetUser(r.Context(), permissions(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userView(user, view))
}

// GetUserByName returns a user by username
// @Summary Get user by name
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param name path string true "Username"
// @Success 200 {object} tenant.User
// @Failure 404 {object} map[string]string
// @Router /users/name/{name} [get]
func (h *Handler) GetUserByName(w http.ResponseWriter, r *http.Request) {
	user, view, err := h.identityService.GetUserByName(r.Context(), permissions(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userView(user, view))
}

// EditUser updates a user
// @Summary Edit user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body tenant.UserUpdate true "Changes"
// @Success 200 {object} tenant.User
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/{id} [put]
func (h *Handler) EditUser(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req tenant.UserUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	pc := permissions(r.Context())
	user, err := h.identityService.EditUser(r.Context(), pc, id, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userView(user, editedView(pc, user)))
}

// editedView mirrors the read projection for a user the caller just changed
func editedView(pc authz.PermissionContext, user *tenant.User) identity.View {
	f := pc.WithUser(user).Flags()
	switch {
	case !f.IsAccountContext:
		return identity.ViewFull
	case f.IsSelf:
		return identity.ViewSelf
	default:
		return identity.ViewMin
	}
}

// DeleteUser strips a user's roles and memberships and disables it
// @Summary Delete user
// @Tags Users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Router /users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.identityService.DeleteUser(r.Context(), permissions(r.Context()), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword changes the caller's own password
// @Summary Change password
// @Tags Users
// @Accept json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /users/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pc := permissions(r.Context())
	if err := h.identityService.SetPassword(r.Context(), pc, pc.Subject(), req.Password, req.PreviousPassword); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetUserPassword sets another user's password
// @Summary Set user password
// @Tags Users
// @Accept json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body ChangePasswordRequest true "Password"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /users/{id}/password [put]
func (h *Handler) SetUserPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.identityService.SetPassword(r.Context(), permissions(r.Context()), id, req.Password, req.PreviousPassword); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword sends a password reset code. Unknown usernames are not reported.
// @Summary Request password reset
// @Tags Users
// @Accept json
// @Param request body PasswordResetRequest true "Username"
// @Success 202
// @Router /users/password/reset [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	err := h.authService.IssueTransientToken(r.Context(), notify.PasswordReset, username, 0, "")
	if err != nil && !errors.Is(err, tenant.ErrUserNotFound) {
		respondServiceError(w, r, err)
		return
	}
	if err != nil {
		slog.DebugContext(r.Context(), "password reset for unknown user", logger.Username(username))
	}
	w.WriteHeader(http.StatusAccepted)
}

// SendVerification re-sends a verification code
// @Summary Resend verification
// @Tags Users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 202
// @Router /users/{id}/verification [post]
func (h *Handler) SendVerification(w http.ResponseWriter, r *http.Request) {
	h.sendNotification(w, r, notify.Verification)
}

// SendInvitation re-sends an invitation code
// @Summary Resend invitation
// @Tags Users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 202
// @Router /users/{id}/invitation [post]
func (h *Handler) SendInvitation(w http.ResponseWriter, r *http.Request) {
	h.sendNotification(w, r, notify.Invitation)
}

func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request, tpl notify.Template) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.identityService.IssueNotification(r.Context(), permissions(r.Context()), id, tpl); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
