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
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/tenantmgmt/internal/account"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// CreateAccountRequest represents account creation data
type CreateAccountRequest struct {
	tenant.NewAccount
	TenantID string `json:"tenantId,omitempty"`
}

// AccountUserRequest grants account roles to a member. Omitted roles keep the
// default (AccountStakeholder for new members, unchanged for existing ones).
type AccountUserRequest struct {
	Roles    []rbac.Role `json:"roles,omitempty" example:"AccountUser"`
	Template string      `json:"template,omitempty" example:"AccountAccess"`
}

// SignupAccount registers an account together with its new owner
// @Summary Account sign up
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body tenant.NewAccount true "Account and owner"
// @Success 201 {object} account.Created
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/signup [post]
func (h *Handler) SignupAccount(w http.ResponseWriter, r *http.Request) {
	var req tenant.NewAccount
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Owner == nil {
		respondServiceError(w, r, account.ErrNoOwner)
		return
	}
	req.OwnerID = 0
	req.Owner.Roles = nil

	created, err := h.accountService.Create(r.Context(), permissions(r.Context()), req, "")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// CreateAccount handles account creation
// @Summary Create account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAccountRequest true "Account Data"
// @Success 201 {object} account.Created
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts [post]
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.accountService.Create(r.Context(), permissions(r.Context()), req.NewAccount, req.TenantID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListAccounts lists accounts visible to the caller
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param includeDisabled query bool false "Include disabled accounts"
// @Param tenantId query string false "Tenant (AppAdmin only)"
// @Success 200 {array} tenant.Account
// @Router /accounts [get]
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}

	accounts, view, err := h.accountService.List(r.Context(), permissions(r.Context()), opts)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountViews(accounts, view))
}

// GetAccount returns an account, projected to what the caller may see
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} tenant.Account
// @Failure 404 {object} map[string]string
// @Router /accounts/{id} [get]
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	a, view, err := h.accountService.Get(r.Context(), permissions(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountView(a, view))
}

// GetAccountByName returns an account of the caller's tenant by name
// @Summary Get account by name
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param name path string true "Account name"
// @Success 200 {object} tenant.Account
// @Failure 404 {object} map[string]string
// @Router /accounts/name/{name} [get]
func (h *Handler) GetAccountByName(w http.ResponseWriter, r *http.Request) {
	a, view, err := h.accountService.GetByName(r.Context(), permissions(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountView(a, view))
}

// GetUserAccounts lists the memberships of a user
// @Summary List user accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {array} tenant.AccountUser
// @Router /accounts/user/{username} [get]
func (h *Handler) GetUserAccounts(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.accountService.GetUserAccounts(r.Context(), permissions(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, memberships)
}

// UpdateAccount changes an account's name or description
// @Summary Update account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body tenant.AccountUpdate true "Changes"
// @Success 200 {object} tenant.Account
// @Router /accounts/{id} [put]
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req tenant.AccountUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	pc := permissions(r.Context())
	a, err := h.accountService.Update(r.Context(), pc, id, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	view := account.ViewFull
	if pc.Flags().IsAccountContext {
		view = account.ViewOwner
	}
	respondJSON(w, http.StatusOK, accountView(a, view))
}

// DeleteAccount removes all non-owner members and disables the account
// @Summary Delete account
// @Tags Accounts
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Router /accounts/{id} [delete]
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.accountService.DeleteAccount(r.Context(), permissions(r.Context()), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddNewAccountUser creates a user and adds it to the account
// @Summary Add new account user
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body tenant.NewUser true "User Data"
// @Success 201 {object} map[string]int
// @Router /accounts/{id}/users [post]
func (h *Handler) AddNewAccountUser(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req tenant.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.accountService.AddNewUser(r.Context(), permissions(r.Context()), id, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int{"accountId": id, "userId": userID})
}

// AddExistingAccountUser adds an existing user to the account
// @Summary Add existing account user
// @Tags Accounts
// @Accept json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param userID path int true "User ID"
// @Param request body AccountUserRequest false "Roles"
// @Success 204
// @Router /accounts/{id}/users/{userID} [post]
func (h *Handler) AddExistingAccountUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := intParam(w, r, "userID")
	if !ok {
		return
	}
	h.addExistingUser(w, r, userID, "")
}

// AddExistingAccountUserByName adds an existing user to the account by username
// @Summary Add existing account user by name
// @Tags Accounts
// @Accept json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param username path string true "Username"
// @Param request body AccountUserRequest false "Roles"
// @Success 204
// @Router /accounts/{id}/users/name/{username} [post]
func (h *Handler) AddExistingAccountUserByName(w http.ResponseWriter, r *http.Request) {
	h.addExistingUser(w, r, 0, chi.URLParam(r, "username"))
}

func (h *Handler) addExistingUser(w http.ResponseWriter, r *http.Request, userID int, username string) {
	accountID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeAccountUserRequest(w, r)
	if !ok {
		return
	}

	tpl := notify.AccountAccess
	if req.Template != "" {
		var err error
		if tpl, err = notify.ParseTemplate(req.Template); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	err := h.accountService.AddExistingUser(r.Context(), permissions(r.Context()), accountID, userID, username, req.Roles, tpl)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateAccountUserRoles replaces a member's account roles
// @Summary Update account user roles
// @Tags Accounts
// @Accept json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param userID path int true "User ID"
// @Param request body AccountUserRequest true "Roles"
// @Success 204
// @Router /accounts/{id}/users/{userID} [put]
func (h *Handler) UpdateAccountUserRoles(w http.ResponseWriter, r *http.Request) {
	accountID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	userID, ok := intParam(w, r, "userID")
	if !ok {
		return
	}
	req, ok := decodeAccountUserRequest(w, r)
	if !ok {
		return
	}

	if err := h.accountService.UpdateAccountUserRoles(r.Context(), permissions(r.Context()), accountID, userID, req.Roles); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InviteAccountUser re-sends the account invitation to a member
// @Summary Re-send account invitation
// @Tags Accounts
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param userID path int true "User ID"
// @Success 202
// @Router /accounts/{id}/users/{userID}/invite [put]
func (h *Handler) InviteAccountUser(w http.ResponseWriter, r *http.Request) {
	accountID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	userID, ok := intParam(w, r, "userID")
	if !ok {
		return
	}
	if err := h.accountService.IssueAccountInvitation(r.Context(), permissions(r.Context()), accountID, userID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RemoveAccountUser detaches a member from the account
// @Summary Remove account user
// @Tags Accounts
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param userID path int true "User ID"
// @Success 204
// @Router /accounts/{id}/users/{userID} [delete]
func (h *Handler) RemoveAccountUser(w http.ResponseWriter, r *http.Request) {
	accountID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	userID, ok := intParam(w, r, "userID")
	if !ok {
		return
	}
	if err := h.accountService.RemoveUser(r.Context(), permissions(r.Context()), accountID, userID, ""); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeAccountUserRequest reads an optional body. Unknown role names are
// rejected rather than dropped.
func decodeAccountUserRequest(w http.ResponseWriter, r *http.Request) (AccountUserRequest, bool) {
	var req AccountUserRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	for _, role := range req.Roles {
		if !role.Assignable() {
			respondServiceError(w, r, fmt.Errorf("%w: %s", rbac.ErrNotAssignable, role))
			return req, false
		}
	}
	return req, true
}
