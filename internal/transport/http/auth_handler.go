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
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/opentrusty/tenantmgmt/internal/auth"
	"github.com/opentrusty/tenantmgmt/internal/claims"
)

// basicCredentials decodes the Basic credential kept on the identity
func basicCredentials(id *claims.Identity) (username, secret string, ok bool) {
	if id == nil || id.Authorization == "" {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(id.Authorization)
	if err != nil {
		return "", "", false
	}
	username, secret, ok = strings.Cut(string(raw), ":")
	if !ok || username == "" || secret == "" {
		return "", "", false
	}
	return username, secret, true
}

type loginFunc func(ctx context.Context, username, secret string) (*auth.LoginResponse, error)

func (h *Handler) basicLogin(w http.ResponseWriter, r *http.Request, login loginFunc) {
	username, secret, ok := basicCredentials(GetIdentity(r.Context()))
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="tenantmgmt"`)
		respondError(w, http.StatusUnauthorized, "basic credentials required")
		return
	}

	resp, err := login(r.Context(), username, secret)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Login exchanges a username and password for a bearer token
// @Summary Login
// @Description Authenticate with Basic username:password
// @Tags Auth
// @Produce json
// @Security BasicAuth
// @Success 200 {object} auth.LoginResponse
// @Failure 401 {object} map[string]string
// @Router /auth [get]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.basicLogin(w, r, h.authService.Authenticate)
}

// RefreshLogin exchanges a refresh token for a new bearer token
// @Summary Refresh
// @Description Authenticate with Basic username:refreshToken
// @Tags Auth
// @Produce json
// @Security BasicAuth
// @Success 200 {object} auth.LoginResponse
// @Failure 401 {object} map[string]string
// @Router /auth/refresh [get]
func (h *Handler) RefreshLogin(w http.ResponseWriter, r *http.Request) {
	h.basicLogin(w, r, h.authService.RefreshAuthToken)
}

// TransientLogin exchanges a one-time code for a bearer token
// @Summary Transient login
// @Description Authenticate with Basic username:code
// @Tags Auth
// @Produce json
// @Security BasicAuth
// @Success 200 {object} auth.LoginResponse
// @Failure 401 {object} map[string]string
// @Router /auth/transient [get]
func (h *Handler) TransientLogin(w http.ResponseWriter, r *http.Request) {
	h.basicLogin(w, r, h.authService.TransientAuthToken)
}

// AccountLogin re-issues the caller's token for one of their accounts, or for
// the tenant level when accountId is omitted
// @Summary Switch account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Param accountId query int false "Account ID"
// @Success 200 {object} auth.LoginResponse
// @Failure 404 {object} map[string]string
// @Router /auth/account [get]
func (h *Handler) AccountLogin(w http.ResponseWriter, r *http.Request) {
	var accountID *int
	if raw := r.URL.Query().Get("accountId"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid accountId")
			return
		}
		accountID = &n
	}

	resp, err := h.authService.GetAccountAuthToken(r.Context(), GetIdentity(r.Context()), accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ImpersonateUser issues a token for another user of the caller's tenant
// @Summary Impersonate user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Param id query int false "User ID"
// @Param name query string false "Username"
// @Success 200 {object} auth.LoginResponse
// @Failure 404 {object} map[string]string
// @Router /auth/user [get]
func (h *Handler) ImpersonateUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var userID int
	if raw := q.Get("id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid id")
			return
		}
		userID = n
	}
	username := strings.TrimSpace(q.Get("name"))
	if userID == 0 && username == "" {
		respondError(w, http.StatusBadRequest, "id or name is required")
		return
	}

	resp, err := h.authService.GetAuthToken(r.Context(), permissions(r.Context()), userID, username)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
