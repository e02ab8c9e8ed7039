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
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
)

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	ID   string `json:"tenantId,omitempty" example:"9f0c6b9e-4a1f-4a8e-9b43-0d1f5c2a7e11"`
	Name string `json:"name" binding:"required" example:"My Corporation"`
}

// UpdateTenantRequest toggles a tenant
type UpdateTenantRequest struct {
	Enabled *bool `json:"enabled"`
}

func parseTenantID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, tenant.ErrInvalidTenantID
	}
	return id, nil
}

// CreateTenant handles tenant creation. An omitted id is generated.
// @Summary Create Tenant
// @Description Create a new tenant
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTenantRequest true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	var id uuid.UUID
	if req.ID != "" {
		var err error
		if id, err = parseTenantID(req.ID); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}

	t, err := h.tenantService.CreateTenant(r.Context(), id, req.Name, permissions(r.Context()).ActorID())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// ListTenants pages through tenants
// @Summary List Tenants
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param includeDisabled query bool false "Include disabled tenants"
// @Success 200 {array} tenant.Tenant
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	tenants, err := h.tenantService.ListTenants(r.Context(), opts)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tenants)
}

// GetTenant returns a tenant
// @Summary Get Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /tenants/{id} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	t, err := h.tenantService.GetTenant(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// GetTenantByName returns a tenant by its unique name
// @Summary Get Tenant By Name
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param name path string true "Tenant name"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /tenants/name/{name} [get]
func (h *Handler) GetTenantByName(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.GetTenantByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// UpdateTenant enables or disables a tenant
// @Summary Update Tenant
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Param request body UpdateTenantRequest true "Changes"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /tenants/{id} [put]
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	var req UpdateTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	t, err := h.tenantService.SetEnabled(r.Context(), id, *req.Enabled, permissions(r.Context()).ActorID())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
