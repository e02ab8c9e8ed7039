package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an isolated customer environment
type Tenant struct {
	ID        uuid.UUID `json:"tenantId"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AppTenantName is the display name of the seeded cross-tenant tenant
const AppTenantName = "Application"

// ListOptions controls paging for list queries
type ListOptions struct {
	Limit           int
	Offset          int
	IncludeDisabled bool
	// TenantID restricts results to one tenant. Nil lists every tenant.
	TenantID *uuid.UUID
	// AccountIDs restricts account results to the given ids when non-nil.
	AccountIDs []int
}

// Normalize applies default paging bounds
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
