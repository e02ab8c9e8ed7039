package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
)

// Not found
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountUserNotFound = errors.New("user is not a member of the account")
)

// Conflict
var (
	ErrTenantAlreadyExists  = errors.New("tenant already exists")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountUserExists    = errors.New("user is already a member of the account")
	ErrEmailInUse           = errors.New("email address is already in use")
	ErrInvalidTenant        = errors.New("invalid tenant")
)

// Bad request
var (
	ErrTenantMismatch  = errors.New("invalid tenant match")
	ErrInvalidTenantID = errors.New("invalid tenant id")
	ErrInvalidUsername = errors.New("invalid username")
)

// Repository defines the interface for tenant storage
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByName(ctx context.Context, name string) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	List(ctx context.Context, opts ListOptions) ([]*Tenant, error)
}

// UserRepository defines the interface for user storage.
// Loaded users carry their roles, scopes and memberships.
type UserRepository interface {
	// Create inserts the user with its roles and scopes and sets its ID.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int) (*User, error)
	// GetByUsername matches case-insensitively.
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, opts ListOptions) ([]*User, error)
	// Update writes profile fields, roles and scopes.
	Update(ctx context.Context, user *User) error
	UpdateCredentials(ctx context.Context, userID int, creds Credentials) error
	RecordLogin(ctx context.Context, userID int) error
	// ClearExpiredCredentials drops refresh tokens and one-time codes that
	// expired before now and returns how many users were touched.
	ClearExpiredCredentials(ctx context.Context) (int64, error)
}

// AccountRepository defines the interface for account and membership storage.
// Loaded accounts carry their memberships.
type AccountRepository interface {
	// Create inserts the account and its owner membership in one transaction.
	Create(ctx context.Context, account *Account, owner *AccountUser) error
	GetByID(ctx context.Context, id int) (*Account, error)
	GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*Account, error)
	List(ctx context.Context, opts ListOptions) ([]*Account, error)
	Update(ctx context.Context, account *Account) error

	ListForUser(ctx context.Context, userID int) ([]*AccountUser, error)
	AddMember(ctx context.Context, member *AccountUser) error
	UpdateMemberRoles(ctx context.Context, accountID, userID int, roles []rbac.Role) error
	RemoveMember(ctx context.Context, accountID, userID int) error
	// RemoveAllMemberships drops every membership of userID.
	RemoveAllMemberships(ctx context.Context, userID int) error
}
