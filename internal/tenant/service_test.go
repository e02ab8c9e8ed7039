package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, t *Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *mockRepo) GetByName(ctx context.Context, name string) (*Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, t *Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockRepo) List(ctx context.Context, opts ListOptions) ([]*Tenant, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]*Tenant), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

// TestPurpose: Validates that tenant creation generates UUIDv7 identifiers when none is supplied.
// Scope: Unit Test
// Security: Traceability and unique identification of tenants
// Expected: A new tenant is created enabled, with a version 7 UUID, and the creation is audited.
// Test Case ID: TEN-01
func TestTenant_Service_CreateTenant_UUIDv7(t *testing.T) {
	repo := new(mockRepo)
	auditLogger := new(mockAudit)
	service := NewService(repo, auditLogger)
	ctx := context.Background()

	repo.On("GetByID", ctx, mock.AnythingOfType("uuid.UUID")).Return(nil, ErrTenantNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(t *Tenant) bool {
		return t.ID.Version() == 7 && t.Name == "Acme" && t.Enabled
	})).Return(nil)
	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantCreated && e.ActorID == "root@example.com"
	})).Return()

	created, err := service.CreateTenant(ctx, uuid.Nil, "  Acme ", "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme", created.Name)
	assert.Equal(t, uuid.Version(7), created.ID.Version())

	repo.AssertExpectations(t)
	auditLogger.AssertExpectations(t)
}

// TestPurpose: Validates that a tenant id cannot be registered twice.
// Scope: Unit Test
// Security: Tenant isolation (no silent takeover of an existing tenant id)
// Expected: ErrTenantAlreadyExists and no insert.
// Test Case ID: TEN-02
func TestTenant_Service_CreateTenant_Duplicate(t *testing.T) {
	repo := new(mockRepo)
	service := NewService(repo, new(mockAudit))
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByID", ctx, id).Return(&Tenant{ID: id, Name: "Existing"}, nil)

	_, err := service.CreateTenant(ctx, id, "Other", "root")
	assert.ErrorIs(t, err, ErrTenantAlreadyExists)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestPurpose: Validates the tenant admission check used before users are placed in a tenant.
// Scope: Unit Test
// Security: Tenant isolation (users cannot be created in unknown or disabled tenants)
// Expected: Unknown tenants yield ErrInvalidTenantID, disabled ones ErrInvalidTenant, enabled ones pass.
// Test Case ID: TEN-03
func TestTenant_Service_RequireEnabled(t *testing.T) {
	repo := new(mockRepo)
	service := NewService(repo, new(mockAudit))
	ctx := context.Background()

	enabled, disabled, missing := uuid.New(), uuid.New(), uuid.New()
	repo.On("GetByID", ctx, enabled).Return(&Tenant{ID: enabled, Enabled: true}, nil)
	repo.On("GetByID", ctx, disabled).Return(&Tenant{ID: disabled}, nil)
	repo.On("GetByID", ctx, missing).Return(nil, ErrTenantNotFound)

	got, err := service.RequireEnabled(ctx, enabled)
	require.NoError(t, err)
	assert.Equal(t, enabled, got.ID)

	_, err = service.RequireEnabled(ctx, disabled)
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = service.RequireEnabled(ctx, missing)
	assert.ErrorIs(t, err, ErrInvalidTenantID)
}

// TestPurpose: Validates that the application tenant cannot be switched off.
// Scope: Unit Test
// Security: Availability of the app-admin tenant
// Expected: Disabling the zero-UUID tenant fails; disabling a regular tenant is stored and audited.
// Test Case ID: TEN-04
func TestTenant_Service_SetEnabled(t *testing.T) {
	repo := new(mockRepo)
	auditLogger := new(mockAudit)
	service := NewService(repo, auditLogger)
	ctx := context.Background()

	_, err := service.SetEnabled(ctx, uuid.Nil, false, "root")
	assert.ErrorIs(t, err, ErrInvalidTenant)

	id := uuid.New()
	repo.On("GetByID", ctx, id).Return(&Tenant{ID: id, Enabled: true}, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(t *Tenant) bool { return t.ID == id && !t.Enabled })).Return(nil)
	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantUpdated && e.TenantID == id.String()
	})).Return()

	updated, err := service.SetEnabled(ctx, id, false, "root")
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	repo.AssertExpectations(t)
	auditLogger.AssertExpectations(t)
}

// TestPurpose: Validates list paging defaults and bounds.
// Scope: Unit Test
// Expected: A zero limit becomes 100, oversized limits are capped at 500, negative offsets reset.
// Test Case ID: TEN-05
func TestTenant_ListOptions_Normalize(t *testing.T) {
	assert.Equal(t, 100, ListOptions{}.Normalize().Limit)
	assert.Equal(t, 500, ListOptions{Limit: 10000}.Normalize().Limit)
	assert.Equal(t, 0, ListOptions{Offset: -3}.Normalize().Offset)
}
