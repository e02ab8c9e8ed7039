package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"github.com/opentrusty/tenantmgmt/internal/tenant/tenanttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTenants struct {
	mock.Mock
}

func (m *mockTenants) RequireEnabled(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

// staticRoles resolves references by name without a role table
type staticRoles struct{}

func (staticRoles) Resolve(_ context.Context, refs []rbac.Ref) ([]rbac.Role, error) {
	roles := make([]rbac.Role, 0, len(refs))
	for _, ref := range refs {
		r, err := rbac.ParseRole(ref.Name)
		if err != nil {
			return nil, err
		}
		if !r.Assignable() {
			return nil, rbac.ErrNotAssignable
		}
		roles = append(roles, r)
	}
	return roles, nil
}

type recordingCodes struct {
	sent []Notification
}

func (r *recordingCodes) IssueNotification(_ context.Context, n Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

type recordingMailer struct {
	sent []notify.Message
}

func (r *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type fixture struct {
	users    *tenanttest.UserRepo
	accounts *tenanttest.AccountRepo
	tenants  *mockTenants
	codes    *recordingCodes
	mailer   *recordingMailer
	audit    *tenanttest.Audit
	hasher   *PasswordHasher
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(tenanttest.UserRepo),
		accounts: new(tenanttest.AccountRepo),
		tenants:  new(mockTenants),
		codes:    new(recordingCodes),
		mailer:   new(recordingMailer),
		audit:    new(tenanttest.Audit),
		hasher:   NewPasswordHasher(1024, 1, 1, 16, 32),
	}
	f.svc = NewService(f.users, f.accounts, f.tenants, staticRoles{}, f.hasher, f.codes, f.mailer, f.audit)
	return f
}

func caller(subject int, tenantID uuid.UUID, orgs []string, roles ...string) authz.PermissionContext {
	return authz.New(&claims.Identity{SubjectID: &subject, TenantID: &tenantID, OrgIDs: orgs, Roles: roles})
}

func (f *fixture) storedUser(t *testing.T, id int, tenantID uuid.UUID, username, password string) *tenant.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &tenant.User{
		ID:          id,
		TenantID:    tenantID,
		Username:    username,
		Enabled:     true,
		Roles:       []rbac.Role{rbac.User},
		Credentials: tenant.Credentials{PasswordHash: hash},
	}
}

// TestPurpose: Validates the password policy.
// Scope: Unit Test
// Security: Credential strength
// Expected: Only passwords of 12+ characters with upper, lower, digit and special characters pass.
// Test Case ID: IDN-01
func TestIdentity_ValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"Sup3r-Secret!", true},
		{"Abcdefgh12@x", true},
		{"Sh0rt!Pw", false},
		{"alllowercase1!", false},
		{"ALLUPPERCASE1!", false},
		{"NoDigitsHere!!", false},
		{"NoSpecials1234", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePassword(tt.password))
		})
	}
}

// TestPurpose: Validates username normalization and address validation.
// Scope: Unit Test
// Security: Input validation on the account identifier
// Expected: Usernames are trimmed and lower-cased; display names, trailing dots and non-addresses fail.
// Test Case ID: IDN-02
func TestIdentity_NormalizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"  Jane.Doe@Example.COM ", "jane.doe@example.com", true},
		{"jane@example.com.", "jane@example.com.", false},
		{"Jane <jane@example.com>", "jane <jane@example.com>", false},
		{"not-an-address", "not-an-address", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeUsername(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

// TestPurpose: Validates Argon2id hashing and verification.
// Scope: Unit Test
// Security: Password storage
// Expected: The right password verifies, a wrong one does not, and malformed hashes are rejected.
// Test Case ID: IDN-03
func TestIdentity_PasswordHasher(t *testing.T) {
	h := NewPasswordHasher(1024, 1, 1, 16, 32)
	hash, err := h.Hash("Sup3r-Secret!")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=1024,t=1,p=1$")

	ok, err := h.Verify("Sup3r-Secret!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Sup3r-Secret?", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	// A hasher with different parameters still verifies old hashes.
	ok, err = NewPasswordHasher(2048, 2, 2, 16, 32).Verify("Sup3r-Secret!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.Verify("Sup3r-Secret!", "$bcrypt$whatever")
	assert.Error(t, err)
}

// TestPurpose: Validates anonymous self-registration into the caller's default tenant.
// Scope: Unit Test
// Security: Registration input validation and tenant placement
// Expected: The user is stored normalized, enabled, without roles, and a verification code is issued.
// Test Case ID: IDN-04
func TestIdentity_Service_CreateUser_Signup(t *testing.T) {
	f := newFixture()
	tid := uuid.New()
	pc := authz.New(&claims.Identity{TenantID: &tid})

	f.tenants.On("RequireEnabled", mock.Anything, tid).Return(&tenant.Tenant{ID: tid, Enabled: true}, nil)
	f.users.On("GetByUsername", mock.Anything, "new@example.com").Return(nil, tenant.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *tenant.User) bool {
		return u.Username == "new@example.com" && u.TenantID == tid && u.Enabled && len(u.Roles) == 0 &&
			u.Credentials.PasswordHash != ""
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*tenant.User).ID = 7
	}).Return(nil)

	user, err := f.svc.CreateUser(context.Background(), pc, tenant.NewUser{
		Username: " New@Example.com",
		Password: "Sup3r-Secret!",
		// Ignored for anonymous callers.
		Roles: []rbac.Ref{{Name: "Admin"}},
	}, "", notify.Verification, false)
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)

	require.Len(t, f.codes.sent, 1)
	assert.Equal(t, notify.Verification, f.codes.sent[0].Template)
	assert.Equal(t, []string{audit.TypeUserCreated}, f.audit.Types())
	f.users.AssertExpectations(t)
}

// TestPurpose: Validates who may create users and where.
// Scope: Unit Test
// Security: Privilege checks on user creation and cross-tenant placement
// Expected: Non-managers get ErrUnauthorized, other tenants need app admin, malformed tenants are rejected.
// Test Case ID: IDN-05
func TestIdentity_Service_CreateUser_Denied(t *testing.T) {
	ctx := context.Background()
	tid := uuid.New()
	nu := tenant.NewUser{Username: "x@example.com", Password: "Sup3r-Secret!"}

	f := newFixture()
	_, err := f.svc.CreateUser(ctx, caller(3, tid, nil, "User"), nu, "", notify.None, false)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	_, err = f.svc.CreateUser(ctx, caller(3, tid, nil, "Manager"), nu, uuid.NewString(), notify.None, false)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.svc.CreateUser(ctx, caller(3, tid, nil, "Manager"), nu, "not-a-uuid", notify.None, false)
	assert.ErrorIs(t, err, tenant.ErrInvalidTenantID)

	_, err = f.svc.CreateUser(ctx, caller(3, tid, nil, "Manager"), tenant.NewUser{Username: "x@example.com", Password: "weak"}, "", notify.None, false)
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = f.svc.CreateUser(ctx, caller(3, tid, nil, "Manager"), tenant.NewUser{Username: "x", Password: "Sup3r-Secret!"}, "", notify.None, false)
	assert.ErrorIs(t, err, ErrInvalidUserData)

	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestPurpose: Validates role grants on user creation against the caller's rank.
// Scope: Unit Test
// Security: Privilege escalation prevention
// Expected: A Manager cannot grant Admin (ErrInvalidRoles, audited) but can grant User.
// Test Case ID: IDN-06
func TestIdentity_Service_CreateUser_RoleCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	pc := caller(3, tid, nil, "Manager")

	f.tenants.On("RequireEnabled", mock.Anything, tid).Return(&tenant.Tenant{ID: tid, Enabled: true}, nil)
	f.users.On("GetByUsername", mock.Anything, "staff@example.com").Return(nil, tenant.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.CreateUser(ctx, pc, tenant.NewUser{
		Username: "staff@example.com", Password: "Sup3r-Secret!", Roles: []rbac.Ref{{Name: "Admin"}},
	}, "", notify.None, false)
	assert.ErrorIs(t, err, authz.ErrInvalidRoles)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)
	assert.Equal(t, []string{audit.TypeRoleAssignmentDenied}, f.audit.Types())

	_, err = f.svc.CreateUser(ctx, pc, tenant.NewUser{
		Username: "staff@example.com", Password: "Sup3r-Secret!", Roles: []rbac.Ref{{Name: "UnknownRole"}},
	}, "", notify.None, false)
	assert.ErrorIs(t, err, rbac.ErrUnknownRole)

	user, err := f.svc.CreateUser(ctx, pc, tenant.NewUser{
		Username: "staff@example.com", Password: "Sup3r-Secret!", Roles: []rbac.Ref{{Name: "User"}},
	}, "", notify.None, false)
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.User}, user.Roles)
	assert.Empty(t, f.codes.sent)
}

// TestPurpose: Validates that usernames are unique.
// Scope: Unit Test
// Security: Account takeover prevention
// Expected: ErrUserAlreadyExists when the username is taken.
// Test Case ID: IDN-07
func TestIdentity_Service_CreateUser_Conflict(t *testing.T) {
	f := newFixture()
	tid := uuid.New()
	pc := authz.New(&claims.Identity{TenantID: &tid})

	f.tenants.On("RequireEnabled", mock.Anything, tid).Return(&tenant.Tenant{ID: tid, Enabled: true}, nil)
	f.users.On("GetByUsername", mock.Anything, "taken@example.com").Return(&tenant.User{ID: 2}, nil)

	_, err := f.svc.CreateUser(context.Background(), pc, tenant.NewUser{Username: "taken@example.com", Password: "Sup3r-Secret!"}, "", notify.None, false)
	assert.ErrorIs(t, err, tenant.ErrUserAlreadyExists)
}

// TestPurpose: Validates the view a caller receives for a user record.
// Scope: Unit Test
// Security: Data minimization and tenant isolation on reads
// Expected: Full outside account context, Self for self in account context, Min otherwise; other tenants are hidden from non app admins.
// Test Case ID: IDN-08
func TestIdentity_Service_GetUser_View(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	user := &tenant.User{ID: 5, TenantID: tid, Username: "u@example.com"}
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)

	_, view, err := f.svc.GetUser(ctx, caller(1, tid, nil, "Admin"), 5)
	require.NoError(t, err)
	assert.Equal(t, ViewFull, view)

	_, view, err = f.svc.GetUser(ctx, caller(5, tid, []string{"3"}, "AccountUser"), 5)
	require.NoError(t, err)
	assert.Equal(t, ViewSelf, view)

	_, view, err = f.svc.GetUser(ctx, caller(6, tid, []string{"3"}, "AccountManager"), 5)
	require.NoError(t, err)
	assert.Equal(t, ViewMin, view)

	_, _, err = f.svc.GetUser(ctx, caller(1, uuid.New(), nil, "Admin"), 5)
	assert.ErrorIs(t, err, tenant.ErrUserNotFound)

	_, view, err = f.svc.GetUser(ctx, caller(1, rbac.AppTenantID, nil, "AppAdmin"), 5)
	require.NoError(t, err)
	assert.Equal(t, ViewFull, view)
}

// TestPurpose: Validates the username change flow.
// Scope: Unit Test
// Security: Account recovery integrity (a new address must be confirmed by code before it takes effect)
// Expected: Taken names fail with ErrEmailInUse; otherwise the pending name is stored as transient context and both addresses are notified.
// Test Case ID: IDN-09
func TestIdentity_Service_EditUser_UsernameChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	user := f.storedUser(t, 5, tid, "old@example.com", "Sup3r-Secret!")
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)
	f.users.On("GetByUsername", mock.Anything, "taken@example.com").Return(&tenant.User{ID: 9}, nil)
	f.users.On("GetByUsername", mock.Anything, "new@example.com").Return(nil, tenant.ErrUserNotFound)
	f.users.On("Update", mock.Anything, user).Return(nil)

	self := caller(5, tid, nil, "User")
	taken := "taken@example.com"
	_, err := f.svc.EditUser(ctx, self, 5, tenant.UserUpdate{Username: &taken})
	assert.ErrorIs(t, err, tenant.ErrEmailInUse)

	changed := "New@Example.com"
	_, err = f.svc.EditUser(ctx, caller(1, tid, nil, "Admin"), 5, tenant.UserUpdate{Username: &changed})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	updated, err := f.svc.EditUser(ctx, self, 5, tenant.UserUpdate{Username: &changed})
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", updated.Username)
	assert.Equal(t, "TransientAka:new@example.com", updated.Credentials.TransientContext)
	assert.True(t, updated.Enabled)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, notify.ChangeEmailNotification, f.mailer.sent[0].Template)
	assert.Equal(t, "old@example.com", f.mailer.sent[0].To)

	require.Len(t, f.codes.sent, 1)
	assert.Equal(t, notify.ChangeEmailPasswordReset, f.codes.sent[0].Template)
	assert.Equal(t, "new@example.com", f.codes.sent[0].Recipient)
}

// TestPurpose: Validates edit permissions and the enabled flag.
// Scope: Unit Test
// Security: Horizontal privilege escalation prevention
// Expected: Non-self non-managers are refused; a user left without roles or memberships is disabled.
// Test Case ID: IDN-10
func TestIdentity_Service_EditUser_Permissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	user := f.storedUser(t, 5, tid, "u@example.com", "Sup3r-Secret!")
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	name := "Jane"
	_, err := f.svc.EditUser(ctx, caller(6, tid, nil, "User"), 5, tenant.UserUpdate{FirstName: &name})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.svc.EditUser(ctx, caller(1, uuid.New(), nil, "Admin"), 5, tenant.UserUpdate{FirstName: &name})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	updated, err := f.svc.EditUser(ctx, caller(1, tid, nil, "Admin"), 5, tenant.UserUpdate{FirstName: &name, Roles: []rbac.Ref{}})
	require.NoError(t, err)
	assert.Equal(t, "Jane", updated.FirstName)
	assert.Empty(t, updated.Roles)
	assert.False(t, updated.Enabled)
}

// TestPurpose: Validates user deletion.
// Scope: Unit Test
// Security: Destructive operation authorization
// Expected: Managers are refused; an Admin of the same tenant disables the user and strips roles, scopes and memberships.
// Test Case ID: IDN-11
func TestIdentity_Service_DeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	user := f.storedUser(t, 5, tid, "u@example.com", "Sup3r-Secret!")
	user.Scopes = []string{"reports"}
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)

	assert.ErrorIs(t, f.svc.DeleteUser(ctx, caller(1, tid, nil, "Manager"), 5), authz.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, caller(1, uuid.New(), nil, "Admin"), 5), authz.ErrForbidden)

	f.accounts.On("RemoveAllMemberships", mock.Anything, 5).Return(nil)
	f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *tenant.User) bool {
		return !u.Enabled && len(u.Roles) == 0 && len(u.Scopes) == 0
	})).Return(nil)

	require.NoError(t, f.svc.DeleteUser(ctx, caller(1, tid, nil, "Admin"), 5))
	assert.Equal(t, []string{audit.TypeUserDeleted}, f.audit.Types())
	f.accounts.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

// TestPurpose: Validates password changes.
// Scope: Unit Test
// Security: Credential change authorization and reuse prevention
// Expected: Missing proof is ErrInvalidPassword, a wrong previous password ErrInvalidCredentials, reuse ErrPasswordReuse; a transient token with an aka scope renames the user.
// Test Case ID: IDN-12
func TestIdentity_Service_SetPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	user := f.storedUser(t, 5, tid, "old@example.com", "Sup3r-Secret!")
	oldHash := user.Credentials.PasswordHash
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)

	self := caller(5, tid, nil, "User")
	assert.ErrorIs(t, f.svc.SetPassword(ctx, self, 5, "Brand-New-Pass2!", ""), ErrInvalidPassword)
	assert.ErrorIs(t, f.svc.SetPassword(ctx, self, 5, "weak", "Sup3r-Secret!"), ErrInvalidPassword)
	assert.ErrorIs(t, f.svc.SetPassword(ctx, self, 5, "Brand-New-Pass2!", "Wrong-Pass-999!"), ErrInvalidCredentials)
	assert.ErrorIs(t, f.svc.SetPassword(ctx, self, 5, "Sup3r-Secret!", "Sup3r-Secret!"), ErrPasswordReuse)
	assert.ErrorIs(t, f.svc.SetPassword(ctx, caller(1, uuid.New(), nil, "Admin"), 5, "Brand-New-Pass2!", ""), authz.ErrForbidden)

	user.Credentials.TransientDigest = "digest"
	user.Credentials.TransientContext = "TransientAka:new@example.com"
	sub := 5
	transient := authz.New(&claims.Identity{
		SubjectID: &sub,
		TenantID:  &tid,
		Scopes:    []string{rbac.ScopeTransientAuthentication, "TransientAka:new@example.com"},
	})
	f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *tenant.User) bool {
		return u.Username == "new@example.com"
	})).Return(nil)
	f.users.On("UpdateCredentials", mock.Anything, 5, mock.MatchedBy(func(c tenant.Credentials) bool {
		return c.PasswordHash != oldHash && c.TransientDigest == "" && c.TransientContext == ""
	})).Return(nil)

	require.NoError(t, f.svc.SetPassword(ctx, transient, 5, "Brand-New-Pass2!", ""))
	assert.Equal(t, "new@example.com", user.Username)
	assert.Equal(t, []string{audit.TypePasswordChanged}, f.audit.Types())
	f.users.AssertExpectations(t)
}

// TestPurpose: Validates re-sending verification and invitation codes.
// Scope: Unit Test
// Security: Notification abuse prevention
// Expected: Other templates are rejected, verified users are skipped, and in account context only self may ask.
// Test Case ID: IDN-13
func TestIdentity_Service_IssueNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	pending := &tenant.User{ID: 5, TenantID: tid, Username: "p@example.com"}
	verified := &tenant.User{ID: 6, TenantID: tid, Username: "v@example.com", Verified: true}
	f.users.On("GetByID", mock.Anything, 5).Return(pending, nil)
	f.users.On("GetByID", mock.Anything, 6).Return(verified, nil)

	admin := caller(1, tid, nil, "Admin")
	assert.ErrorIs(t, f.svc.IssueNotification(ctx, admin, 5, notify.PasswordReset), ErrInvalidNotification)

	require.NoError(t, f.svc.IssueNotification(ctx, admin, 6, notify.Verification))
	assert.Empty(t, f.codes.sent)

	assert.ErrorIs(t, f.svc.IssueNotification(ctx, caller(2, tid, []string{"3"}, "AccountOwner"), 5, notify.Invitation), authz.ErrForbidden)

	require.NoError(t, f.svc.IssueNotification(ctx, caller(5, tid, []string{"3"}, "AccountUser"), 5, notify.Verification))
	require.NoError(t, f.svc.IssueNotification(ctx, admin, 5, notify.Invitation))
	require.Len(t, f.codes.sent, 2)
	assert.Equal(t, notify.Invitation, f.codes.sent[1].Template)
}

// TestPurpose: Validates first-run creation of the application administrator.
// Scope: Unit Test
// Security: Privileged account provisioning
// Expected: The admin is created in the app tenant with AppAdmin, and a reset code is issued when no password is configured; a second run is a no-op.
// Test Case ID: IDN-14
func TestIdentity_Bootstrap(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	boot := NewBootstrapService(f.svc, f.audit)

	require.NoError(t, boot.Bootstrap(ctx, BootstrapConfig{}))

	f.users.On("GetByUsername", mock.Anything, "root@example.com").Return(nil, tenant.ErrUserNotFound).Once()
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *tenant.User) bool {
		return u.TenantID == rbac.AppTenantID && rbac.Contains(u.Roles, rbac.AppAdmin) && u.Verified
	})).Return(nil).Once()

	require.NoError(t, boot.Bootstrap(ctx, BootstrapConfig{AdminEmail: "Root@Example.com"}))
	require.Len(t, f.codes.sent, 1)
	assert.Equal(t, notify.PasswordReset, f.codes.sent[0].Template)
	assert.Equal(t, []string{audit.TypeRoleAssigned}, f.audit.Types())

	f.users.On("GetByUsername", mock.Anything, "root@example.com").Return(&tenant.User{
		ID: 1, TenantID: rbac.AppTenantID, Username: "root@example.com", Enabled: true, Roles: []rbac.Role{rbac.AppAdmin},
	}, nil).Once()
	require.NoError(t, boot.Bootstrap(ctx, BootstrapConfig{AdminEmail: "root@example.com"}))
	assert.Len(t, f.audit.Events, 1)
	f.users.AssertExpectations(t)
}

// TestPurpose: Validates self-service password change inside an account context.
// Scope: Unit Test
// Security: Self access without a manage role
// Expected: An account member with no manage role changes its own password with the previous one; without it the change is refused.
// Test Case ID: IDN-15
func TestIdentity_Service_SetPasswordAccountContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tid := uuid.New()
	user := f.storedUser(t, 5, tid, "member@example.com", "Sup3r-Secret!")
	user.Roles = nil
	oldHash := user.Credentials.PasswordHash
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)
	f.users.On("UpdateCredentials", mock.Anything, 5, mock.MatchedBy(func(c tenant.Credentials) bool {
		return c.PasswordHash != oldHash
	})).Return(nil).Once()

	self := caller(5, tid, []string{"42"}, "AccountStakeholder")
	flags := self.WithUser(user).Flags()
	require.True(t, flags.IsAccountContext)
	require.True(t, flags.IsSelf)
	require.False(t, flags.IsManageRole())
	require.False(t, flags.IsAccountManageRole())

	assert.ErrorIs(t, f.svc.SetPassword(ctx, self, 5, "Brand-New-Pass2!", ""), ErrInvalidPassword)
	require.NoError(t, f.svc.SetPassword(ctx, self, 5, "Brand-New-Pass2!", "Sup3r-Secret!"))

	valid, err := f.hasher.Verify("Brand-New-Pass2!", user.Credentials.PasswordHash)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, []string{audit.TypePasswordChanged}, f.audit.Types())
	f.users.AssertExpectations(t)
}

// TestPurpose: Validates that creating an invited user sends nothing by itself.
// Scope: Unit Test
// Security: Invitations are only sent once the user belongs somewhere
// Expected: A password is generated, the user is stored, and no code is issued.
// Test Case ID: IDN-16
func TestIdentity_Service_CreateInvitedUser(t *testing.T) {
	f := newFixture()
	tid := uuid.New()

	f.tenants.On("RequireEnabled", mock.Anything, tid).Return(&tenant.Tenant{ID: tid, Enabled: true}, nil)
	f.users.On("GetByUsername", mock.Anything, "invitee@example.com").Return(nil, tenant.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *tenant.User) bool {
		return u.Username == "invitee@example.com" && u.TenantID == tid && u.Credentials.PasswordHash != "" && !u.Verified
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*tenant.User).ID = 9
	}).Return(nil)

	user, err := f.svc.CreateInvitedUser(context.Background(), caller(1, tid, []string{"42"}, "AccountOwner"), tenant.NewUser{
		Username: "Invitee@Example.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 9, user.ID)
	assert.Empty(t, f.codes.sent)
	f.users.AssertExpectations(t)
}
