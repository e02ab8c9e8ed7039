package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"github.com/opentrusty/tenantmgmt/internal/tenant/tenanttest"
	"github.com/opentrusty/tenantmgmt/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []notify.Message
}

func (r *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type fixture struct {
	users  *tenanttest.UserRepo
	mailer *recordingMailer
	audit  *tenanttest.Audit
	hasher *identity.PasswordHasher
	tokens *token.Service
	svc    *Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := token.NewService(token.Config{Secret: "test-secret-test-secret-test-secret", Issuer: "tenantmgmt", Audience: "api", TTL: 24 * time.Hour})
	require.NoError(t, err)

	f := &fixture{
		users:  new(tenanttest.UserRepo),
		mailer: new(recordingMailer),
		audit:  new(tenanttest.Audit),
		hasher: identity.NewPasswordHasher(1024, 1, 1, 16, 32),
		tokens: tokens,
		now:    time.Now(),
	}
	f.svc = NewService(f.users, f.hasher, tokens, f.mailer, f.audit, Config{})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(t *testing.T, id int, username, password string) *tenant.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &tenant.User{
		ID:          id,
		TenantID:    uuid.New(),
		Username:    username,
		Enabled:     true,
		Verified:    true,
		Roles:       []rbac.Role{rbac.Manager},
		Credentials: tenant.Credentials{PasswordHash: hash},
	}
}

func (f *fixture) expectLogin(userID int) {
	f.users.On("UpdateCredentials", mock.Anything, userID, mock.Anything).Return(nil)
	f.users.On("RecordLogin", mock.Anything, userID).Return(nil)
}

// TestPurpose: Validates password login and the claims of the issued token.
// Scope: Unit Test
// Security: Authentication and token content
// Expected: The token carries sub, tid, email and the user's tenant roles; a refresh digest is stored and stale codes of verified users are cleared.
// Test Case ID: AUTH-01
func TestAuth_Service_Authenticate(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	user.Scopes = []string{"reports"}
	user.Credentials.TransientDigest = "stale"
	f.users.On("GetByUsername", mock.Anything, "jane@example.com").Return(user, nil)
	f.users.On("UpdateCredentials", mock.Anything, 5, mock.MatchedBy(func(c tenant.Credentials) bool {
		return c.RefreshDigest != "" && c.RefreshExpiry != nil && c.TransientDigest == ""
	})).Return(nil)
	f.users.On("RecordLogin", mock.Anything, 5).Return(nil)

	resp, err := f.svc.Authenticate(context.Background(), " Jane@Example.com", "Sup3r-Secret!")
	require.NoError(t, err)
	assert.Nil(t, resp.AccountID)
	assert.Equal(t, []string{"Manager"}, resp.Roles)
	assert.WithinDuration(t, f.now.Add(DefaultRefreshTTL), resp.RefreshTokenExpiry, time.Second)
	assert.Equal(t, digest(resp.RefreshToken), user.Credentials.RefreshDigest)

	set, err := f.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, set.All(claims.TypeNameIdentifier))
	assert.Equal(t, []string{user.TenantID.String()}, set.All(claims.TypeTenantID))
	assert.Equal(t, []string{"jane@example.com"}, set.All(claims.TypeEmail))
	assert.Equal(t, []string{"Manager"}, set.All(claims.TypeRole))
	assert.Equal(t, []string{"reports"}, set.All(claims.TypeScope))
	assert.Empty(t, set.All(claims.TypeOrgID))

	assert.Equal(t, []string{audit.TypeLoginSuccess}, f.audit.Types())
	f.users.AssertExpectations(t)
}

// TestPurpose: Validates that failed logins are indistinguishable and audited.
// Scope: Unit Test
// Security: Account enumeration resistance
// Expected: Unknown users, wrong passwords and disabled users all yield ErrInvalidCredentials with a login_failed event.
// Test Case ID: AUTH-02
func TestAuth_Service_Authenticate_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	active := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	disabled := f.user(t, 6, "gone@example.com", "Sup3r-Secret!")
	disabled.Enabled = false
	f.users.On("GetByUsername", mock.Anything, "nobody@example.com").Return(nil, tenant.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, "jane@example.com").Return(active, nil)
	f.users.On("GetByUsername", mock.Anything, "gone@example.com").Return(disabled, nil)

	_, err := f.svc.Authenticate(ctx, "nobody@example.com", "Sup3r-Secret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "jane@example.com", "Wrong-Secret!1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "gone@example.com", "Sup3r-Secret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, []string{audit.TypeLoginFailed, audit.TypeLoginFailed, audit.TypeLoginFailed}, f.audit.Types())
	f.users.AssertNotCalled(t, "UpdateCredentials", mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates refresh token rotation and expiry.
// Scope: Unit Test
// Security: Session continuation
// Expected: The issued refresh token is accepted once rotated in, wrong or expired tokens are rejected.
// Test Case ID: AUTH-03
func TestAuth_Service_Refresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	f.users.On("GetByUsername", mock.Anything, "jane@example.com").Return(user, nil)
	f.expectLogin(5)

	first, err := f.svc.Authenticate(ctx, "jane@example.com", "Sup3r-Secret!")
	require.NoError(t, err)

	_, err = f.svc.RefreshAuthToken(ctx, "jane@example.com", "not-the-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.RefreshAuthToken(ctx, "jane@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	second, err := f.svc.RefreshAuthToken(ctx, "jane@example.com", first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The first refresh token was rotated out.
	_, err = f.svc.RefreshAuthToken(ctx, "jane@example.com", first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.now = f.now.Add(DefaultRefreshTTL + time.Minute)
	_, err = f.svc.RefreshAuthToken(ctx, "jane@example.com", second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// TestPurpose: Validates one-time code issuance and redemption.
// Scope: Unit Test
// Security: Password reset and invitation flows (brute-force damping, scope of the resulting token)
// Expected: Reset codes are 9 characters valid 15 minutes; a wrong code halves the remaining lifetime; the right code verifies the user and grants the transient scopes.
// Test Case ID: AUTH-04
func TestAuth_Service_TransientFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	user.Verified = false
	user.Credentials.TransientContext = "TransientAka:new@example.com"
	f.users.On("GetByUsername", mock.Anything, "jane@example.com").Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)
	f.expectLogin(5)

	require.NoError(t, f.svc.IssueNotification(ctx, identity.Notification{
		User: user, Template: notify.ChangeEmailPasswordReset, From: "jane@example.com", Recipient: "new@example.com",
	}))
	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "new@example.com", msg.To)
	assert.Len(t, msg.Code, shortCodeLength)
	require.NotNil(t, user.Credentials.TransientExpiry)
	assert.WithinDuration(t, f.now.Add(shortCodeTTL), *user.Credentials.TransientExpiry, time.Millisecond)

	_, err := f.svc.TransientAuthToken(ctx, "jane@example.com", "WRONGCODE")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.WithinDuration(t, f.now.Add(shortCodeTTL/2), *user.Credentials.TransientExpiry, time.Millisecond)

	resp, err := f.svc.TransientAuthToken(ctx, "Jane@Example.com", msg.Code)
	require.NoError(t, err)
	assert.True(t, user.Verified)

	set, err := f.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{rbac.ScopeTransientAuthentication, "TransientAka:new@example.com"}, set.All(claims.TypeScope))
	// Transient state survives until the password is set.
	assert.NotEmpty(t, user.Credentials.TransientDigest)
}

// TestPurpose: Validates code length and lifetime for non-reset templates and unknown users.
// Scope: Unit Test
// Security: One-time code strength
// Expected: Invitation codes are 12 characters valid 3 days and only their digest is stored; unknown users are not found.
// Test Case ID: AUTH-05
func TestAuth_Service_IssueTransientToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)
	f.users.On("GetByUsername", mock.Anything, "nobody@example.com").Return(nil, tenant.ErrUserNotFound)
	f.users.On("UpdateCredentials", mock.Anything, 5, mock.Anything).Return(nil)

	require.NoError(t, f.svc.IssueTransientToken(ctx, notify.Invitation, "", 5, "admin@example.com"))
	require.Len(t, f.mailer.sent, 1)
	code := f.mailer.sent[0].Code
	assert.Len(t, code, longCodeLength)
	assert.Equal(t, codeDigest("jane@example.com", code), user.Credentials.TransientDigest)
	assert.NotContains(t, user.Credentials.TransientDigest, code)
	assert.WithinDuration(t, f.now.Add(longCodeTTL), *user.Credentials.TransientExpiry, time.Millisecond)

	err := f.svc.IssueTransientToken(ctx, notify.PasswordReset, "nobody@example.com", 0, "")
	assert.ErrorIs(t, err, tenant.ErrUserNotFound)
}

// TestPurpose: Validates which account a token is scoped to.
// Scope: Unit Test
// Security: Account context selection (no token for an account the user is not a member of)
// Expected: Foreign accounts are ignored; account-only users are pinned to their primary or first account.
// Test Case ID: AUTH-06
func TestAuth_SelectAccount(t *testing.T) {
	ptr := func(v int) *int { return &v }
	memberships := []*tenant.AccountUser{{AccountID: 10}, {AccountID: 11, Primary: true}}

	tests := []struct {
		name      string
		roles     []rbac.Role
		accounts  []*tenant.AccountUser
		requested *int
		want      *int
	}{
		{"no accounts", []rbac.Role{rbac.Admin}, nil, ptr(10), nil},
		{"member account kept", []rbac.Role{rbac.Admin}, memberships, ptr(10), ptr(10)},
		{"foreign account ignored, tenant role", []rbac.Role{rbac.Admin}, memberships, ptr(99), nil},
		{"foreign account ignored, pinned to primary", nil, memberships, ptr(99), ptr(11)},
		{"account-only user pinned to primary", []rbac.Role{rbac.AccountUser}, memberships, nil, ptr(11)},
		{"no primary falls back to first", nil, []*tenant.AccountUser{{AccountID: 12}, {AccountID: 13}}, nil, ptr(12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &tenant.User{Roles: tt.roles, Accounts: tt.accounts}
			assert.Equal(t, tt.want, selectAccount(user, tt.requested))
		})
	}
}

// TestPurpose: Validates switching a token between tenant level and an account.
// Scope: Unit Test
// Security: Account context escalation prevention
// Expected: Tenant level requires a tenant role (ErrNoAppRole); non-member accounts are ErrInvalidAccount; member accounts carry org and membership roles.
// Test Case ID: AUTH-07
func TestAuth_Service_GetAccountAuthToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	user.Roles = nil
	user.Accounts = []*tenant.AccountUser{{AccountID: 10, UserID: 5, Roles: []rbac.Role{rbac.AccountAdmin}}}
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)
	f.expectLogin(5)

	sub := 5
	id := &claims.Identity{SubjectID: &sub, TenantID: &user.TenantID}

	_, err := f.svc.GetAccountAuthToken(ctx, nil, nil)
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)

	_, err = f.svc.GetAccountAuthToken(ctx, id, nil)
	assert.ErrorIs(t, err, ErrNoAppRole)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	other := 11
	_, err = f.svc.GetAccountAuthToken(ctx, id, &other)
	assert.ErrorIs(t, err, ErrInvalidAccount)
	assert.ErrorIs(t, err, tenant.ErrAccountNotFound)

	account := 10
	resp, err := f.svc.GetAccountAuthToken(ctx, id, &account)
	require.NoError(t, err)
	require.NotNil(t, resp.AccountID)
	assert.Equal(t, 10, *resp.AccountID)

	set, err := f.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, set.All(claims.TypeOrgID))
	assert.Equal(t, []string{"AccountAdmin"}, set.All(claims.TypeRole))
}

// TestPurpose: Validates impersonation token issuance.
// Scope: Unit Test
// Security: Tenant isolation for administrative impersonation
// Expected: Admins of another tenant cannot see the user; app admins and same-tenant admins get a token and the issuance is audited.
// Test Case ID: AUTH-08
func TestAuth_Service_GetAuthToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, 5, "jane@example.com", "Sup3r-Secret!")
	f.users.On("GetByID", mock.Anything, 5).Return(user, nil)
	f.expectLogin(5)

	admin := 1
	foreign := uuid.New()
	_, err := f.svc.GetAuthToken(ctx, authz.New(&claims.Identity{SubjectID: &admin, TenantID: &foreign, Roles: []string{"Admin"}}), 5, "")
	assert.ErrorIs(t, err, tenant.ErrUserNotFound)

	appTenant := rbac.AppTenantID
	resp, err := f.svc.GetAuthToken(ctx, authz.New(&claims.Identity{SubjectID: &admin, TenantID: &appTenant, Username: "root@example.com", Roles: []string{"AppAdmin"}}), 5, "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	require.Len(t, f.audit.Events, 1)
	assert.Equal(t, audit.TypeTokenIssued, f.audit.Events[0].Type)
	assert.Equal(t, "root@example.com", f.audit.Events[0].ActorID)
}

// TestPurpose: Validates the expired credential sweep.
// Scope: Unit Test
// Security: Stale one-time codes and refresh tokens are revoked
// Expected: A sweep that touches users is audited as the background identity; an empty sweep is not audited; repository failures are wrapped.
// Test Case ID: AUTH-09
func TestAuth_ClearExpiredCredentials(t *testing.T) {
	f := newFixture(t)
	f.users.On("ClearExpiredCredentials", mock.Anything).Return(int64(3), nil).Once()
	f.users.On("ClearExpiredCredentials", mock.Anything).Return(int64(0), nil).Once()
	f.users.On("ClearExpiredCredentials", mock.Anything).Return(int64(0), errors.New("connection reset")).Once()

	n, err := f.svc.ClearExpiredCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, f.audit.Events, 1)
	assert.Equal(t, audit.TypeCredentialsCleared, f.audit.Events[0].Type)
	assert.Equal(t, rbac.BackgroundService, f.audit.Events[0].ActorID)

	n, err = f.svc.ClearExpiredCredentials(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.audit.Events, 1)

	_, err = f.svc.ClearExpiredCredentials(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}
