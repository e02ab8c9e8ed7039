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

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"github.com/opentrusty/tenantmgmt/internal/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var tracer = otel.Tracer("github.com/opentrusty/tenantmgmt/internal/auth")

// Domain errors
var (
	ErrInvalidCredentials = identity.ErrInvalidCredentials
	ErrNoAppRole          = fmt.Errorf("app role not found: %w", authz.ErrForbidden)
	ErrInvalidAccount     = fmt.Errorf("invalid account id: %w", tenant.ErrAccountNotFound)
)

const (
	// DefaultRefreshTTL is how long a refresh token stays valid
	DefaultRefreshTTL = 7 * 24 * time.Hour

	shortCodeLength = 9
	shortCodeTTL    = 15 * time.Minute
	longCodeLength  = 12
	longCodeTTL     = 3 * 24 * time.Hour
)

// Login methods, used as metric and audit attributes
const (
	MethodPassword    = "password"
	MethodRefresh     = "refresh"
	MethodTransient   = "transient"
	MethodAccount     = "account"
	MethodImpersonate = "impersonate"
)

// Config holds authentication settings
type Config struct {
	RefreshTTL time.Duration
	// Logins counts login attempts by method and result. Optional.
	Logins metric.Int64Counter
}

// TokenIssuer signs bearer tokens
type TokenIssuer interface {
	Issue(g token.Grant) (*token.Token, error)
}

// LoginResponse is returned by every successful login
type LoginResponse struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expiresAt"`
	TenantID           string    `json:"tenantId"`
	AccountID          *int      `json:"accountId,omitempty"`
	Roles              []string  `json:"roles"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry"`
}

// Service issues bearer tokens and one-time codes
type Service struct {
	users       tenant.UserRepository
	hasher      *identity.PasswordHasher
	tokens      TokenIssuer
	mailer      notify.Notifier
	auditLogger audit.Logger
	refreshTTL  time.Duration
	logins      metric.Int64Counter
	now         func() time.Time
}

// NewService creates a new authentication service
func NewService(
	users tenant.UserRepository,
	hasher *identity.PasswordHasher,
	tokens TokenIssuer,
	mailer notify.Notifier,
	auditLogger audit.Logger,
	cfg Config,
) *Service {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Logins == nil {
		cfg.Logins = noop.Int64Counter{}
	}
	return &Service{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		mailer:      mailer,
		auditLogger: auditLogger,
		refreshTTL:  cfg.RefreshTTL,
		logins:      cfg.Logins,
		now:         time.Now,
	}
}

// Authenticate logs a user in with username and password
func (s *Service) Authenticate(ctx context.Context, username, password string) (*LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	user, err := s.lookup(ctx, MethodPassword, username)
	if err != nil {
		return nil, err
	}
	valid, err := s.hasher.Verify(password, user.Credentials.PasswordHash)
	if err != nil || !valid {
		s.failed(ctx, MethodPassword, user, user.Username, "invalid_password")
		return nil, ErrInvalidCredentials
	}
	return s.login(ctx, MethodPassword, user, nil, nil)
}

// RefreshAuthToken exchanges a refresh token for a new token pair
func (s *Service) RefreshAuthToken(ctx context.Context, username, refresh string) (*LoginResponse, error) {
	if username == "" || refresh == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.lookup(ctx, MethodRefresh, username)
	if err != nil {
		return nil, err
	}
	c := user.Credentials
	if !digestEqual(c.RefreshDigest, digest(refresh)) || c.RefreshExpiry == nil || c.RefreshExpiry.Before(s.now()) {
		s.failed(ctx, MethodRefresh, user, user.Username, "invalid_refresh_token")
		return nil, ErrInvalidCredentials
	}
	return s.login(ctx, MethodRefresh, user, nil, nil)
}

// TransientAuthToken logs a user in with a one-time code. The resulting token
// carries the TransientAuthentication scope and any pending transient context.
// A wrong code halves the remaining lifetime of the live one.
func (s *Service) TransientAuthToken(ctx context.Context, username, code string) (*LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "auth.TransientAuthToken")
	defer span.End()

	if username == "" || code == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.lookup(ctx, MethodTransient, username)
	if err != nil {
		return nil, err
	}

	c := &user.Credentials
	now := s.now()
	live := c.TransientDigest != "" && c.TransientExpiry != nil && c.TransientExpiry.After(now)
	if !live || !digestEqual(c.TransientDigest, codeDigest(user.Username, code)) {
		if live {
			halved := c.TransientExpiry.Add(-c.TransientExpiry.Sub(now) / 2)
			c.TransientExpiry = &halved
			if err := s.users.UpdateCredentials(ctx, user.ID, *c); err != nil {
				slog.ErrorContext(ctx, "failed to shorten transient code", logger.UserID(user.ID), logger.Error(err))
			}
		}
		s.failed(ctx, MethodTransient, user, user.Username, "invalid_code")
		return nil, ErrInvalidCredentials
	}

	scopes := []string{rbac.ScopeTransientAuthentication}
	if c.TransientContext != "" {
		scopes = append(scopes, c.TransientContext)
	}
	if !user.Verified {
		user.Verified = true
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to mark user verified: %w", err)
		}
	}
	return s.login(ctx, MethodTransient, user, nil, scopes)
}

// GetAccountAuthToken re-issues the caller's token for accountID, or for the
// tenant level when accountID is nil.
func (s *Service) GetAccountAuthToken(ctx context.Context, id *claims.Identity, accountID *int) (*LoginResponse, error) {
	if id == nil || id.SubjectID == nil {
		return nil, authz.ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, id.Subject())
	if err != nil {
		return nil, err
	}
	if accountID == nil {
		if !hasTenantRole(user) {
			return nil, ErrNoAppRole
		}
	} else if user.Membership(*accountID) == nil {
		return nil, ErrInvalidAccount
	}
	return s.login(ctx, MethodAccount, user, accountID, nil)
}

// GetAuthToken issues a token for another user of the caller's tenant
func (s *Service) GetAuthToken(ctx context.Context, pc authz.PermissionContext, userID int, username string) (*LoginResponse, error) {
	user, err := s.find(ctx, userID, username)
	if err != nil {
		return nil, err
	}
	f := pc.WithUser(user).Flags()
	if !f.SameUserTenant && !f.IsAppAdmin {
		return nil, tenant.ErrUserNotFound
	}

	resp, err := s.issue(ctx, user, nil, nil)
	if err != nil {
		return nil, err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		TenantID: user.TenantID.String(),
		ActorID:  pc.ActorID(),
		Resource: "user:" + strconv.Itoa(user.ID),
		Metadata: map[string]any{"method": MethodImpersonate},
	})
	s.count(ctx, MethodImpersonate, "success")
	return resp, nil
}

// IssueTransientToken sends a one-time code to the user named by username or userID
func (s *Service) IssueTransientToken(ctx context.Context, tpl notify.Template, username string, userID int, from string) error {
	user, err := s.find(ctx, userID, username)
	if err != nil {
		return err
	}
	return s.IssueNotification(ctx, identity.Notification{User: user, Template: tpl, From: from})
}

// IssueNotification stores the digest of a fresh one-time code on the user and
// sends the code. Reset templates get a short code with a short lifetime.
func (s *Service) IssueNotification(ctx context.Context, n identity.Notification) error {
	if n.User == nil {
		return tenant.ErrUserNotFound
	}
	length, ttl := longCodeLength, longCodeTTL
	if n.Template.IsReset() {
		length, ttl = shortCodeLength, shortCodeTTL
	}
	code, err := randomCode(length)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	expiry := s.now().Add(ttl)

	n.User.Credentials.TransientDigest = codeDigest(n.User.Username, code)
	n.User.Credentials.TransientExpiry = &expiry
	if err := s.users.UpdateCredentials(ctx, n.User.ID, n.User.Credentials); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	to := n.Recipient
	if to == "" {
		to = n.User.Username
	}
	return s.mailer.Send(ctx, notify.Message{
		Template:    n.Template,
		To:          to,
		From:        n.From,
		AccountName: n.AccountName,
		Code:        code,
		ExpiresAt:   &expiry,
	})
}

// ClearExpiredCredentials drops refresh tokens and one-time codes past their expiry
func (s *Service) ClearExpiredCredentials(ctx context.Context) (int64, error) {
	return ClearExpiredCredentials(ctx, s.users, s.auditLogger)
}

// ClearExpiredCredentials runs the credential sweep as the background identity.
// It is shared by the server's periodic sweep and the standalone cleanup job.
func ClearExpiredCredentials(ctx context.Context, users tenant.UserRepository, auditLogger audit.Logger) (int64, error) {
	n, err := users.ClearExpiredCredentials(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired credentials: %w", err)
	}
	if n > 0 {
		pc := authz.New(claims.Background(rbac.AppTenantID))
		auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeCredentialsCleared,
			TenantID: rbac.AppTenantID.String(),
			ActorID:  pc.ActorID(),
			Resource: "users",
			Metadata: map[string]any{"users": n},
		})
	}
	return n, nil
}

func (s *Service) login(ctx context.Context, method string, user *tenant.User, accountID *int, transientScopes []string) (*LoginResponse, error) {
	resp, err := s.issue(ctx, user, accountID, transientScopes)
	if err != nil {
		return nil, err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		TenantID: user.TenantID.String(),
		ActorID:  user.Username,
		Resource: "login",
		Metadata: map[string]any{"method": method},
	})
	s.count(ctx, method, "success")
	return resp, nil
}

// issue signs a token for user and rotates its refresh token
func (s *Service) issue(ctx context.Context, user *tenant.User, requested *int, transientScopes []string) (*LoginResponse, error) {
	accountID := selectAccount(user, requested)

	grant := token.Grant{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Username: user.Username,
	}
	if accountID != nil {
		grant.OrgIDs = []string{strconv.Itoa(*accountID)}
		if m := user.Membership(*accountID); m != nil {
			grant.Roles = rbac.Names(m.Roles)
		}
	} else {
		grant.Roles = rbac.Names(user.Roles)
	}
	grant.Scopes = append(append([]string{}, user.Scopes...), transientScopes...)

	tok, err := s.tokens.Issue(grant)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	refreshExpiry := now.Add(s.refreshTTL)
	creds := user.Credentials
	if user.Verified && !contains(transientScopes, rbac.ScopeTransientAuthentication) {
		creds.ClearTransient()
	}
	creds.RefreshDigest = digest(refresh)
	creds.RefreshExpiry = &refreshExpiry
	if err := s.users.UpdateCredentials(ctx, user.ID, creds); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.Credentials = creds
	user.LatestLogin = &now

	return &LoginResponse{
		Token:              tok.AccessToken,
		ExpiresAt:          tok.ExpiresAt,
		TenantID:           user.TenantID.String(),
		AccountID:          accountID,
		Roles:              rbac.Names(user.Roles),
		RefreshToken:       refresh,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

// lookup loads an enabled user for a login attempt
func (s *Service) lookup(ctx context.Context, method, username string) (*tenant.User, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	user, err := s.users.GetByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, tenant.ErrUserNotFound) {
			s.failed(ctx, method, nil, name, "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Enabled {
		s.failed(ctx, method, user, name, "disabled")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) find(ctx context.Context, userID int, username string) (*tenant.User, error) {
	if userID > 0 {
		user, err := s.users.GetByID(ctx, userID)
		if err == nil || !errors.Is(err, tenant.ErrUserNotFound) || username == "" {
			return user, err
		}
	}
	if username != "" {
		return s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	}
	return nil, tenant.ErrUserNotFound
}

func (s *Service) failed(ctx context.Context, method string, user *tenant.User, username, reason string) {
	event := audit.Event{
		Type:     audit.TypeLoginFailed,
		ActorID:  username,
		Resource: "login",
		Metadata: map[string]any{"method": method, "reason": reason},
	}
	if user != nil {
		event.TenantID = user.TenantID.String()
	}
	s.auditLogger.Log(ctx, event)
	s.count(ctx, method, "failure")
}

func (s *Service) count(ctx context.Context, method, result string) {
	s.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", result),
	))
}

// selectAccount picks the account a token is scoped to. A requested account
// the user is not a member of is ignored, and users without tenant-level roles
// are pinned to their primary (else first) account.
func selectAccount(user *tenant.User, requested *int) *int {
	if len(user.Accounts) == 0 {
		return nil
	}
	if requested != nil && user.Membership(*requested) == nil {
		requested = nil
	}
	if requested == nil && !hasTenantRole(user) {
		pick := user.Accounts[0].AccountID
		for _, m := range user.Accounts {
			if m.Primary {
				pick = m.AccountID
				break
			}
		}
		requested = &pick
	}
	return requested
}

func hasTenantRole(user *tenant.User) bool {
	for _, r := range user.Roles {
		if !r.IsAccountScoped() {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
