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

package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/opentrusty/tenantmgmt/internal/claims"
)

var (
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrNoSecret     = errors.New("token signing secret is not configured")
)

// Config holds token signing settings
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Grant describes what a token asserts about its holder
type Grant struct {
	UserID   int
	TenantID uuid.UUID
	Username string
	OrgIDs   []string
	Scopes   []string
	Roles    []string
}

// Token is a signed bearer token
type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Service issues and verifies HS512 bearer tokens
type Service struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a new token service
func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue signs a token for g
func (s *Service) Issue(g Grant) (*Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	mc := jwt.MapClaims{
		"iss": s.issuer,
		"aud": s.audience,
		"sub": strconv.Itoa(g.UserID),
		"tid": g.TenantID.String(),
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	if g.Username != "" {
		mc["email"] = g.Username
	}
	if len(g.OrgIDs) > 0 {
		mc["org"] = g.OrgIDs
	}
	if len(g.Scopes) > 0 {
		mc["scope"] = g.Scopes
	}
	if len(g.Roles) > 0 {
		mc["role"] = g.Roles
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, mc).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp}, nil
}

// shortNames maps compact JWT claim names to the claim types identities are read from.
var shortNames = map[string]string{
	"sub":   claims.TypeNameIdentifier,
	"tid":   claims.TypeTenantID,
	"email": claims.TypeEmail,
	"org":   claims.TypeOrgID,
	"scope": claims.TypeScope,
	"role":  claims.TypeRole,
}

// Verify checks signature, algorithm, issuer, audience and expiry, and returns
// the token's claims keyed by claim type.
func (s *Service) Verify(raw string) (claims.Set, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var mc jwt.MapClaims
	_, err := jwt.ParseWithClaims(raw, &mc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	set := claims.Set{}
	for short, typ := range shortNames {
		v, ok := mc[short]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			set.Add(typ, val)
		case []any:
			for _, item := range val {
				if str, ok := item.(string); ok {
					set.Add(typ, str)
				}
			}
		case float64:
			set.Add(typ, strconv.FormatInt(int64(val), 10))
		}
	}
	return set, nil
}
