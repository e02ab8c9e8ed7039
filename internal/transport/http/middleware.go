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
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/observability/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Tenant Isolation Principles:
// 1. The tenant comes from the verified token, never from a header or query
// 2. The application tenant (zero UUID) is only reachable through AppAdmin
// 3. Role gates run before any handler and only look at raw role claims

// TokenVerifier checks a bearer token and returns its claims
type TokenVerifier interface {
	Verify(raw string) (claims.Set, error)
}

// LoggingMiddleware logs HTTP requests and records their latency
func LoggingMiddleware(instruments *metrics.Instruments) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				elapsed := time.Since(start)
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(elapsed.Milliseconds()),
				)
				if instruments != nil && instruments.RequestDuration != nil {
					instruments.RequestDuration.Record(r.Context(), float64(elapsed.Microseconds())/1000,
						metric.WithAttributes(
							attribute.String("method", r.Method),
							attribute.Int("status", ww.Status()),
						))
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Authenticate resolves the caller's identity and stores it in the request context.
//
// Bearer tokens are verified and converted with extractor. Basic credentials
// are not checked here: the raw value is kept on the identity for the login
// endpoints. Requests without credentials proceed as anonymous.
func Authenticate(verifier TokenVerifier, extractor claims.Extractor) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithClient(r.Context(), getClientIP(r), r.UserAgent())

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			scheme, credential, _ := strings.Cut(header, " ")
			credential = strings.TrimSpace(credential)

			set := claims.Set{}
			switch {
			case strings.EqualFold(scheme, "Bearer") && credential != "":
				verified, err := verifier.Verify(credential)
				if err != nil {
					slog.DebugContext(ctx, "bearer token rejected", logger.Error(err))
					respondError(w, http.StatusUnauthorized, "invalid bearer token")
					return
				}
				set = verified
			case header != "" && !strings.EqualFold(scheme, "Basic"):
				respondError(w, http.StatusUnauthorized, "unsupported authorization scheme")
				return
			}

			id, err := extractor.Extract(set)
			if err != nil {
				slog.WarnContext(ctx, "identity rejected", logger.Error(err))
				if errors.Is(err, claims.ErrMalformedIdentity) {
					respondError(w, http.StatusBadRequest, "malformed identity")
					return
				}
				respondError(w, http.StatusUnauthorized, "unauthorized identity")
				return
			}
			if strings.EqualFold(scheme, "Basic") {
				id.Authorization = credential
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

// RequireRoles rejects requests whose identity fails gate. Every decision is
// counted; denials are audited.
func RequireRoles(gate authz.Gate, instruments *metrics.Instruments, auditLogger audit.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := GetIdentity(ctx)

			err := gate.Check(id)
			if err == nil {
				instruments.RecordGate(ctx, metrics.ResultAllowed)
				next.ServeHTTP(w, r)
				return
			}

			status, result := http.StatusForbidden, metrics.ResultForbidden
			if errors.Is(err, authz.ErrUnauthenticated) {
				status, result = http.StatusUnauthorized, metrics.ResultUnauthenticated
			}
			instruments.RecordGate(ctx, result)

			pc := authz.New(id)
			attrs := []any{logger.String("actor", pc.ActorID()), logger.Roles(id.Roles), logger.String("required_roles", gate.Roles())}
			if tid, ok := pc.TenantID(); ok {
				attrs = append(attrs, logger.TenantID(tid))
			}
			slog.DebugContext(ctx, "role gate denied", attrs...)
			event := audit.Event{
				Type:     audit.TypeAccessDenied,
				ActorID:  pc.ActorID(),
				Resource: r.Method + " " + r.URL.Path,
				Metadata: map[string]any{"required_roles": gate.Roles(), "reason": result},
			}
			if tid, ok := pc.TenantID(); ok {
				event.TenantID = tid.String()
			}
			auditLogger.Log(ctx, event)

			respondError(w, status, err.Error())
		})
	}
}
