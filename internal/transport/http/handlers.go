// @title OpenTrusty Tenant Management API
// @version 1.0.0
// @description Multi-tenant user, account and role management
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @securityDefinitions.basic BasicAuth

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/tenantmgmt/internal/account"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/auth"
	"github.com/opentrusty/tenantmgmt/internal/authz"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/observability/metrics"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"github.com/opentrusty/tenantmgmt/internal/token"
	"github.com/opentrusty/tenantmgmt/internal/transport/http/docs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenantService   *tenant.Service
	identityService *identity.Service
	accountService  *account.Service
	authService     *auth.Service
	roleService     *rbac.Service
	auditLogger     audit.Logger
	instruments     *metrics.Instruments
}

// NewHandler creates a new HTTP handler
func NewHandler(
	tenantService *tenant.Service,
	identityService *identity.Service,
	accountService *account.Service,
	authService *auth.Service,
	roleService *rbac.Service,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
) *Handler {
	return &Handler{
		tenantService:   tenantService,
		identityService: identityService,
		accountService:  accountService,
		authService:     authService,
		roleService:     roleService,
		auditLogger:     auditLogger,
		instruments:     instruments,
	}
}

// RouterConfig holds the router's request pipeline settings
type RouterConfig struct {
	Verifier       TokenVerifier
	Extractor      claims.Extractor
	RateLimiter    *RateLimiter
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.RateLimiter != nil {
		r.Use(RateLimitMiddleware(cfg.RateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware(h.instruments))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.HealthCheck)
	r.Get("/swagger/doc.json", h.SwaggerDoc)

	// gate declares an endpoint's roles. No roles means any authenticated identity.
	gate := func(roles ...rbac.Role) func(http.Handler) http.Handler {
		return RequireRoles(authz.NewGate(roles...), h.instruments, h.auditLogger)
	}
	authed := gate()
	managers := gate(rbac.AnyManageRole, rbac.AnyAccountManageRole)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.Verifier, cfg.Extractor))

		r.Get("/health", h.HealthCheck)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/", h.Login)
			r.Get("/refresh", h.RefreshLogin)
			r.Get("/transient", h.TransientLogin)
			r.With(authed).Get("/account", h.AccountLogin)
			r.With(gate(rbac.AppAdmin, rbac.Admin)).Get("/user", h.ImpersonateUser)
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(authed)
			r.Get("/", h.ListRoles)
			r.Get("/{id}", h.GetRole)
			r.Get("/name/{name}", h.GetRoleByName)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", h.SignupUser)
			r.Post("/password/reset", h.ResetPassword)

			r.With(authed).Post("/", h.CreateUser)
			r.With(gate(rbac.AnyUserRole)).Get("/", h.ListUsers)
			r.With(authed).Put("/password", h.ChangePassword)
			r.With(authed).Get("/name/{name}", h.GetUserByName)
			r.With(authed).Get("/{id}", h.GetUser)
			r.With(authed).Put("/{id}", h.EditUser)
			r.With(gate(rbac.Admin, rbac.AppAdmin)).Delete("/{id}", h.DeleteUser)
			r.With(gate(rbac.AppAdmin, rbac.Admin)).Put("/{id}/password", h.SetUserPassword)
			r.With(authed).Post("/{id}/verification", h.SendVerification)
			r.With(authed).Post("/{id}/invitation", h.SendInvitation)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/signup", h.SignupAccount)

			r.With(authed).Post("/", h.CreateAccount)
			r.With(gate(rbac.AnyUserRole)).Get("/", h.ListAccounts)
			r.With(gate(rbac.AnyUserRole)).Get("/name/{name}", h.GetAccountByName)
			r.With(gate(rbac.AnyUserRole)).Get("/user/{username}", h.GetUserAccounts)
			r.With(authed).Get("/{id}", h.GetAccount)
			r.With(managers).Put("/{id}", h.UpdateAccount)
			r.With(gate(rbac.AnyManageRole, rbac.AccountOwner)).Delete("/{id}", h.DeleteAccount)

			r.Route("/{id}/users", func(r chi.Router) {
				r.With(managers).Post("/", h.AddNewAccountUser)
				r.With(managers).Post("/name/{username}", h.AddExistingAccountUserByName)
				r.With(managers).Post("/{userID}", h.AddExistingAccountUser)
				r.With(managers).Put("/{userID}", h.UpdateAccountUserRoles)
				r.With(gate(rbac.AnyAccountManageRole)).Put("/{userID}/invite", h.InviteAccountUser)
				r.With(managers).Delete("/{userID}", h.RemoveAccountUser)
			})
		})

		r.Route("/tenants", func(r chi.Router) {
			r.Use(gate(rbac.AppAdmin))
			r.Post("/", h.CreateTenant)
			r.Get("/", h.ListTenants)
			r.Get("/name/{name}", h.GetTenantByName)
			r.Get("/{id}", h.GetTenant)
			r.Put("/{id}", h.UpdateTenant)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "tenantmgmt",
	})
}

// SwaggerDoc serves the OpenAPI document
func (h *Handler) SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := docs.Read()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError translates a service error into a response. Unknown
// errors are logged and reported as 500 without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, claims.ErrUnauthorizedIdentity):
		return http.StatusUnauthorized

	case errors.Is(err, authz.ErrForbidden),
		errors.Is(err, authz.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, tenant.ErrUserNotFound),
		errors.Is(err, tenant.ErrAccountNotFound),
		errors.Is(err, tenant.ErrAccountUserNotFound),
		errors.Is(err, rbac.ErrRoleNotFound):
		return http.StatusNotFound

	case errors.Is(err, tenant.ErrTenantAlreadyExists),
		errors.Is(err, tenant.ErrUserAlreadyExists),
		errors.Is(err, tenant.ErrAccountAlreadyExists),
		errors.Is(err, tenant.ErrAccountUserExists),
		errors.Is(err, tenant.ErrEmailInUse),
		errors.Is(err, tenant.ErrInvalidTenant):
		return http.StatusConflict

	case errors.Is(err, tenant.ErrTenantMismatch),
		errors.Is(err, tenant.ErrInvalidTenantID),
		errors.Is(err, tenant.ErrInvalidUsername),
		errors.Is(err, rbac.ErrUnknownRole),
		errors.Is(err, rbac.ErrNotAssignable),
		errors.Is(err, rbac.ErrInvalidRoleRef),
		errors.Is(err, account.ErrNoOwner),
		errors.Is(err, account.ErrInvalidName),
		errors.Is(err, account.ErrInvalidMember),
		errors.Is(err, identity.ErrInvalidPassword),
		errors.Is(err, identity.ErrInvalidUserData),
		errors.Is(err, identity.ErrPasswordReuse),
		errors.Is(err, identity.ErrInvalidNotification),
		errors.Is(err, claims.ErrMalformedIdentity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// intParam reads a positive integer path parameter
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// listOptions reads paging and filter parameters from the query string
func listOptions(w http.ResponseWriter, r *http.Request) (tenant.ListOptions, bool) {
	q := r.URL.Query()
	var opts tenant.ListOptions
	for key, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid "+key)
			return opts, false
		}
		*dst = n
	}
	if raw := q.Get("includeDisabled"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid includeDisabled")
			return opts, false
		}
		opts.IncludeDisabled = b
	}
	if raw := q.Get("tenantId"); raw != "" {
		id, err := parseTenantID(raw)
		if err != nil {
			respondServiceError(w, r, err)
			return opts, false
		}
		opts.TenantID = &id
	}
	return opts, true
}
