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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/tenantmgmt/internal/account"
	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/auth"
	"github.com/opentrusty/tenantmgmt/internal/claims"
	"github.com/opentrusty/tenantmgmt/internal/config"
	"github.com/opentrusty/tenantmgmt/internal/identity"
	"github.com/opentrusty/tenantmgmt/internal/notify"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/observability/metrics"
	"github.com/opentrusty/tenantmgmt/internal/observability/tracing"
	"github.com/opentrusty/tenantmgmt/internal/rbac"
	"github.com/opentrusty/tenantmgmt/internal/store/postgres"
	"github.com/opentrusty/tenantmgmt/internal/tenant"
	"github.com/opentrusty/tenantmgmt/internal/token"
	transportHTTP "github.com/opentrusty/tenantmgmt/internal/transport/http"
)

// credentialSweepInterval is how often expired verification and reset
// codes are cleared
const credentialSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if len(os.Args) > 1 {
		var run func(*config.Config) error
		switch os.Args[1] {
		case "bootstrap":
			run = runBootstrap
		case "migrate":
			run = runMigrate
		case "cleanup":
			run = runCleanup
		case "serve":
		default:
			fmt.Printf("Unknown command %q (expected serve, migrate, bootstrap or cleanup)\n", os.Args[1])
			os.Exit(2)
		}
		if run != nil {
			if err := run(cfg); err != nil {
				fmt.Printf("%s failed: %v\n", os.Args[1], err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	if err := serve(cfg); err != nil {
		slog.Error("server error", logger.Error(err))
		os.Exit(1)
	}
}

// services is the fully wired domain layer
type services struct {
	audit    audit.Logger
	tenants  *tenant.Service
	roles    *rbac.Service
	tokens   *token.Service
	auth     *auth.Service
	identity *identity.Service
	accounts *account.Service
}

func newServices(cfg *config.Config, db *postgres.DB, instruments *metrics.Instruments) (*services, error) {
	tenantRepo := postgres.NewTenantRepository(db)
	userRepo := postgres.NewUserRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	roleRepo := postgres.NewRoleRepository(db)

	auditLogger := audit.NewSlogLogger()
	mailer := notify.NewLogNotifier(nil)
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	tokenService, err := token.NewService(token.Config{
		Secret:   cfg.Auth.AppSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	authCfg := auth.Config{RefreshTTL: cfg.Auth.RefreshTTL}
	if instruments != nil {
		authCfg.Logins = instruments.Logins
	}

	tenantService := tenant.NewService(tenantRepo, auditLogger)
	roleService := rbac.NewService(roleRepo, rbac.CacheConfig{
		Size: cfg.Cache.RoleCacheSize,
		TTL:  cfg.Cache.RoleCacheTTL,
	})
	authService := auth.NewService(userRepo, passwordHasher, tokenService, mailer, auditLogger, authCfg)
	identityService := identity.NewService(
		userRepo,
		accountRepo,
		tenantService,
		roleService,
		passwordHasher,
		authService,
		mailer,
		auditLogger,
	)
	accountService := account.NewService(
		accountRepo,
		userRepo,
		identityService,
		roleService,
		authService,
		mailer,
		auditLogger,
	)

	return &services{
		audit:    auditLogger,
		tenants:  tenantService,
		roles:    roleService,
		tokens:   tokenService,
		auth:     authService,
		identity: identityService,
		accounts: accountService,
	}, nil
}

func serve(cfg *config.Config) error {
	slog.Info("starting tenant management service",
		logger.String("environment", cfg.Auth.Environment),
		logger.String("version", cfg.Observability.ServiceVersion),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.Background())
	}

	var instruments *metrics.Instruments
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.MetricsEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	} else if instruments, err = meter.Instruments(); err != nil {
		slog.Error("failed to create instruments", logger.Error(err))
		instruments = nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to database")

	svc, err := newServices(cfg, db, instruments)
	if err != nil {
		return err
	}

	// A failed bootstrap leaves the service usable by existing admins.
	bootstrap := identity.NewBootstrapService(svc.identity, svc.audit)
	if err := bootstrap.Bootstrap(ctx, identity.BootstrapConfig{
		AdminEmail:    cfg.Bootstrap.AdminEmail,
		AdminPassword: cfg.Bootstrap.AdminPassword,
	}); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	handler := transportHTTP.NewHandler(
		svc.tenants,
		svc.identity,
		svc.accounts,
		svc.auth,
		svc.roles,
		svc.audit,
		instruments,
	)
	router := transportHTTP.NewRouter(handler, transportHTTP.RouterConfig{
		Verifier: svc.tokens,
		Extractor: claims.Extractor{
			DefaultTenant: cfg.Auth.DefaultTenant,
			Production:    cfg.Auth.Production(),
		},
		RateLimiter:    transportHTTP.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go sweepCredentials(ctx, svc.auth)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	slog.Info("shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// sweepCredentials clears expired one-time codes until ctx is done
func sweepCredentials(ctx context.Context, sweeper *auth.Service) {
	ticker := time.NewTicker(credentialSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.ClearExpiredCredentials(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "credential sweep failed", logger.Error(err))
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "cleared expired credentials", logger.RowsAffected(n))
			}
		}
	}
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		URL:          cfg.Database.URL,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := newServices(cfg, db, nil)
	if err != nil {
		return err
	}
	return identity.NewBootstrapService(svc.identity, svc.audit).Bootstrap(ctx, identity.BootstrapConfig{
		AdminEmail:    cfg.Bootstrap.AdminEmail,
		AdminPassword: cfg.Bootstrap.AdminPassword,
	})
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}

func runCleanup(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := auth.ClearExpiredCredentials(ctx, postgres.NewUserRepository(db), audit.NewSlogLogger())
	if err != nil {
		return err
	}
	slog.Info("cleared expired credentials", logger.RowsAffected(n))
	return nil
}
