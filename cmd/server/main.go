// Copyright 2026 The Coachgrid Authors
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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coachgrid/coachgrid/internal/audit"
	"github.com/coachgrid/coachgrid/internal/authz"
	"github.com/coachgrid/coachgrid/internal/catalog"
	"github.com/coachgrid/coachgrid/internal/config"
	"github.com/coachgrid/coachgrid/internal/identity"
	"github.com/coachgrid/coachgrid/internal/observability/logger"
	"github.com/coachgrid/coachgrid/internal/observability/metrics"
	"github.com/coachgrid/coachgrid/internal/observability/tracing"
	"github.com/coachgrid/coachgrid/internal/privilege"
	"github.com/coachgrid/coachgrid/internal/schedule"
	"github.com/coachgrid/coachgrid/internal/scoped"
	"github.com/coachgrid/coachgrid/internal/store/memory"
	"github.com/coachgrid/coachgrid/internal/store/postgres"
	"github.com/coachgrid/coachgrid/internal/tenant"
	transportHTTP "github.com/coachgrid/coachgrid/internal/transport/http"
)

// stores groups every storage contract the services depend on
type stores struct {
	superAdmins authz.SuperAdminRepository
	grants      authz.GrantRepository
	profiles    identity.ProfileRepository
	tenants     tenant.Repository
	privilege   privilege.Store
	schedule    schedule.Store
	workouts    scoped.Backend[*schedule.Workout]
	catalog     catalog.Backends
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting coachgrid", logger.String("store", cfg.Store.Driver))

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.MetricsEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		meter = metrics.Noop()
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", logger.Error(err))
		os.Exit(1)
	}
	defer st.close()

	// Initialize services
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	guard := authz.NewGuard(authz.NewResolver(st.superAdmins, st.profiles, st.tenants), st.grants, meter)
	engine := schedule.NewEngine(st.schedule, st.workouts, schedule.ReferencesFrom(st.catalog), st.profiles, auditLogger, meter)
	privilegeService := privilege.NewService(
		guard,
		st.privilege,
		st.grants,
		st.tenants,
		st.superAdmins,
		st.profiles,
		identity.NewProvisioner(passwordHasher),
		auditLogger,
	)

	// Run Bootstrap (ENV driven)
	if err := privilegeService.Bootstrap(ctx, cfg.Bootstrap.SuperAdminEmail); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(guard, catalog.New(st.catalog), engine, privilegeService)
	authenticator := transportHTTP.NewAuthenticator(transportHTTP.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	router := transportHTTP.NewRouter(handler, authenticator, rateLimiter, transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Store.Driver == config.DriverMemory {
		s := memory.New()
		if cfg.Bootstrap.SeedDemo {
			demo, err := memory.SeedDemo(ctx, s)
			if err != nil {
				return nil, err
			}
			slog.Warn("seeded demo tenants into the in-memory store",
				logger.String("super_admin_id", demo.SuperAdminID),
			)
		}
		return &stores{
			superAdmins: s,
			grants:      s,
			profiles:    s,
			tenants:     s.Tenants(),
			privilege:   s.Privilege(),
			schedule:    s.Schedule(),
			workouts:    s.Workouts(),
			catalog:     s.CatalogBackends(),
			close:       func() {},
		}, nil
	}

	dbCfg := postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime.String()
	}
	db, err := postgres.New(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database")

	return &stores{
		superAdmins: postgres.NewSuperAdminRepository(db),
		grants:      postgres.NewGrantRepository(db),
		profiles:    postgres.NewProfileRepository(db),
		tenants:     postgres.NewTenantRepository(db),
		privilege:   postgres.NewPrivilegeStore(db),
		schedule:    postgres.NewScheduleStore(db),
		workouts:    postgres.Workouts(db),
		catalog:     postgres.CatalogBackends(db),
		close:       db.Close,
	}, nil
}
