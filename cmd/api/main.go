package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/auxoro/cas-server/internal/adapters/primary/http"
	mw "github.com/auxoro/cas-server/internal/adapters/primary/http/middleware"
	"github.com/auxoro/cas-server/internal/adapters/secondary/callback"
	"github.com/auxoro/cas-server/internal/adapters/secondary/postgres"
	"github.com/auxoro/cas-server/internal/auth"
	"github.com/auxoro/cas-server/internal/config"
	"github.com/auxoro/cas-server/internal/core/ports"
	"github.com/auxoro/cas-server/internal/core/services"
	"github.com/auxoro/cas-server/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply database configuration
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Session Signing
	sessions := auth.NewSessionManager(cfg.Session.Secret, cfg.Tickets.TGTExpiry)

	// 5. Initialize Rate Limiter for the credential form
	var loginRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		limiterCfg := mw.LoginRateLimiterConfig()
		limiterCfg.RequestsPerSecond = cfg.RateLimit.LoginRPS
		limiterCfg.BurstSize = cfg.RateLimit.LoginBurst
		loginRateLimiter = mw.NewRateLimiter(limiterCfg)
	}

	// 6. Dependency Injection (Wiring the Hexagon)

	// Repositories (Secondary Adapters)
	userRepo := postgres.NewUserRepository(pool)
	ticketRepo := postgres.NewTicketRepository(pool)

	// Proxy callback client (Secondary Adapter)
	callbackClient := callback.NewClient(cfg.Tickets.CallbackTimeout, logger)

	// Services (Core)
	authService := services.NewAuthService(userRepo)
	ticketService := services.NewTicketService(ticketRepo, callbackClient, cfg.Tickets.TGTExpiry)
	validationService := services.NewValidationService(ticketRepo, cfg.Tickets.STExpiry)

	// Handlers (Primary Adapters)
	loginHandler := httpAdapter.NewLoginHandler(authService, ticketService, sessions, logger)
	validationHandler := httpAdapter.NewValidationHandler(validationService, ticketService, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)

	// 7. Setup Router
	r := httpAdapter.NewRouter(loginHandler, validationHandler, healthHandler, sessions, loginRateLimiter, logger)

	handler := cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(r)

	// 8. Start the ticket janitor
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go runJanitor(janitorCtx, ticketRepo, cfg.Tickets, logger)

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	stopJanitor()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// runJanitor periodically removes consumed and expired ticket rows so the
// store does not grow without bound.
func runJanitor(ctx context.Context, ticketRepo ports.TicketRepository, tickets config.TicketConfig, logger *slog.Logger) {
	ticker := time.NewTicker(tickets.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			deleted, err := ticketRepo.DeleteInvalid(ctx, now.Add(-tickets.STExpiry), now.Add(-tickets.TGTExpiry))
			if err != nil {
				logger.Error("ticket cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("ticket cleanup", "deleted", deleted)
			}
		}
	}
}
