package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strandpine/warden/internal/alert"
	"github.com/strandpine/warden/internal/background"
	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/database"
	"github.com/strandpine/warden/internal/devices"
	"github.com/strandpine/warden/internal/geo"
	"github.com/strandpine/warden/internal/handlers"
	"github.com/strandpine/warden/internal/identity"
	"github.com/strandpine/warden/internal/ledger"
	"github.com/strandpine/warden/internal/lockout"
	"github.com/strandpine/warden/internal/mfa"
	middlewareCustom "github.com/strandpine/warden/internal/middleware"
	"github.com/strandpine/warden/internal/risk"
	"github.com/strandpine/warden/internal/routes"
	"github.com/strandpine/warden/internal/security"
	"github.com/strandpine/warden/internal/session"
	"github.com/strandpine/warden/internal/store"
	"github.com/strandpine/warden/internal/store/filestore"
	"github.com/strandpine/warden/internal/store/postgres"
	pkgauth "github.com/strandpine/warden/pkg/auth"
	pkghttp "github.com/strandpine/warden/pkg/http"
	pkglogger "github.com/strandpine/warden/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Store.Backend),
	)

	// Initialize the write-through store
	var persister store.Store
	var db *database.DB
	switch cfg.Store.Backend {
	case "postgres":
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		persister = postgres.New(db)
	default:
		persister, err = filestore.New(cfg.Store.StateDir)
		if err != nil {
			logger.Error("failed to open state directory", slog.Any("error", err))
			os.Exit(1)
		}
	}

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	snapshot, err := persister.Load(loadCtx)
	loadCancel()
	if err != nil {
		logger.Error("failed to load persisted state", slog.Any("error", err))
		os.Exit(1)
	}

	// Live-updatable security config
	holder := config.NewHolder(cfg.Security)

	// Audit logger, optionally on a daily rotating file
	auditTarget := logger
	if cfg.Server.AuditLogPath != "" {
		writer, err := pkglogger.NewRotatingWriter(cfg.Server.AuditLogPath)
		if err != nil {
			logger.Error("failed to open audit log", slog.Any("error", err))
			os.Exit(1)
		}
		auditTarget = slog.New(slog.NewJSONHandler(writer, nil))
	}
	auditLogger := pkglogger.NewAuditLogger(auditTarget)

	// Core security state
	attempts := ledger.NewLedger(ledger.DefaultCapacity, persister, logger)
	sessions := session.NewManager(holder, persister, logger)
	locks := lockout.NewManager(attempts, holder, persister, logger)
	registry := devices.NewRegistry()

	attempts.Restore(snapshot.Attempts)
	sessions.Restore(snapshot.Sessions)
	locks.Restore(snapshot.Blocks)
	for _, sess := range snapshot.Sessions {
		if sess.Active && sess.DeviceSignature != "" {
			registry.Register(sess.DeviceSignature, sess.Identity)
		}
	}
	logger.Info("state restored",
		slog.Int("attempts", len(snapshot.Attempts)),
		slog.Int("sessions", len(snapshot.Sessions)),
		slog.Int("blocks", len(snapshot.Blocks)),
	)

	// Risk scoring, with the private-range policy unless overridden
	var policy risk.Policy
	if len(cfg.Risk.SuspiciousCIDRs) > 0 {
		policy, err = risk.NewCIDRPolicy(cfg.Risk.SuspiciousCIDRs)
		if err != nil {
			logger.Error("invalid suspicious CIDR list", slog.Any("error", err))
			os.Exit(1)
		}
	}
	engine := risk.NewEngine(policy)
	locator := geo.NewStubResolver()

	// Identity provider
	provider := identity.NewLocalProvider(cfg.Identity.JWTSecret, cfg.Identity.TokenExpiry)

	if err := ensureSeedIdentity(provider, cfg, logger); err != nil {
		logger.Error("failed to seed identity", slog.Any("error", err))
	}

	// Optional TOTP second factor
	var second security.SecondFactor
	var enroller handlers.Enroller
	if cfg.Identity.MFAEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.Identity.MFAEncryptionKey)
		if err != nil {
			logger.Error("invalid MFA encryption key", slog.Any("error", err))
			os.Exit(1)
		}
		totpManager, err := mfa.NewTOTP(key, cfg.Identity.MFAIssuer)
		if err != nil {
			logger.Error("failed to initialize TOTP", slog.Any("error", err))
			os.Exit(1)
		}
		mfaService := mfa.NewService(totpManager, logger)
		second = mfaService
		enroller = mfaService
	}

	// Event sinks
	sinks := []security.EventSink{security.NewAuditSink(auditLogger)}
	if cfg.Alert.Enabled {
		mailerCtx, mailerCancel := context.WithTimeout(context.Background(), 10*time.Second)
		mailer, err := alert.NewMailer(mailerCtx, cfg.Alert.SESRegion, cfg.Alert.FromEmail, cfg.Alert.ToEmail, logger)
		mailerCancel()
		if err != nil {
			logger.Error("failed to initialize alert mailer", slog.Any("error", err))
			os.Exit(1)
		}
		sinks = append(sinks, mailer)
	}

	// Timing delay for login responses
	timingDelay := security.NewTimingDelay(cfg.Risk.LoginDelayBase, cfg.Risk.LoginDelayJitter)

	manager := security.NewManager(
		holder,
		attempts,
		sessions,
		locks,
		registry,
		engine,
		locator,
		provider,
		second,
		timingDelay,
		logger,
		sinks...,
	)

	// Background sweeps
	cleanupManager := background.NewCleanupManager(locks, sessions, manager, logger, 0, 0)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := middlewareCustom.CookieConfig{
		Secure:   cfg.Server.Env == "production",
		SameSite: "strict",
	}
	authHandler := handlers.NewAuthHandler(manager, holder, ipConfig, cookieConfig)
	mfaHandler := handlers.NewMFAHandler(enroller, manager)
	securityHandler := handlers.NewSecurityHandler(manager)

	// Setup CORS middleware
	corsConfig := middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, mfaHandler, securityHandler, manager, cfg.Server.OperatorKeyHash, logger)

	// Health check, including the database when it backs the store
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "healthy", "store": "up"}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.HealthCheck(ctx); err != nil {
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "unhealthy",
					"store":  "down",
				})
				return
			}

			stat := db.Stats()
			resp["pool"] = map[string]any{
				"total_conns": stat.TotalConns(),
				"idle_conns":  stat.IdleConns(),
			}
		}

		pkghttp.WriteJSON(w, http.StatusOK, resp)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background sweeps
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureSeedIdentity registers the bootstrap identity if SEED_IDENTITY
// and SEED_SECRET are configured. The local provider holds credentials
// in memory, so the seed is registered fresh on every start.
func ensureSeedIdentity(provider *identity.LocalProvider, cfg *config.Config, logger *slog.Logger) error {
	seedIdentity := cfg.Identity.SeedIdentity
	seedSecret := cfg.Identity.SeedSecret

	if seedIdentity == "" || seedSecret == "" {
		logger.Info("no SEED_IDENTITY or SEED_SECRET set, skipping identity seeding")
		return nil
	}

	policy := pkgauth.PasswordPolicy{
		MinLength:         cfg.Security.MinPasswordLength,
		RequireComplexity: cfg.Security.RequirePasswordComplexity,
	}

	if err := provider.Register(seedIdentity, seedSecret, true, policy); err != nil {
		return fmt.Errorf("failed to register seed identity: %w", err)
	}

	logger.Info("seed identity registered")
	return nil
}
