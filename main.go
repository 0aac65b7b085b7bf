package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/config"
	"github.com/aviaops/flightops/pkg/database"
	"github.com/aviaops/flightops/pkg/handlers"
	"github.com/aviaops/flightops/pkg/logging"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/middleware"
	"github.com/aviaops/flightops/pkg/repositories"
	"github.com/aviaops/flightops/pkg/retry"
	"github.com/aviaops/flightops/pkg/services"
	"github.com/aviaops/flightops/pkg/telegram"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (environment variables override it)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Bool("telegram", cfg.Telegram.BotToken != ""))

	// Database
	dsn := cfg.Database.ConnectionString()
	db, err := retry.DoWithResult(ctx, retry.ConnectConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            dsn,
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			logger.Warn("Database not ready, retrying", zap.String("error", logging.SanitizeError(err)))
		}
		return db, err
	})
	if err != nil {
		return err
	}
	defer db.Close()

	sqlDB, err := database.OpenSQL(dsn)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		_ = sqlDB.Close()
		return err
	}
	_ = sqlDB.Close()

	// Redis backs the login rate limiter and is optional.
	var limiter auth.LoginLimiter
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		if l := auth.NewRedisLoginLimiter(redisClient, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow); l != nil {
			limiter = l
		}
	} else {
		logger.Info("Redis not configured, login rate limiting disabled")
	}

	m := metrics.New(prometheus.NewRegistry())
	auditor := audit.NewSecurityAuditor(logger, m)

	// Telegram
	var (
		channel telegram.Channel
		sender  handlers.WebAppSender
	)
	if cfg.Telegram.BotToken != "" {
		bot, err := telegram.NewBotChannel(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, nil, logger)
		if err != nil {
			return err
		}
		logger.Info("Telegram bot ready", zap.String("username", bot.Username()))
		channel, sender = bot, bot
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, notifications are logged instead of sent")
		channel = telegram.NewLogChannel(logger)
	}

	// Repositories and services
	userRepo := repositories.NewUserRepository(db)
	flightRepo := repositories.NewFlightRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	auditService := services.NewAuditService(auditRepo, m, logger)
	userService := services.NewUserService(userRepo, auditService, logger)
	notifier := services.NewStatusNotifier(userRepo, channel,
		cfg.Notifications.MaxConcurrent, cfg.Notifications.Timeout, m, logger)
	flightService := services.NewFlightService(flightRepo, auditService, notifier, m, logger)

	// Auth
	tokens := auth.NewTokenIssuer(cfg.Auth.SessionSecret, cfg.Auth.TokenTTL)
	sessions := auth.NewSessionStore(cfg.Auth.SessionSecret, int(tokens.TTL().Seconds()), cfg.TLSCertPath != "" || !cfg.IsLocal())
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(tokens, sessions, logger), logger)
	actors := handlers.NewActorLoader(userService, logger)

	// Routes
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	handlers.NewAuthHandler(userService, tokens, sessions, limiter, auditor, m, cfg, logger).
		RegisterRoutes(mux, authMiddleware, actors)
	handlers.NewFlightsHandler(flightService, auditor, logger).RegisterRoutes(mux, authMiddleware, actors)
	handlers.NewUsersHandler(userService, auditor, logger).RegisterRoutes(mux, authMiddleware, actors)
	handlers.NewAuditHandler(auditService, auditor, logger).RegisterRoutes(mux, authMiddleware, actors)
	handlers.NewTelegramWebhookHandler(userService, sender, cfg.Telegram.WebhookSecret, cfg.Telegram.WebAppURL, auditor, logger).
		RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger, m)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting flightops",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			serveErr <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	// Let in-flight status notifications finish before the pool closes.
	notifier.Wait()
	return nil
}
