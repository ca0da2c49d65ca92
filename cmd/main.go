package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/config"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/geo"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/handler"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/handler/middleware"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/obs"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/ratelimit"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository/postgres"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/risk"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/service"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/email"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/jwt"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/mfa"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/validator"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize PostgreSQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	log.Println("✓ Database connection established")

	// Initialize Redis
	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis: %v", err)
		}
	}()
	log.Println("✓ Redis connection established")

	// Signing key for access and ID tokens
	privateKey, err := jwt.LoadOrGenerateKey(cfg.JWT.PrivateKeyPath)
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}
	log.Println("✓ RS256 signing key ready")

	// Process key for PII encryption and lookup hashing
	codec, err := initCodec(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize secrets codec: %v", err)
	}

	validate := validator.NewValidator()

	// Repositories
	identityRepo := postgres.NewIdentityRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	tokenRepo := postgres.NewTokenRepository(db)
	grantRepo := postgres.NewGrantRepository(db)
	magicLinkRepo := postgres.NewMagicLinkRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	consentRepo := postgres.NewConsentRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	trustRepo := postgres.NewTrustRepository(db)

	// Redis-backed stores
	denyStore := cache.NewRedisStore(redisClient, "deny")
	pendingMFAStore := cache.NewRedisStore(redisClient, "mfa_pending")
	geoStore := cache.NewRedisStore(redisClient, "geo")
	rateTimeline := cache.NewRedisTimeline(redisClient, "ratelimit")

	// Geolocation and proxy intelligence
	var resolver geo.Resolver
	if cfg.Geo.LookupURL != "" {
		resolver = geo.NewHTTPResolver(cfg.Geo.LookupURL, cfg.Geo.LookupTimeout, geoStore, cfg.Geo.CacheTTL)
		log.Println("✓ Geolocation resolver configured")
	} else {
		log.Println("⚠ No geolocation resolver configured; location-based detectors degrade gracefully")
	}
	torList := geo.NewTorList(cfg.Geo.TorExitURL, cfg.Geo.LookupTimeout, cfg.Geo.TorRefreshTTL, cfg.Geo.VPNPrefixes)

	// Outbound mail
	mailer := initMailer(cfg)

	// Webhook delivery with bounded queue and retries
	notifier := webhook.NewNotifier(cfg.Webhook.Timeout, cfg.Webhook.QueueSize, cfg.Webhook.MaxRetries)
	defer notifier.Close()

	// Security event bus with alerting hooks
	alerter := events.MultiAlerter{
		events.NewMailAlerter(identityRepo, codec, mailer),
		events.NewClientWebhookAlerter(clientRepo, notifier),
	}
	bus := events.NewBus(eventRepo, denyStore, resolver, alerter, notifier, cfg.Webhook.AlertURL)

	// Risk engine
	engine := risk.NewEngine(eventRepo, sessionRepo, trustRepo, resolver, torList, bus)

	// Token signer
	signer := jwt.NewTokenService(privateKey, cfg.JWT.KeyID, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	// Rate limiter (default bucket configuration)
	limiter := ratelimit.NewLimiter(rateTimeline, nil)

	// Services
	mfaService := service.NewMFAService(identityRepo, codec, mfa.NewTOTPManager(cfg.Auth.TOTPIssuer), bus)
	authService := service.NewAuthService(
		identityRepo, sessionRepo, tokenRepo,
		codec, bus, engine, resolver, mailer, mfaService, pendingMFAStore, cfg,
	)
	magicLinkService := service.NewMagicLinkService(identityRepo, magicLinkRepo, codec, bus, mailer, authService, cfg)
	oauthService := service.NewOAuthService(
		clientRepo, grantRepo, tokenRepo, consentRepo, identityRepo,
		codec, signer, bus, cfg,
	)
	securityService := service.NewSecurityService(eventRepo, limiter)
	riskService := service.NewRiskService(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cleanupService := service.NewCleanupService(grantRepo, magicLinkRepo, sessionRepo, tokenRepo)
	cleanupService.Start(ctx, cfg.Auth.CleanupInterval)

	// Metrics
	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, validate, metrics)
	mfaHandler := handler.NewMFAHandler(mfaService, validate)
	magicLinkHandler := handler.NewMagicLinkHandler(magicLinkService, validate)
	oauthHandler := handler.NewOAuthHandler(oauthService, validate, metrics)
	sessionHandler := handler.NewSessionHandler(authService)
	securityHandler := handler.NewSecurityHandler(securityService, riskService, validate)
	discoveryHandler := handler.NewDiscoveryHandler(cfg.JWT.Issuer, &privateKey.PublicKey, cfg.JWT.KeyID)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(authService)
	requirePrivileged := middleware.RequirePrivileged()
	rateLimit := middleware.RateLimitMiddleware(limiter, metrics)

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "SSO Server",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	// Global middleware
	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware())
	app.Use(middleware.MetricsMiddleware(metrics))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Routes
	handler.SetupRoutes(
		app,
		authHandler,
		mfaHandler,
		magicLinkHandler,
		oauthHandler,
		sessionHandler,
		securityHandler,
		discoveryHandler,
		healthHandler,
		authMiddleware,
		requirePrivileged,
		rateLimit,
	)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			// Don't use log.Fatalf in goroutine, send error to main
			log.Printf("❌ Server failed to start: %v", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("⏳ Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}

// initDB initializes PostgreSQL database connection with retry logic
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes Redis client and verifies connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing Redis after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// initCodec builds the PII codec from the configured hex key. An
// ephemeral key is generated when none is configured; encrypted columns
// written under an ephemeral key are unreadable after a restart.
func initCodec(cfg *config.Config) (*secrets.Codec, error) {
	if cfg.Secrets.EncryptionKey == "" {
		log.Println("⚠ SECRETS_ENCRYPTION_KEY not set; generating ephemeral process key")
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral encryption key: %w", err)
		}
		return secrets.NewCodec(key)
	}

	key, err := hex.DecodeString(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("SECRETS_ENCRYPTION_KEY is not valid hex: %w", err)
	}

	return secrets.NewCodec(key)
}

// initMailer picks the Resend mailer when an API key is configured and
// falls back to log-only delivery otherwise.
func initMailer(cfg *config.Config) email.Mailer {
	if cfg.Mail.APIKey == "" {
		log.Println("⚠ MAIL_API_KEY not set; mail is logged, not delivered")
		return email.NewLogMailer()
	}

	mailer, err := email.NewResendMailer(&email.Config{
		APIKey:    cfg.Mail.APIKey,
		FromEmail: cfg.Mail.FromEmail,
		FromName:  cfg.Mail.FromName,
		Timeout:   cfg.Mail.Timeout,
	})
	if err != nil {
		log.Printf("⚠ Mailer misconfigured (%v); mail is logged, not delivered", err)
		return email.NewLogMailer()
	}

	log.Println("✓ Resend mailer configured")
	return mailer
}

// customErrorHandler handles Fiber errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("Error handling request [%s %s]: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
