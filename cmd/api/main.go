package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/quickshelf/api/internal/auth"
	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/database"
	"github.com/quickshelf/api/internal/email"
	httpServer "github.com/quickshelf/api/internal/http"
	"github.com/quickshelf/api/internal/logging"
	"github.com/quickshelf/api/internal/ratelimit"
	"github.com/quickshelf/api/internal/settings"
	"github.com/quickshelf/api/internal/user"
)

// @title           Quickshelf API
// @version         1.0
// @description     Storefront backend: identity, credential lifecycle and admin-editable configuration.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load environment configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	settingsRepo := settings.NewRepository(db)

	// Build the effective configuration: environment base overlaid with
	// persisted settings. A missing or unreadable settings record degrades
	// to environment-only operation.
	configCache := config.NewCache(cfg, settingsRepo, logger)
	configCache.Load(context.Background())

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize token service
	tokenService, err := newTokenService(cfg, configCache)
	if err != nil {
		return err
	}
	logger.Info("token backend selected", "backend", cfg.Auth.TokenBackend)

	// Initialize email service
	emailService := email.NewService(configCache, logger)

	// Initialize auth service
	authService := auth.NewService(userRepo, tokenService, emailService, logger)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
	)
	authMiddleware := auth.NewMiddleware(tokenService, userRepo, logger)
	settingsHandler := settings.NewHandler(settingsRepo, configCache, logger)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, settingsHandler, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// newTokenService selects the token backend. Both resolve the signing key
// from the config cache per call, so key rotation through the admin surface
// needs no restart.
func newTokenService(cfg *config.Config, cache *config.Cache) (auth.TokenService, error) {
	switch cfg.Auth.TokenBackend {
	case "paseto":
		return auth.NewPasetoService(cache), nil
	case "jwt":
		return auth.NewJWTService(cache), nil
	default:
		return nil, fmt.Errorf("unknown token backend %q", cfg.Auth.TokenBackend)
	}
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
