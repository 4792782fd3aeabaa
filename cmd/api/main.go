package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/lms-auth-api/docs" // Swagger docs
	"github.com/redmonkez12/lms-auth-api/internal/auth"
	"github.com/redmonkez12/lms-auth-api/internal/config"
	"github.com/redmonkez12/lms-auth-api/internal/database"
	"github.com/redmonkez12/lms-auth-api/internal/email"
	httpServer "github.com/redmonkez12/lms-auth-api/internal/http"
	"github.com/redmonkez12/lms-auth-api/internal/logging"
	"github.com/redmonkez12/lms-auth-api/internal/ratelimit"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

// @title           LMS Auth API
// @version         1.0
// @description     Authentication for the learning platform: signup with email OTP, login, Google login, session check and password reset.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token. Browsers send the token cookie instead.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_strategy", cfg.Auth.TokenStrategy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := database.Open(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, sqlDB); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db := database.NewBunDB(sqlDB)

	userRepo := user.NewRepository(db)
	pendingRepo := auth.NewRepository(db)

	tokenService, err := auth.NewTokenService(cfg.Auth.TokenStrategy, []byte(cfg.Auth.PasetoKey), []byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	emailService := email.NewService(
		cfg.Email.Host,
		cfg.Email.Port,
		cfg.Email.User,
		cfg.Email.Password,
		cfg.Email.From,
		cfg.Auth.OTPTTL,
	)
	if cfg.Email.Host == "" {
		logger.Warn("SMTP_HOST is empty, OTP emails will fail to send")
	}

	authService := auth.NewService(
		userRepo,
		pendingRepo,
		tokenService,
		emailService,
		logger,
		authOptions(cfg.Auth),
	)

	var rateLimiter auth.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		rateLimiter = ratelimit.NewLimiter(redisClient, ratelimit.Limits{
			IPLimit:        cfg.RateLimit.IPLimit,
			IPWindow:       cfg.RateLimit.IPWindow,
			EmailCooldown:  cfg.RateLimit.EmailCooldown,
			MaxOTPAttempts: cfg.RateLimit.MaxOTPAttempts,
			OTPWindow:      cfg.Auth.OTPTTL,
		})
	} else {
		logger.Warn("rate limiting disabled")
	}

	if cfg.Sweeper.Enabled {
		sweeper := auth.NewSweeper(userRepo, pendingRepo, cfg.Sweeper.Interval, logger)
		go sweeper.Run(ctx)
	}

	authHandler := auth.NewHandler(authService, rateLimiter, cfg.Auth.CookieSecure, cfg.Auth.SessionDuration)
	authMiddleware := auth.NewMiddleware(tokenService)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		// ctx is already cancelled, shutdown gets its own deadline
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func authOptions(cfg config.AuthConfig) auth.Options {
	return auth.Options{
		EducatorInviteCode: cfg.EducatorInviteCode,
		SessionDuration:    cfg.SessionDuration,
		OTPTTL:             cfg.OTPTTL,
		SignupOTPDigits:    cfg.SignupOTPDigits,
		ResetOTPDigits:     cfg.ResetOTPDigits,
		BcryptCost:         cfg.BcryptCost,
	}
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

