package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Token strategies accepted by AUTH_TOKEN_STRATEGY.
const (
	TokenStrategyPaseto = "paseto"
	TokenStrategyJWT    = "jwt"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Email     EmailConfig     `envPrefix:"SMTP_"`
	Sweeper   SweeperConfig   `envPrefix:"SWEEPER_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8000"`
	Env             string        `env:"ENV" envDefault:"dev"` // dev or prod
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustedOrigins  []string      `env:"TRUSTED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"` // CORS allowed origins for cookie auth

	// Honour X-Forwarded-For and X-Real-IP. Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

type DatabaseConfig struct {
	Host           string `env:"HOST" envDefault:"localhost"`
	Port           string `env:"PORT" envDefault:"5432"`
	User           string `env:"USER" envDefault:"postgres"`
	Password       string `env:"PASSWORD" envDefault:"postgres"`
	DBName         string `env:"NAME" envDefault:"lms"`
	SSLMode        string `env:"SSLMODE" envDefault:"disable"`
	ChannelBinding string `env:"CHANNEL_BINDING"` // "require" for Neon DB, empty for local
	AutoMigrate    bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type AuthConfig struct {
	TokenStrategy string `env:"TOKEN_STRATEGY" envDefault:"paseto"`
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey          string        `env:"PASETO_KEY"`
	JWTSecret          string        `env:"JWT_SECRET"`
	SessionDuration    time.Duration `env:"SESSION_DURATION" envDefault:"168h"`
	EducatorInviteCode string        `env:"EDUCATOR_INVITE_CODE"`
	SignupOTPDigits    int           `env:"SIGNUP_OTP_DIGITS" envDefault:"6"`
	ResetOTPDigits     int           `env:"RESET_OTP_DIGITS" envDefault:"4"`
	OTPTTL             time.Duration `env:"OTP_TTL" envDefault:"5m"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"true"`
}

type EmailConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM"`
}

type SweeperConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Interval time.Duration `env:"INTERVAL" envDefault:"10m"`
}

type RateLimitConfig struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	IPLimit        int           `env:"IP_LIMIT" envDefault:"10"`
	IPWindow       time.Duration `env:"IP_WINDOW" envDefault:"15m"`
	EmailCooldown  time.Duration `env:"EMAIL_COOLDOWN" envDefault:"1m"`
	MaxOTPAttempts int           `env:"MAX_OTP_ATTEMPTS" envDefault:"5"` // wrong codes per email before the current code is locked
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.IPLimit <= 0 || cfg.RateLimit.IPWindow <= 0) {
		return nil, fmt.Errorf("RATE_LIMIT_IP_LIMIT and RATE_LIMIT_IP_WINDOW must be positive")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.MaxOTPAttempts <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX_OTP_ATTEMPTS must be positive")
	}
	if cfg.Sweeper.Enabled && cfg.Sweeper.Interval <= 0 {
		return nil, fmt.Errorf("SWEEPER_INTERVAL must be positive, got %s", cfg.Sweeper.Interval)
	}

	return cfg, nil
}

func (c *AuthConfig) validate() error {
	switch c.TokenStrategy {
	case TokenStrategyPaseto:
		if len(c.PasetoKey) != 32 {
			return fmt.Errorf("AUTH_PASETO_KEY must be exactly 32 bytes, got %d", len(c.PasetoKey))
		}
	case TokenStrategyJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required for the jwt token strategy")
		}
	default:
		return fmt.Errorf("unsupported AUTH_TOKEN_STRATEGY %q", c.TokenStrategy)
	}

	if c.BcryptCost < 10 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be at least 10, got %d", c.BcryptCost)
	}
	if c.SignupOTPDigits < 4 || c.ResetOTPDigits < 4 {
		return fmt.Errorf("OTP width must be at least 4 digits")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Address returns the SMTP server address (host:port)
func (c *EmailConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}
