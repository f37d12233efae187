package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"TREEZ_APP_"`
	Server       ServerConfig       `envPrefix:"TREEZ_SERVER_"`
	Log          LogConfig          `envPrefix:"TREEZ_LOG_"`
	Database     DatabaseConfig     `envPrefix:"TREEZ_DATABASE_"`
	Auth         AuthConfig         `envPrefix:"TREEZ_AUTH_"`
	JWT          JWTConfig          `envPrefix:"TREEZ_JWT_"`
	Encryption   EncryptionConfig   `envPrefix:"TREEZ_ENCRYPTION_"`
	PGP          PGPConfig          `envPrefix:"TREEZ_PGP_"`
	RefreshToken RefreshTokenConfig `envPrefix:"TREEZ_REFRESH_TOKEN_"`
	Guard        GuardConfig        `envPrefix:"TREEZ_GUARD_"`
	RateLimit    RateLimitConfig    `envPrefix:"TREEZ_RATE_LIMIT_"`
	Mail         MailConfig         `envPrefix:"TREEZ_MAIL_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"treez"`
	URL         string `env:"URL" envDefault:"http://localhost:8080"`
	Environment string `env:"ENV" envDefault:"development"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"treez.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength      int    `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool   `env:"PASSWORD_REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool   `env:"PASSWORD_REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool   `env:"PASSWORD_REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool   `env:"PASSWORD_REQUIRE_SPECIAL" envDefault:"false"`
	Argon2Memory   uint32 `env:"ARGON2_MEMORY" envDefault:"65536"`
	Argon2Time     uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Threads  uint8  `env:"ARGON2_THREADS" envDefault:"1"`
	Argon2KeyLen   uint32 `env:"ARGON2_KEY_LENGTH" envDefault:"32"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
	Issuer        string        `env:"ISSUER" envDefault:"treez"`
}

type EncryptionConfig struct {
	Passphrase string `env:"PASSPHRASE"`
	Algorithm  string `env:"ALGORITHM" envDefault:"aes-256-gcm"`
	Salt       string `env:"SALT"`
}

type PGPConfig struct {
	RotationInterval time.Duration `env:"ROTATION_INTERVAL" envDefault:"720h"`
	MaxInitAttempts  int           `env:"MAX_INIT_ATTEMPTS" envDefault:"3"`
}

type RefreshTokenConfig struct {
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`
	UnusedDays      int           `env:"UNUSED_DAYS" envDefault:"30"`
}

type GuardConfig struct {
	IdentityCacheTTL  time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"5m"`
	IdentityCacheSize int           `env:"IDENTITY_CACHE_SIZE" envDefault:"500"`
	RoleCacheTTL      time.Duration `env:"ROLE_CACHE_TTL" envDefault:"30m"`
	RoleCacheSize     int           `env:"ROLE_CACHE_SIZE" envDefault:"1000"`
}

type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Rate    int           `env:"RATE" envDefault:"100"`
	Period  time.Duration `env:"PERIOD" envDefault:"1m"`
}

type MailConfig struct {
	Host        string `env:"HOST"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"treez"`
}

func LoadConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return cfg.Validate()
}

// Validate rejects configurations that would otherwise only fail at first use.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return errors.New("TREEZ_JWT_ACCESS_SECRET is required")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("TREEZ_JWT_REFRESH_SECRET is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("access and refresh token secrets must be distinct")
	}
	if len(c.Encryption.Passphrase) < 8 {
		return errors.New("TREEZ_ENCRYPTION_PASSPHRASE must be at least 8 characters")
	}
	if c.Encryption.Salt == "" {
		return errors.New("TREEZ_ENCRYPTION_SALT is required")
	}
	if c.PGP.MaxInitAttempts <= 0 {
		return fmt.Errorf("invalid PGP max init attempts: %d", c.PGP.MaxInitAttempts)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
