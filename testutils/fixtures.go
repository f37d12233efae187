package testutils

import (
	"time"

	"github.com/tech-arch1tect/treez/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Test App",
			URL:         "http://localhost:8080",
			Environment: "development",
		},
		Auth: config.AuthConfig{
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireNumber:  true,
			RequireSpecial: false,
			Argon2Memory:   8 * 1024,
			Argon2Time:     1,
			Argon2Threads:  1,
			Argon2KeyLen:   32,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-32-chars-ok!!",
			RefreshSecret: "test-refresh-secret-32-chars-ok!",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
			Issuer:        "test-issuer",
		},
		Encryption: config.EncryptionConfig{
			Passphrase: "a-strong-passphrase",
			Algorithm:  "aes-256-gcm",
			Salt:       "treez-salt",
		},
		PGP: config.PGPConfig{
			RotationInterval: 30 * 24 * time.Hour,
			MaxInitAttempts:  3,
		},
		RefreshToken: config.RefreshTokenConfig{
			CleanupInterval: 24 * time.Hour,
			UnusedDays:      30,
		},
		Guard: config.GuardConfig{
			IdentityCacheTTL:  5 * time.Minute,
			IdentityCacheSize: 500,
			RoleCacheTTL:      30 * time.Minute,
			RoleCacheSize:     1000,
		},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Period:  time.Minute,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}

var TestPasswords = struct {
	Valid       string
	TooShort    string
	NoUpper     string
	NoLower     string
	NoNumber    string
	WithSpecial string
}{
	Valid:       "Password123",
	TooShort:    "Pass1",
	NoUpper:     "password123",
	NoLower:     "PASSWORD123",
	NoNumber:    "Password",
	WithSpecial: "Password123!",
}

var TestUsers = struct {
	ValidUser struct {
		Name     string
		Email    string
		Password string
	}
}{
	ValidUser: struct {
		Name     string
		Email    string
		Password string
	}{
		Name:     "Alice Example",
		Email:    "alice@example.com",
		Password: "Secret123",
	},
}
