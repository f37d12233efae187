package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken        = errors.New("invalid JWT token")
	ErrExpiredToken        = errors.New("JWT token has expired")
	ErrMalformedToken      = errors.New("malformed JWT token")
	ErrInvalidSignature    = errors.New("invalid JWT token signature")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// SecretKind selects which signing secret a token is verified against.
type SecretKind int

const (
	AccessSecret SecretKind = iota
	RefreshSecret
)

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
	}
}

func (s *Service) AccessExpirySeconds() int {
	return int(s.config.JWT.AccessExpiry.Seconds())
}

func (s *Service) RefreshExpirySeconds() int {
	return int(s.config.JWT.RefreshExpiry.Seconds())
}

// RefreshTokenExpiration returns the wall-clock expiry a newly issued
// refresh token will carry, for persisting alongside the stored record.
func (s *Service) RefreshTokenExpiration() time.Time {
	return time.Now().Add(s.config.JWT.RefreshExpiry)
}

func (s *Service) IssueAccessToken(userID, email, role string) (string, error) {
	return s.sign(userID, email, role, s.config.JWT.AccessExpiry, s.config.JWT.AccessSecret)
}

func (s *Service) IssueRefreshToken(userID, email, role string) (string, error) {
	return s.sign(userID, email, role, s.config.JWT.RefreshExpiry, s.config.JWT.RefreshSecret)
}

func (s *Service) sign(userID, email, role string, expiry time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.config.JWT.Issuer,
			Subject:   userID,
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign JWT token", zap.Error(err))
		}
		return "", fmt.Errorf("failed to generate JWT token: %w", err)
	}

	return tokenString, nil
}

func (s *Service) Verify(tokenString string, kind SecretKind) (*Claims, error) {
	secret := s.config.JWT.AccessSecret
	if kind == RefreshSecret {
		secret = s.config.JWT.RefreshSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}

		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}

		return []byte(secret), nil
	})

	if err != nil {
		if s.logger != nil {
			s.logger.Warn("JWT token validation failed", zap.Error(err))
		}

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Refresh verifies a refresh token and mints a fresh access token carrying
// the same identity claims. Expiry and signature failures both surface as
// ErrInvalidRefreshToken so the caller's cookie-clearing path is uniform.
func (s *Service) Refresh(refreshTokenString string) (string, *Claims, error) {
	claims, err := s.Verify(refreshTokenString, RefreshSecret)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("refresh token verification failed", zap.Error(err))
		}
		return "", nil, ErrInvalidRefreshToken
	}

	accessToken, err := s.IssueAccessToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return "", nil, err
	}

	return accessToken, claims, nil
}
