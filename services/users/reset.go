package users

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrResetTokenInvalid = errors.New("password reset token is invalid or expired")

type PasswordResetToken struct {
	ID        string    `gorm:"primaryKey;size:32"`
	UserID    string    `gorm:"size:32;not null;index"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

// CreateResetToken issues a single-use reset token for the user. Only a
// hash of the token is stored; the plaintext goes out by email once.
func (s *Service) CreateResetToken(userID string, ttl time.Duration) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	record := PasswordResetToken{
		ID:        NewID(),
		UserID:    userID,
		TokenHash: hashResetToken(token),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", err
	}

	return token, nil
}

// ConsumeResetToken exchanges a valid token for its user and deletes it
// so it cannot be replayed.
func (s *Service) ConsumeResetToken(token string) (*User, error) {
	var record PasswordResetToken
	err := s.db.Where("token_hash = ?", hashResetToken(token)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}

	s.db.Delete(&record)

	if time.Now().After(record.ExpiresAt) {
		return nil, ErrResetTokenInvalid
	}

	return s.FindByID(record.UserID)
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
