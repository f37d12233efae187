package refreshtoken

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/users"
)

var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenRevoked  = errors.New("refresh token revoked")
)

type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
}

func NewService(db *gorm.DB, config *config.Config, logger *logging.Service) *Service {
	logger.Info("initializing refresh token service",
		zap.Duration("cleanup_interval", config.RefreshToken.CleanupInterval),
		zap.Int("unused_days", config.RefreshToken.UnusedDays))

	return &Service{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Store persists a freshly issued refresh token for the given user.
func (s *Service) Store(userID, token string, device DeviceInfo, expiresAt time.Time) (*RefreshToken, error) {
	deviceJSON, err := json.Marshal(device)
	if err != nil {
		return nil, fmt.Errorf("failed to encode device info: %w", err)
	}

	now := time.Now()
	record := RefreshToken{
		ID:         users.NewID(),
		Token:      token,
		UserID:     userID,
		DeviceInfo: string(deviceJSON),
		IsActive:   true,
		LastUsed:   now,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}

	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Error("failed to store refresh token",
			zap.Error(err),
			zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.logger.Debug("refresh token stored",
		zap.String("user_id", userID),
		zap.String("token_id", record.ID),
		zap.Time("expires_at", expiresAt))

	return &record, nil
}

// Find returns the stored record for the given token string. Expired
// records are removed on sight.
func (s *Service) Find(token string) (*RefreshToken, error) {
	var record RefreshToken
	err := s.db.Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if time.Now().After(record.ExpiresAt) {
		s.logger.Warn("refresh token lookup found expired token",
			zap.String("token_id", record.ID),
			zap.String("user_id", record.UserID))
		s.db.Delete(&record)
		return nil, ErrTokenExpired
	}

	if !record.IsActive {
		return nil, ErrTokenRevoked
	}

	return &record, nil
}

// Rotate swaps oldToken for newToken, keeping the device association.
// The new record is inserted before the old one is removed so a crash
// between the two steps never leaves the user without a valid token.
// Rotating a token that has already been rotated fails with
// ErrTokenNotFound.
func (s *Service) Rotate(oldToken, newToken string, expiresAt time.Time) (*RefreshToken, error) {
	old, err := s.Find(oldToken)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := RefreshToken{
		ID:         users.NewID(),
		Token:      newToken,
		UserID:     old.UserID,
		DeviceInfo: old.DeviceInfo,
		IsActive:   true,
		LastUsed:   now,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to store rotated token: %w", err)
		}

		result := tx.Where("id = ?", old.ID).Delete(&RefreshToken{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove rotated token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTokenNotFound
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("refresh token rotation failed",
			zap.Error(err),
			zap.String("user_id", old.UserID))
		return nil, err
	}

	s.logger.Debug("refresh token rotated",
		zap.String("user_id", old.UserID),
		zap.String("old_token_id", old.ID),
		zap.String("new_token_id", record.ID))

	return &record, nil
}

func (s *Service) TouchLastUsed(tokenID string) error {
	err := s.db.Model(&RefreshToken{}).
		Where("id = ?", tokenID).
		Update("last_used", time.Now()).Error

	if err != nil {
		s.logger.Warn("failed to update refresh token last used time",
			zap.Error(err),
			zap.String("token_id", tokenID))
	}

	return err
}

// Delete removes the record for the given token string. Deleting a
// token that is not stored is not an error.
func (s *Service) Delete(token string) error {
	result := s.db.Where("token = ?", token).Delete(&RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete refresh token: %w", result.Error)
	}

	s.logger.Debug("refresh token deleted",
		zap.Int64("affected_rows", result.RowsAffected))

	return nil
}

// DeactivateAll removes every stored token for the user, ending all of
// their sessions at once.
func (s *Service) DeactivateAll(userID string) (int64, error) {
	result := s.db.Where("user_id = ?", userID).Delete(&RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate user tokens: %w", result.Error)
	}

	s.logger.Info("deactivated all refresh tokens for user",
		zap.String("user_id", userID),
		zap.Int64("count", result.RowsAffected))

	return result.RowsAffected, nil
}

// CleanupUnused removes the user's tokens that are expired or have not
// been used for olderThanDays days. A non-positive olderThanDays falls
// back to the configured retention window.
func (s *Service) CleanupUnused(userID string, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = s.config.RefreshToken.UnusedDays
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result := s.db.Where("user_id = ? AND (last_used < ? OR expires_at < ?)", userID, cutoff, time.Now()).
		Delete(&RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup unused tokens: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("cleaned up unused refresh tokens",
			zap.String("user_id", userID),
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// CleanupExpired removes every token past its expiry, regardless of owner.
func (s *Service) CleanupExpired() (int64, error) {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("cleaned up expired refresh tokens",
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// ActiveSessions lists the user's live tokens, newest first, marking the
// one matching currentToken.
func (s *Service) ActiveSessions(userID, currentToken string) ([]SessionInfo, error) {
	var records []RefreshToken
	err := s.db.Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Order("last_used DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(records))
	for _, record := range records {
		var device DeviceInfo
		if record.DeviceInfo != "" {
			if err := json.Unmarshal([]byte(record.DeviceInfo), &device); err != nil {
				s.logger.Warn("failed to decode stored device info",
					zap.Error(err),
					zap.String("token_id", record.ID))
			}
		}

		sessions = append(sessions, SessionInfo{
			ID:        record.ID,
			Device:    device,
			LastUsed:  record.LastUsed,
			CreatedAt: record.CreatedAt,
			ExpiresAt: record.ExpiresAt,
			Current:   record.Token == currentToken,
		})
	}

	return sessions, nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.RefreshToken.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if _, err := s.CleanupExpired(); err != nil {
				s.logger.Error("refresh token cleanup worker failed", zap.Error(err))
			}
		}
	}()

	s.logger.Info("started refresh token cleanup worker",
		zap.Duration("interval", s.config.RefreshToken.CleanupInterval))
}
