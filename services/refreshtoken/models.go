package refreshtoken

import (
	"time"
)

type RefreshToken struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Token      string    `json:"-" gorm:"uniqueIndex;size:512;not null"`
	UserID     string    `json:"user_id" gorm:"size:32;not null;index"`
	DeviceInfo string    `json:"device_info" gorm:"size:500"`
	IsActive   bool      `json:"is_active" gorm:"not null;default:true"`
	LastUsed   time.Time `json:"last_used"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// DeviceInfo describes the client a refresh token was issued to.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	IPAddress  string `json:"ip,omitempty"`
}

// SessionInfo is the view of a stored token exposed to the session listing.
type SessionInfo struct {
	ID        string     `json:"id"`
	Device    DeviceInfo `json:"device"`
	LastUsed  time.Time  `json:"last_used"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Current   bool       `json:"current"`
}
