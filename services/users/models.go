package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a 32-character opaque identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

type Role struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Role) TableName() string {
	return "roles"
}

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Phone        *string   `json:"phone,omitempty" gorm:"uniqueIndex;size:15"`
	Location     *string   `json:"location,omitempty" gorm:"size:255"`
	Website      *string   `json:"website,omitempty" gorm:"size:255"`
	Bio          *string   `json:"bio,omitempty" gorm:"size:255"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	RoleID       string    `json:"role_id" gorm:"size:32;index;not null"`
	Role         Role      `json:"role" gorm:"foreignKey:RoleID"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// ProfileUpdate carries the mutable profile fields; nil means "leave as is"
// and an empty string clears the optional fields.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Phone    *string
	Location *string
	Website  *string
	Bio      *string
}
