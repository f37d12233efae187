package users

import (
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tech-arch1tect/treez/services/logging"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")
	ErrEmailTaken   = errors.New("email already in use")
	ErrPhoneTaken   = errors.New("phone number already in use")
)

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger}
}

// EnsureRole returns the role with the given name, creating it if needed.
func (s *Service) EnsureRole(name string) (*Role, error) {
	var role Role
	err := s.db.Where("name = ?", name).First(&role).Error
	if err == nil {
		return &role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role = Role{ID: NewID(), Name: name}
	if err := s.db.Create(&role).Error; err != nil {
		return nil, err
	}
	s.logger.Info("created role", zap.String("name", name))
	return &role, nil
}

func (s *Service) FindRoleByName(name string) (*Role, error) {
	var role Role
	if err := s.db.Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// Create inserts a new user. Email comparison is case-insensitive: the
// address is lowercased before storage and lookup.
func (s *Service) Create(user *User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" {
		user.ID = NewID()
	}

	var count int64
	if err := s.db.Model(&User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}

	if user.Phone != nil && *user.Phone != "" {
		if err := s.db.Model(&User{}).Where("phone = ?", *user.Phone).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPhoneTaken
		}
	}

	return s.db.Create(user).Error
}

func (s *Service) FindByEmail(email string) (*User, error) {
	var user User
	err := s.db.Preload("Role").Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) FindByID(id string) (*User, error) {
	var user User
	err := s.db.Preload("Role").Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of update and returns the
// refreshed user.
func (s *Service) UpdateProfile(id string, update ProfileUpdate) (*User, error) {
	user, err := s.FindByID(id)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if email != user.Email {
			var count int64
			if err := s.db.Model(&User{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, ErrEmailTaken
			}
			values["email"] = email
		}
	}
	if update.Phone != nil {
		if *update.Phone == "" {
			values["phone"] = nil
		} else {
			var count int64
			if err := s.db.Model(&User{}).Where("phone = ? AND id <> ?", *update.Phone, id).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, ErrPhoneTaken
			}
			values["phone"] = *update.Phone
		}
	}
	if update.Location != nil {
		values["location"] = nullable(*update.Location)
	}
	if update.Website != nil {
		values["website"] = nullable(*update.Website)
	}
	if update.Bio != nil {
		values["bio"] = nullable(*update.Bio)
	}

	if len(values) > 0 {
		if err := s.db.Model(&User{}).Where("id = ?", id).Updates(values).Error; err != nil {
			return nil, err
		}
	}

	return s.FindByID(id)
}

func (s *Service) UpdatePassword(id, passwordHash string) error {
	result := s.db.Model(&User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
