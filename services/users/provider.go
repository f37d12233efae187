package users

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tech-arch1tect/treez/services/logging"
)

func ProvideService(db *gorm.DB, logger *logging.Service) *Service {
	return NewService(db, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideService),
)
