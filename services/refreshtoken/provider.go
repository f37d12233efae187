package refreshtoken

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
)

func ProvideService(db *gorm.DB, config *config.Config, logger *logging.Service) *Service {
	service := NewService(db, config, logger)

	if config.RefreshToken.CleanupInterval > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Options = fx.Options(
	fx.Provide(ProvideService),
)
