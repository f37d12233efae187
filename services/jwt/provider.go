package jwt

import (
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg, logger)
}

var Options = fx.Options(
	fx.Provide(NewJWTService),
)
